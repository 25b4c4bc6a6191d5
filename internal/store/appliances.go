package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
)

// timeFormat is fixed-width so stored timestamps sort lexically.
const timeFormat = "2006-01-02T15:04:05.000000Z"

// Appliance is one row of the appliance registry.
type Appliance struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Host  string `json:"host"`
	PSK   string `json:"-"`
	IV    string `json:"-"`
	AppID string `json:"app_id"`

	// Description is the raw capability description document.
	Description json.RawMessage `json:"description"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store implements appliance and history persistence on SQLite.
type Store struct {
	db *sql.DB
}

// New creates a Store on an open, migrated SQLite connection.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

const applianceColumns = `id, name, host, psk, iv, app_id, description, created_at, updated_at`

// Create inserts a new appliance.
// Returns ErrApplianceExists if the ID is already registered.
func (s *Store) Create(ctx context.Context, a *Appliance) error {
	if err := validateAppliance(a); err != nil {
		return err
	}
	stampTimes(a)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO appliances (`+applianceColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		applianceArgs(a)...,
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
			return fmt.Errorf("%w: %s", ErrApplianceExists, a.ID)
		}
		return fmt.Errorf("inserting appliance: %w", err)
	}
	return nil
}

// CreateIfNotExists inserts the appliance unless its ID is already
// registered, in which case the stored row is left untouched.
//
// Returns:
//   - bool: true if a row was inserted
//   - error: nil on success, otherwise the underlying database error
func (s *Store) CreateIfNotExists(ctx context.Context, a *Appliance) (bool, error) {
	if err := validateAppliance(a); err != nil {
		return false, err
	}
	stampTimes(a)

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO appliances (`+applianceColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		applianceArgs(a)...,
	)
	if err != nil {
		return false, fmt.Errorf("inserting appliance: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking rows affected: %w", err)
	}
	return n == 1, nil
}

// Get retrieves an appliance by ID.
// Returns ErrApplianceNotFound if it does not exist.
func (s *Store) Get(ctx context.Context, id string) (*Appliance, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+applianceColumns+` FROM appliances WHERE id = ?`, id)
	a, err := scanAppliance(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrApplianceNotFound, id)
		}
		return nil, fmt.Errorf("querying appliance by id: %w", err)
	}
	return a, nil
}

// List retrieves all appliances ordered by ID.
func (s *Store) List(ctx context.Context) ([]Appliance, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+applianceColumns+` FROM appliances ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying appliances: %w", err)
	}
	defer rows.Close()

	var out []Appliance
	for rows.Next() {
		a, err := scanAppliance(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning appliance: %w", err)
		}
		out = append(out, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating appliances: %w", err)
	}
	return out, nil
}

// Delete removes an appliance and its state history.
// Returns ErrApplianceNotFound if it does not exist.
func (s *Store) Delete(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	result, err := tx.ExecContext(ctx, "DELETE FROM appliances WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting appliance: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrApplianceNotFound, id)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM entity_state_history WHERE appliance_id = ?", id); err != nil {
		return fmt.Errorf("deleting appliance history: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing delete: %w", err)
	}
	return nil
}

func validateAppliance(a *Appliance) error {
	if a == nil || a.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidAppliance)
	}
	if len(a.Description) == 0 {
		return fmt.Errorf("%w: description is required", ErrInvalidAppliance)
	}
	if !json.Valid(a.Description) {
		return fmt.Errorf("%w: description is not valid JSON", ErrInvalidAppliance)
	}
	return nil
}

func stampTimes(a *Appliance) {
	now := time.Now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now
}

func applianceArgs(a *Appliance) []any {
	return []any{
		a.ID, a.Name, a.Host, a.PSK, a.IV, a.AppID, string(a.Description),
		a.CreatedAt.UTC().Format(timeFormat), a.UpdatedAt.UTC().Format(timeFormat),
	}
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanAppliance(row scanner) (*Appliance, error) {
	var a Appliance
	var desc, created, updated string
	if err := row.Scan(&a.ID, &a.Name, &a.Host, &a.PSK, &a.IV, &a.AppID, &desc, &created, &updated); err != nil {
		return nil, err
	}
	a.Description = json.RawMessage(desc)

	var err error
	if a.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if a.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	return &a, nil
}

func parseTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("timestamp is empty")
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", value, err)
	}
	return t, nil
}
