// hcbridge bridges locally reachable Home Connect appliances to Home
// Assistant over MQTT discovery and serves a small REST/WebSocket API.
//
// Usage:
//
//	hcbridge                 run the bridge
//	hcbridge token [subject] print an API bearer token signed with security.jwt.secret
//
// The configuration file is read from HCBRIDGE_CONFIG, falling back to
// configs/config.yaml.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nerrad567/hcbridge/internal/api"
	"github.com/nerrad567/hcbridge/internal/bridge"
	"github.com/nerrad567/hcbridge/internal/catalog"
	"github.com/nerrad567/hcbridge/internal/discovery"
	"github.com/nerrad567/hcbridge/internal/hass"
	"github.com/nerrad567/hcbridge/internal/infrastructure/config"
	"github.com/nerrad567/hcbridge/internal/infrastructure/database"
	"github.com/nerrad567/hcbridge/internal/infrastructure/influxdb"
	"github.com/nerrad567/hcbridge/internal/infrastructure/logging"
	"github.com/nerrad567/hcbridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/hcbridge/internal/store"
	"github.com/nerrad567/hcbridge/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// Lifetime of tokens printed by the token command.
const tokenTTL = 365 * 24 * time.Hour

func main() {
	if len(os.Args) > 1 && os.Args[1] == "token" {
		if err := printToken(os.Stdout, os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting hcbridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded",
		"path", configPath,
		"appliances", len(cfg.Appliances),
		"level", cfg.Logging.Level,
	)

	db, err := database.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	if migrateErr := db.Migrate(ctx, migrations.FS); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database ready", "path", cfg.Database.Path)

	st := store.New(db.DB)
	history := store.NewHistorySink(st, store.HistoryOptions{
		Retention: time.Duration(cfg.Database.HistoryRetention) * 24 * time.Hour,
		Logger:    log.Component("history"),
	})
	history.Start()
	defer func() {
		if closeErr := history.Close(); closeErr != nil {
			log.Error("error closing history", "error", closeErr)
		}
	}()

	cat, err := loadCatalog(cfg.Catalog)
	if err != nil {
		return err
	}

	var browser *discovery.Browser
	managerOpts := bridge.ManagerOptions{
		Catalog:  cat,
		Sinks:    []bridge.StateSink{history},
		Registry: st,
		Logger:   log.Component("bridge"),
	}
	if cfg.Discovery.Enabled {
		browser = discovery.New(discovery.Options{
			Service: cfg.Discovery.Service,
			Domain:  cfg.Discovery.Domain,
			Timeout: time.Duration(cfg.Discovery.Timeout) * time.Second,
			Logger:  log.Component("discovery"),
		})
		managerOpts.Resolver = browser
	}
	manager := bridge.NewManager(managerOpts)

	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT, mqtt.NewTopics(cfg.HASS))
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log.Component("mqtt"))
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		if cfg.HASS.Enabled {
			host, hostErr := startHomeAssistant(cfg, mqttClient, manager, log)
			if hostErr != nil {
				return hostErr
			}
			defer func() {
				if closeErr := host.Close(); closeErr != nil {
					log.Warn("error closing home assistant host", "error", closeErr)
				}
			}()
			manager.AddSink(host)
		}
	} else {
		log.Info("MQTT disabled")
	}

	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		manager.AddSink(influxdb.NewSink(influxClient))
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	}

	var apiServer *api.Server
	if cfg.API.Enabled {
		deps := api.Deps{
			Config:     cfg.API,
			WS:         cfg.WebSocket,
			Security:   cfg.Security,
			Logger:     log.Component("api"),
			Appliances: manager,
			History:    st,
			DB:         db.DB,
			Version:    version,
		}
		if browser != nil {
			deps.Scanner = browser
		}
		if mqttClient != nil {
			deps.MQTT = mqttClient
		}
		apiServer, err = api.New(deps)
		if err != nil {
			return fmt.Errorf("creating API server: %w", err)
		}
		manager.AddSink(apiServer.Hub())
	}

	if err := manager.Build(ctx, cfg); err != nil {
		return fmt.Errorf("building bridges: %w", err)
	}
	if err := manager.Start(ctx); err != nil {
		return fmt.Errorf("starting bridges: %w", err)
	}
	defer func() {
		log.Info("stopping bridges")
		if stopErr := manager.Stop(); stopErr != nil {
			log.Error("error stopping bridges", "error", stopErr)
		}
	}()

	if apiServer != nil {
		if err := apiServer.Start(ctx); err != nil {
			return fmt.Errorf("starting API server: %w", err)
		}
		defer func() {
			log.Info("stopping API server")
			if closeErr := apiServer.Close(); closeErr != nil {
				log.Error("error stopping API server", "error", closeErr)
			}
		}()
	}

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("initialisation complete, waiting for shutdown signal", "bridges", manager.Len())

	<-ctx.Done()

	// Deferred calls run in reverse order: API, bridges, InfluxDB, Home
	// Assistant host, MQTT, history, database.
	log.Info("shutdown signal received, cleaning up")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses HCBRIDGE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("HCBRIDGE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

func loadCatalog(cc config.CatalogConfig) (*catalog.Catalog, error) {
	var opts []catalog.Option
	if !cc.Dynamic {
		opts = append(opts, catalog.WithoutDynamic())
	}
	cat, err := catalog.Load(cc.Path, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading catalog: %w", err)
	}
	return cat, nil
}

// startHomeAssistant creates the Home Assistant host and subscribes to its
// shared topics. Service topics are routed to the manager.
func startHomeAssistant(cfg *config.Config, client *mqtt.Client, manager *bridge.Manager, log *logging.Logger) (*hass.Host, error) {
	host, err := hass.NewHost(hass.Options{
		Client:   client,
		Topics:   client.Topics(),
		QoS:      byte(cfg.MQTT.QoS), //nolint:gosec // G115: QoS validated to 0-2
		Services: manager,
		Logger:   log.Component("hass"),
	})
	if err != nil {
		return nil, fmt.Errorf("creating home assistant host: %w", err)
	}
	if err := host.Start(); err != nil {
		return nil, fmt.Errorf("starting home assistant host: %w", err)
	}
	return host, nil
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - mqttClient: MQTT client to check (may be nil if disabled)
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	return nil
}

// printToken writes a bearer token for the API. The subject defaults to
// "hcbridge".
func printToken(w io.Writer, args []string) error {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	subject := "hcbridge"
	if len(args) > 0 && args[0] != "" {
		subject = args[0]
	}
	token, err := api.IssueToken(cfg.Security.JWT.Secret, cfg.Security.JWT.Issuer, subject, tokenTTL)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, token)
	return err
}
