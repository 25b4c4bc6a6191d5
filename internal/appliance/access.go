package appliance

import (
	"fmt"
	"strings"
)

// Access describes what a client may do with a capability entity.
type Access int

// Access modes reported by appliance descriptions.
const (
	AccessNone Access = iota
	AccessRead
	AccessWriteOnly
	AccessReadWrite
)

// ParseAccess converts the description's access string. Matching is
// case-insensitive ("readWrite", "READWRITE" and "readwrite" are equal).
func ParseAccess(s string) (Access, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return AccessNone, nil
	case "read":
		return AccessRead, nil
	case "writeonly":
		return AccessWriteOnly, nil
	case "readwrite":
		return AccessReadWrite, nil
	default:
		return AccessNone, fmt.Errorf("%w: unknown access %q", ErrInvalidDescription, s)
	}
}

// String returns the canonical lower-case name of the access mode.
func (a Access) String() string {
	switch a {
	case AccessRead:
		return "read"
	case AccessWriteOnly:
		return "writeonly"
	case AccessReadWrite:
		return "readwrite"
	default:
		return "none"
	}
}

// Writable reports whether values may be written.
func (a Access) Writable() bool {
	return a == AccessWriteOnly || a == AccessReadWrite
}

// MarshalText implements encoding.TextMarshaler.
func (a Access) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Access) UnmarshalText(text []byte) error {
	parsed, err := ParseAccess(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
