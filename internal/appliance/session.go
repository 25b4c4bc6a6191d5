package appliance

import "context"

// Action is the verb of a session message.
type Action string

// Session message actions.
const (
	ActionGet      Action = "GET"
	ActionPost     Action = "POST"
	ActionResponse Action = "RESPONSE"
	ActionNotify   Action = "NOTIFY"
)

// Resources used by the appliance model.
const (
	ResourceValues            = "/ro/values"
	ResourceMandatoryValues   = "/ro/allMandatoryValues"
	ResourceDescriptionChange = "/ro/descriptionChange"
	ResourceActiveProgram     = "/ro/activeProgram"
	ResourceSelectedProgram   = "/ro/selectedProgram"
	ResourceNetworkConfig     = "/ni/config"
)

// Message is one session frame.
type Message struct {
	SID      int64            `json:"sID,omitempty"`
	MsgID    int64            `json:"msgID,omitempty"`
	Resource string           `json:"resource"`
	Version  int              `json:"version,omitempty"`
	Action   Action           `json:"action"`
	Data     []map[string]any `json:"data,omitempty"`
	Code     int              `json:"code,omitempty"`
}

// ConnectionState is a session lifecycle event.
type ConnectionState int

// Session lifecycle events.
const (
	StateConnected ConnectionState = iota + 1
	StateReconnecting
	StateClosed
)

// String returns the event name.
func (s ConnectionState) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Session is the transport to one appliance.
//
// Connect errors wrap ErrConnectionFailed, ErrHandshake or
// ErrAlreadyConnected so callers can classify them with errors.Is.
type Session interface {
	Connect(ctx context.Context) error
	Close() error
	Connected() bool

	// Send transmits a request and waits for the matching response.
	Send(ctx context.Context, msg Message) (Message, error)

	// SetMessageHandler installs the handler for unsolicited messages.
	SetMessageHandler(fn func(Message))

	// SetConnectionHandler installs the handler for lifecycle events.
	SetConnectionHandler(fn func(ConnectionState))
}
