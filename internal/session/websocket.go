package session

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/nerrad567/hcbridge/internal/appliance"
)

// Default timeouts and limits for appliance sessions.
const (
	defaultPath              = "/homeconnect"
	defaultConnectTimeout    = 10 * time.Second
	defaultRequestTimeout    = 10 * time.Second
	defaultReconnectAttempts = 10
	defaultAppName           = "hcbridge"

	// closeAlreadyConnected is the close code an appliance sends when its
	// single session slot is taken by another client.
	closeAlreadyConnected = 4409

	resourceInitialValues = "/ei/initialValues"
)

// closeOnce wraps a channel with sync.Once to prevent double-close panics.
type closeOnce struct {
	ch   chan struct{}
	once sync.Once
}

func newCloseOnce() *closeOnce {
	return &closeOnce{ch: make(chan struct{})}
}

func (c *closeOnce) Close() {
	c.once.Do(func() { close(c.ch) })
}

func (c *closeOnce) Done() <-chan struct{} {
	return c.ch
}

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Config holds websocket session settings.
type Config struct {
	// Host is the appliance address ("192.168.1.20" or "host:port").
	Host string

	// Scheme is "ws" or "wss". Default: "ws".
	Scheme string

	// Path is the websocket endpoint. Default: "/homeconnect".
	Path string

	// AppName and AppID identify this client during the handshake.
	// AppID defaults to a random UUID.
	AppName string
	AppID   string

	// ConnectTimeout bounds dial plus handshake. Default: 10 seconds.
	ConnectTimeout time.Duration

	// RequestTimeout bounds each request/response pair. Default: 10 seconds.
	RequestTimeout time.Duration

	// ReconnectAttempts is how often a lost connection is redialled before
	// the session reports CLOSED. Default: 10.
	ReconnectAttempts int

	// Backoff configures delays between reconnect attempts.
	Backoff BackoffConfig
}

// connLife is one Connect..Close lifetime of the session.
type connLife struct {
	done *closeOnce
	wg   sync.WaitGroup
}

// Websocket is an appliance session over a websocket.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - Message and connection handlers run on the session's read goroutine.
type Websocket struct {
	cfg    Config
	dialer *websocket.Dialer

	connMu    sync.RWMutex
	conn      *websocket.Conn
	connected bool
	life      *connLife
	sid       int64

	writeMu sync.Mutex
	msgID   atomic.Int64

	pendingMu sync.Mutex
	pending   map[int64]chan appliance.Message

	handlerMu sync.RWMutex
	onMessage func(appliance.Message)
	onState   func(appliance.ConnectionState)

	logger   Logger
	loggerMu sync.RWMutex

	reconnectsTotal atomic.Uint64
}

// Ensure Websocket implements appliance.Session.
var _ appliance.Session = (*Websocket)(nil)

// NewWebsocket creates an unconnected websocket session.
func NewWebsocket(cfg Config) *Websocket {
	if cfg.Scheme == "" {
		cfg.Scheme = "ws"
	}
	if cfg.Path == "" {
		cfg.Path = defaultPath
	}
	if cfg.AppName == "" {
		cfg.AppName = defaultAppName
	}
	if cfg.AppID == "" {
		cfg.AppID = uuid.NewString()
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = defaultConnectTimeout
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	if cfg.ReconnectAttempts == 0 {
		cfg.ReconnectAttempts = defaultReconnectAttempts
	}
	if cfg.Backoff == (BackoffConfig{}) {
		cfg.Backoff = BackoffConfig{Jitter: defaultJitterFactor}
	}
	return &Websocket{
		cfg:     cfg,
		dialer:  &websocket.Dialer{HandshakeTimeout: cfg.ConnectTimeout},
		pending: make(map[int64]chan appliance.Message),
	}
}

// SetLogger sets the logger for this session.
func (s *Websocket) SetLogger(logger Logger) {
	s.loggerMu.Lock()
	s.logger = logger
	s.loggerMu.Unlock()
}

// SetMessageHandler implements appliance.Session.
func (s *Websocket) SetMessageHandler(fn func(appliance.Message)) {
	s.handlerMu.Lock()
	s.onMessage = fn
	s.handlerMu.Unlock()
}

// SetConnectionHandler implements appliance.Session.
func (s *Websocket) SetConnectionHandler(fn func(appliance.ConnectionState)) {
	s.handlerMu.Lock()
	s.onState = fn
	s.handlerMu.Unlock()
}

// Connected reports whether the handshake has completed and the socket is up.
func (s *Websocket) Connected() bool {
	s.connMu.RLock()
	defer s.connMu.RUnlock()
	return s.connected
}

// ReconnectsTotal returns the number of successful re-establishments.
func (s *Websocket) ReconnectsTotal() uint64 {
	return s.reconnectsTotal.Load()
}

// URL returns the websocket URL the session dials.
func (s *Websocket) URL() string {
	u := url.URL{Scheme: s.cfg.Scheme, Host: s.cfg.Host, Path: s.cfg.Path}
	return u.String()
}

// Connect dials the appliance, performs the handshake and fetches the
// mandatory values. Any previous lifetime is closed first.
//
// Returns:
//   - error: wraps appliance.ErrConnectionFailed, appliance.ErrHandshake or
//     appliance.ErrAlreadyConnected
func (s *Websocket) Connect(ctx context.Context) error {
	_ = s.Close()

	life := &connLife{done: newCloseOnce()}
	s.connMu.Lock()
	s.life = life
	s.connMu.Unlock()

	if err := s.dialAndHandshake(ctx, life); err != nil {
		return err
	}

	life.wg.Add(1)
	go s.readLoop(life)

	if err := s.fetchMandatoryValues(ctx); err != nil {
		_ = s.Close()
		return fmt.Errorf("%w: %w", appliance.ErrHandshake, err)
	}

	s.setConnected(true)
	s.logInfo("session connected", "url", s.URL())
	return nil
}

// dialAndHandshake opens the socket and answers the initial-values frame.
// The socket is closed, never stored, when ctx ends or life is closed
// before the handshake completes.
func (s *Websocket) dialAndHandshake(ctx context.Context, life *connLife) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ConnectTimeout)
	defer cancel()

	conn, _, err := s.dialer.DialContext(ctx, s.URL(), nil)
	if err != nil {
		return fmt.Errorf("%w: dial %s: %w", appliance.ErrConnectionFailed, s.URL(), err)
	}

	// settled is claimed either by the watcher (abort) or by the handshake
	// (success); whoever loses backs off.
	var settled atomic.Bool
	finished := make(chan struct{})
	defer close(finished)
	go func() {
		select {
		case <-finished:
		case <-ctx.Done():
		case <-life.done.Done():
		}
		if settled.CompareAndSwap(false, true) {
			conn.Close()
		}
	}()
	aborted := func() error {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %w", appliance.ErrHandshake, ctx.Err())
		}
		return fmt.Errorf("%w: session closed", appliance.ErrHandshake)
	}

	deadline, _ := ctx.Deadline()
	_ = conn.SetReadDeadline(deadline)

	var first appliance.Message
	if err := conn.ReadJSON(&first); err != nil {
		conn.Close()
		if settled.Load() {
			return aborted()
		}
		var ce *websocket.CloseError
		if errors.As(err, &ce) && ce.Code == closeAlreadyConnected {
			return fmt.Errorf("%w: %s", appliance.ErrAlreadyConnected, ce.Text)
		}
		return fmt.Errorf("%w: reading initial values: %w", appliance.ErrHandshake, err)
	}
	if first.Resource != resourceInitialValues {
		conn.Close()
		return fmt.Errorf("%w: unexpected first frame %s", appliance.ErrHandshake, first.Resource)
	}

	if len(first.Data) > 0 {
		if ed, ok := first.Data[0]["edMsgID"].(float64); ok {
			s.msgID.Store(int64(ed))
		}
	}

	reply := appliance.Message{
		SID:      first.SID,
		MsgID:    first.MsgID,
		Resource: resourceInitialValues,
		Version:  first.Version,
		Action:   appliance.ActionResponse,
		Data: []map[string]any{{
			"deviceType": "Application",
			"deviceName": s.cfg.AppName,
			"deviceID":   s.cfg.AppID,
		}},
	}
	if err := conn.WriteJSON(reply); err != nil {
		conn.Close()
		if settled.Load() {
			return aborted()
		}
		return fmt.Errorf("%w: answering initial values: %w", appliance.ErrHandshake, err)
	}
	_ = conn.SetReadDeadline(time.Time{})

	if !settled.CompareAndSwap(false, true) {
		conn.Close()
		return aborted()
	}

	s.connMu.Lock()
	if s.life != life {
		s.connMu.Unlock()
		conn.Close()
		return fmt.Errorf("%w: session closed", appliance.ErrHandshake)
	}
	s.conn = conn
	s.sid = first.SID
	s.connMu.Unlock()
	return nil
}

func (s *Websocket) fetchMandatoryValues(ctx context.Context) error {
	resp, err := s.request(ctx, appliance.Message{
		Resource: appliance.ResourceMandatoryValues,
		Action:   appliance.ActionGet,
	})
	if err != nil {
		return err
	}
	if resp.Code != 0 {
		return fmt.Errorf("%w: code %d", appliance.ErrRequestFailed, resp.Code)
	}
	s.dispatch(resp)
	return nil
}

// Send implements appliance.Session.
func (s *Websocket) Send(ctx context.Context, msg appliance.Message) (appliance.Message, error) {
	if !s.Connected() {
		return appliance.Message{}, appliance.ErrNotConnected
	}
	return s.request(ctx, msg)
}

func (s *Websocket) request(ctx context.Context, msg appliance.Message) (appliance.Message, error) {
	s.connMu.RLock()
	conn := s.conn
	life := s.life
	msg.SID = s.sid
	s.connMu.RUnlock()
	if conn == nil || life == nil {
		return appliance.Message{}, appliance.ErrNotConnected
	}

	msg.MsgID = s.msgID.Add(1)
	if msg.Version == 0 {
		msg.Version = 1
	}

	ch := make(chan appliance.Message, 1)
	s.pendingMu.Lock()
	s.pending[msg.MsgID] = ch
	s.pendingMu.Unlock()
	defer func() {
		s.pendingMu.Lock()
		delete(s.pending, msg.MsgID)
		s.pendingMu.Unlock()
	}()

	s.writeMu.Lock()
	err := conn.WriteJSON(msg)
	s.writeMu.Unlock()
	if err != nil {
		return appliance.Message{}, fmt.Errorf("%w: write %s: %w", appliance.ErrNotConnected, msg.Resource, err)
	}

	if ctx == nil {
		ctx = context.Background()
	}
	timer := time.NewTimer(s.cfg.RequestTimeout)
	defer timer.Stop()

	select {
	case resp, ok := <-ch:
		if !ok {
			return appliance.Message{}, appliance.ErrNotConnected
		}
		return resp, nil
	case <-ctx.Done():
		return appliance.Message{}, ctx.Err()
	case <-timer.C:
		return appliance.Message{}, fmt.Errorf("%s: %w", msg.Resource, context.DeadlineExceeded)
	case <-life.done.Done():
		return appliance.Message{}, appliance.ErrNotConnected
	}
}

// readLoop reads frames until the lifetime ends. A lost connection is
// re-established in place; the loop exits when that fails.
func (s *Websocket) readLoop(life *connLife) {
	defer life.wg.Done()

	for {
		select {
		case <-life.done.Done():
			return
		default:
		}

		s.connMu.RLock()
		conn := s.conn
		s.connMu.RUnlock()
		if conn == nil {
			return
		}

		var msg appliance.Message
		if err := conn.ReadJSON(&msg); err != nil {
			if s.isClosed(life) {
				return
			}
			s.logInfo("session lost, reconnecting", "error", err)
			s.handleDisconnect()
			if !s.reconnect(life) {
				return
			}
			continue
		}

		if s.deliver(msg) {
			continue
		}
		s.dispatch(msg)
	}
}

// deliver hands a response to its waiting request.
func (s *Websocket) deliver(msg appliance.Message) bool {
	if msg.Action != appliance.ActionResponse {
		return false
	}
	s.pendingMu.Lock()
	ch, ok := s.pending[msg.MsgID]
	s.pendingMu.Unlock()
	if !ok {
		return false
	}
	select {
	case ch <- msg:
	default:
	}
	return true
}

func (s *Websocket) dispatch(msg appliance.Message) {
	s.handlerMu.RLock()
	fn := s.onMessage
	s.handlerMu.RUnlock()
	if fn != nil {
		fn(msg)
	}
}

func (s *Websocket) emit(state appliance.ConnectionState) {
	s.handlerMu.RLock()
	fn := s.onState
	s.handlerMu.RUnlock()
	if fn != nil {
		fn(state)
	}
}

func (s *Websocket) handleDisconnect() {
	s.connMu.Lock()
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	s.connected = false
	s.connMu.Unlock()

	s.emit(appliance.StateReconnecting)
}

// reconnect redials with backoff. Returns true once the session is back.
func (s *Websocket) reconnect(life *connLife) bool {
	backoff := NewBackoff(s.cfg.Backoff)

	for backoff.Attempts() < s.cfg.ReconnectAttempts {
		delay := backoff.Next()
		select {
		case <-life.done.Done():
			return false
		case <-time.After(delay):
		}

		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ConnectTimeout)
		err := s.dialAndHandshake(ctx, life)
		cancel()
		if err != nil {
			s.logInfo("reconnect attempt failed", "attempt", backoff.Attempts(), "error", err)
			continue
		}
		if s.isClosed(life) {
			s.connMu.Lock()
			if s.conn != nil {
				s.conn.Close()
				s.conn = nil
			}
			s.connMu.Unlock()
			return false
		}

		s.setConnected(true)
		s.reconnectsTotal.Add(1)
		s.logInfo("session re-established", "total_reconnects", s.reconnectsTotal.Load())

		life.wg.Add(1)
		go func() {
			defer life.wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), s.cfg.RequestTimeout)
			defer cancel()
			if err := s.fetchMandatoryValues(ctx); err != nil {
				s.logInfo("refreshing values after reconnect failed", "error", err)
			}
		}()

		s.emit(appliance.StateConnected)
		return true
	}

	s.logInfo("giving up reconnecting", "attempts", backoff.Attempts())
	s.emit(appliance.StateClosed)
	return false
}

func (s *Websocket) setConnected(v bool) {
	s.connMu.Lock()
	s.connected = v
	s.connMu.Unlock()
}

func (s *Websocket) isClosed(life *connLife) bool {
	select {
	case <-life.done.Done():
		return true
	default:
		return false
	}
}

// Close ends the current lifetime and waits for its goroutines.
// Safe to call multiple times.
func (s *Websocket) Close() error {
	s.connMu.Lock()
	life := s.life
	s.life = nil
	conn := s.conn
	s.conn = nil
	s.connected = false
	s.connMu.Unlock()

	if life == nil {
		if conn != nil {
			conn.Close()
		}
		return nil
	}
	life.done.Close()
	if conn != nil {
		s.writeMu.Lock()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		s.writeMu.Unlock()
		conn.Close()
	}
	life.wg.Wait()
	return nil
}

// logInfo logs an info message if logger is set.
func (s *Websocket) logInfo(msg string, keysAndValues ...any) {
	s.loggerMu.RLock()
	logger := s.logger
	s.loggerMu.RUnlock()

	if logger != nil {
		logger.Info(msg, append([]any{"host", s.cfg.Host}, keysAndValues...)...)
	}
}
