package hass

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/hcbridge/internal/appliance"
	"github.com/nerrad567/hcbridge/internal/bridge"
	"github.com/nerrad567/hcbridge/internal/entity"
	"github.com/nerrad567/hcbridge/internal/infrastructure/mqtt"
)

const defaultCommandTimeout = 10 * time.Second

// Client is the MQTT surface the host uses. *mqtt.Client satisfies it.
type Client interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// ServiceCaller runs appliance services. *bridge.Manager satisfies it.
type ServiceCaller interface {
	CallService(ctx context.Context, deviceID, service string, payload []byte) error
}

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Options configures a Host.
type Options struct {
	// Client is the connected MQTT client. Required.
	Client Client

	// Topics builds every topic the host uses.
	Topics mqtt.Topics

	// QoS is used for publishes and subscriptions.
	QoS byte

	// Services handles service topics. Optional.
	Services ServiceCaller

	// CommandTimeout bounds one command or service call. Default: 10 seconds.
	CommandTimeout time.Duration

	Logger Logger
}

// device is one registered appliance.
type device struct {
	info     appliance.Info
	block    Device
	entities []*entity.Projected
	topics   []string
}

// Host mirrors bridged appliances into Home Assistant.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - MQTT handlers run on the client's goroutines.
type Host struct {
	opts Options

	mu      sync.RWMutex
	devices map[string]*device
	closed  bool

	ctx    context.Context
	cancel context.CancelFunc

	logger   Logger
	loggerMu sync.RWMutex
}

// Ensure Host implements bridge.StateSink.
var _ bridge.StateSink = (*Host)(nil)

// NewHost creates a host. Call Start to subscribe to the shared topics.
func NewHost(opts Options) (*Host, error) {
	if opts.Client == nil {
		return nil, ErrNoClient
	}
	if opts.Topics.TopicPrefix == "" {
		opts.Topics.TopicPrefix = mqtt.DefaultTopicPrefix
	}
	if opts.Topics.DiscoveryPrefix == "" {
		opts.Topics.DiscoveryPrefix = mqtt.DefaultDiscoveryPrefix
	}
	if opts.CommandTimeout <= 0 {
		opts.CommandTimeout = defaultCommandTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Host{
		opts:    opts,
		devices: make(map[string]*device),
		ctx:     ctx,
		cancel:  cancel,
		logger:  opts.Logger,
	}, nil
}

// SetLogger sets the logger for the host.
func (h *Host) SetLogger(logger Logger) {
	h.loggerMu.Lock()
	defer h.loggerMu.Unlock()
	h.logger = logger
}

// Start subscribes to the Home Assistant status topic and, when a service
// caller is configured, to every appliance service topic.
func (h *Host) Start() error {
	if err := h.opts.Client.Subscribe(h.opts.Topics.HomeAssistantStatus(), h.opts.QoS, h.handleHomeAssistantStatus); err != nil {
		return fmt.Errorf("subscribe to home assistant status: %w", err)
	}
	if h.opts.Services != nil {
		if err := h.opts.Client.Subscribe(h.opts.Topics.AllServices(), h.opts.QoS, h.handleService); err != nil {
			return fmt.Errorf("subscribe to services: %w", err)
		}
	}
	h.logInfo("home assistant host started",
		"discovery_prefix", h.opts.Topics.DiscoveryPrefix,
		"topic_prefix", h.opts.Topics.TopicPrefix,
	)
	return nil
}

// Close unsubscribes every topic and cancels in-flight commands.
// Safe to call multiple times.
func (h *Host) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	var topics []string
	for _, d := range h.devices {
		topics = append(topics, d.topics...)
	}
	h.mu.Unlock()

	h.cancel()

	topics = append(topics, h.opts.Topics.HomeAssistantStatus())
	if h.opts.Services != nil {
		topics = append(topics, h.opts.Topics.AllServices())
	}
	var errs []error
	for _, t := range topics {
		if err := h.opts.Client.Unsubscribe(t); err != nil && !errors.Is(err, mqtt.ErrNotConnected) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RegisterEntities publishes discovery configs for an appliance's entities
// and subscribes to their command topics.
func (h *Host) RegisterEntities(info appliance.Info, entities []*entity.Projected) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return ErrClosed
	}
	d := &device{
		info:     info,
		block:    deviceBlock(bridge.DeviceInfoFor(info)),
		entities: entities,
	}
	h.devices[info.DeviceID] = d
	h.mu.Unlock()

	if err := h.publishDiscovery(d); err != nil {
		return err
	}

	var topics []string
	for _, p := range entities {
		subscribed, err := h.subscribeCommands(info.DeviceID, p)
		topics = append(topics, subscribed...)
		if err != nil {
			h.setTopics(info.DeviceID, topics)
			return err
		}
	}
	h.setTopics(info.DeviceID, topics)

	h.logInfo("appliance published to home assistant",
		"device_id", info.DeviceID,
		"entities", len(entities),
		"command_topics", len(topics),
	)
	return nil
}

func (h *Host) setTopics(deviceID string, topics []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if d, ok := h.devices[deviceID]; ok {
		d.topics = topics
	}
}

func (h *Host) publishDiscovery(d *device) error {
	for _, p := range d.entities {
		cfg := discoveryConfig(h.opts.Topics, d.block, p)
		payload, err := json.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("marshalling discovery for %s: %w", p.Key(), err)
		}
		topic := h.opts.Topics.Discovery(p.Kind().Component(), d.info.DeviceID, p.Key())
		if err := h.opts.Client.Publish(topic, payload, h.opts.QoS, true); err != nil {
			return fmt.Errorf("publishing discovery for %s: %w", p.Key(), err)
		}
	}
	return nil
}

func (h *Host) subscribeCommands(deviceID string, p *entity.Projected) ([]string, error) {
	if !p.Kind().Commandable() {
		return nil, nil
	}
	var topics []string

	cmdTopic := h.opts.Topics.EntityCommand(deviceID, p.Key())
	if err := h.opts.Client.Subscribe(cmdTopic, h.opts.QoS, h.commandHandler(p, parseCommandFor(p.Kind()))); err != nil {
		return topics, fmt.Errorf("subscribe to %s: %w", cmdTopic, err)
	}
	topics = append(topics, cmdTopic)

	if p.Kind() == entity.KindFan {
		pctTopic := h.opts.Topics.EntityPercentageCommand(deviceID, p.Key())
		if err := h.opts.Client.Subscribe(pctTopic, h.opts.QoS, h.commandHandler(p, parsePercentage)); err != nil {
			return topics, fmt.Errorf("subscribe to %s: %w", pctTopic, err)
		}
		topics = append(topics, pctTopic)
	}
	return topics, nil
}

func parseCommandFor(kind entity.Kind) func([]byte) (entity.Command, error) {
	return func(payload []byte) (entity.Command, error) {
		return parseCommand(kind, payload)
	}
}

// commandHandler runs a parsed command against a projected entity. Failed
// commands are logged; they never break the subscription.
func (h *Host) commandHandler(p *entity.Projected, parse func([]byte) (entity.Command, error)) mqtt.MessageHandler {
	return func(topic string, payload []byte) error {
		cmd, err := parse(payload)
		if err != nil {
			h.logWarn("invalid command", "topic", topic, "error", err)
			return nil
		}

		ctx, cancel := context.WithTimeout(h.ctx, h.opts.CommandTimeout)
		defer cancel()

		if err := p.Command(ctx, cmd); err != nil {
			h.logWarn("command failed",
				"unique_id", p.UniqueID(),
				"action", cmd.Action,
				"error", err,
			)
			return nil
		}
		h.logDebug("command sent", "unique_id", p.UniqueID(), "action", cmd.Action)
		return nil
	}
}

func (h *Host) handleService(topic string, payload []byte) error {
	deviceID, service, ok := h.opts.Topics.ParseService(topic)
	if !ok {
		return nil
	}

	ctx, cancel := context.WithTimeout(h.ctx, h.opts.CommandTimeout)
	defer cancel()

	if err := h.opts.Services.CallService(ctx, deviceID, service, payload); err != nil {
		h.logWarn("service call failed",
			"device_id", deviceID,
			"service", service,
			"error", err,
		)
		return nil
	}
	h.logInfo("service called", "device_id", deviceID, "service", service)
	return nil
}

// handleHomeAssistantStatus republishes everything when Home Assistant
// comes back online, since it drops non-retained state on restart.
func (h *Host) handleHomeAssistantStatus(_ string, payload []byte) error {
	if string(payload) != mqtt.StatusOnline {
		return nil
	}
	h.logInfo("home assistant online, republishing")
	h.Republish()
	return nil
}

// Republish publishes every discovery config and current entity state.
func (h *Host) Republish() {
	h.mu.RLock()
	devices := make([]*device, 0, len(h.devices))
	for _, d := range h.devices {
		devices = append(devices, d)
	}
	h.mu.RUnlock()

	for _, d := range devices {
		if err := h.publishDiscovery(d); err != nil {
			h.logWarn("republishing discovery failed", "device_id", d.info.DeviceID, "error", err)
			continue
		}
		for _, p := range d.entities {
			h.WriteState(d.info, p.Snapshot())
		}
	}
}

// WriteState publishes an entity's state, attributes and availability as
// retained messages.
func (h *Host) WriteState(info appliance.Info, st entity.State) {
	h.mu.RLock()
	closed := h.closed
	h.mu.RUnlock()
	if closed {
		return
	}

	t := h.opts.Topics
	availability := mqtt.StatusOffline
	if st.Available {
		availability = mqtt.StatusOnline
	}
	h.publish(t.EntityAvailability(info.DeviceID, st.Key), []byte(availability))

	if st.Kind != entity.KindButton && st.Kind != entity.KindStartButton {
		h.publish(t.EntityState(info.DeviceID, st.Key), []byte(statePayload(st.Kind, st.Value)))
	}

	attrs, err := attributesPayload(st.Attributes)
	if err != nil {
		h.logWarn("encoding attributes failed", "unique_id", st.UniqueID, "error", err)
	} else {
		h.publish(t.EntityAttributes(info.DeviceID, st.Key), attrs)
	}

	if st.Kind == entity.KindFan {
		if pct, ok := st.Attributes["percentage"]; ok {
			h.publish(t.EntityPercentageState(info.DeviceID, st.Key), []byte(statePayload(entity.KindSensor, pct)))
		}
	}
}

func (h *Host) publish(topic string, payload []byte) {
	if err := h.opts.Client.Publish(topic, payload, h.opts.QoS, true); err != nil {
		h.logDebug("publish failed", "topic", topic, "error", err)
	}
}

func (h *Host) getLogger() Logger {
	h.loggerMu.RLock()
	defer h.loggerMu.RUnlock()
	return h.logger
}

func (h *Host) logDebug(msg string, keysAndValues ...any) {
	if l := h.getLogger(); l != nil {
		l.Debug(msg, keysAndValues...)
	}
}

func (h *Host) logInfo(msg string, keysAndValues ...any) {
	if l := h.getLogger(); l != nil {
		l.Info(msg, keysAndValues...)
	}
}

func (h *Host) logWarn(msg string, keysAndValues ...any) {
	if l := h.getLogger(); l != nil {
		l.Warn(msg, keysAndValues...)
	}
}
