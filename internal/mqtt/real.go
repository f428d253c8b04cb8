package mqtt

import (
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.uber.org/atomic"

	"github.com/sweeney/display-sensor/internal/logic"
)

// Options configures a RealPublisher. Zero values select the defaults.
type Options struct {
	Broker         string
	ClientID       string // prefix; a random suffix keeps two daemons from kicking each other
	BufferSize     int
	ConnectTimeout time.Duration
	PublishTimeout time.Duration
	RetryInterval  time.Duration
}

const (
	defaultClientID       = "display-sensor"
	defaultBufferSize     = 256
	defaultConnectTimeout = 10 * time.Second
	defaultPublishTimeout = 5 * time.Second
	defaultRetryInterval  = 5 * time.Second
)

func (o *Options) withDefaults() {
	if o.ClientID == "" {
		o.ClientID = defaultClientID
	}
	if o.BufferSize <= 0 {
		o.BufferSize = defaultBufferSize
	}
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = defaultConnectTimeout
	}
	if o.PublishTimeout <= 0 {
		o.PublishTimeout = defaultPublishTimeout
	}
	if o.RetryInterval <= 0 {
		o.RetryInterval = defaultRetryInterval
	}
}

// RealPublisher publishes to an actual MQTT broker. Messages published while
// the connection is down are kept in a ring buffer and replayed, oldest
// first, when the client reconnects.
type RealPublisher struct {
	client         paho.Client
	clientID       string
	log            zerolog.Logger
	publishTimeout time.Duration

	mu     sync.Mutex
	buffer *ringBuffer

	connects atomic.Int64
}

// NewRealPublisher creates a publisher for the given broker. If the broker
// cannot be reached within the connect timeout the publisher is still
// returned; it keeps retrying in the background and buffers until then.
func NewRealPublisher(opts Options, log zerolog.Logger) (*RealPublisher, error) {
	opts.withDefaults()

	p := &RealPublisher{
		log:            log,
		publishTimeout: opts.PublishTimeout,
		buffer:         newRingBuffer(opts.BufferSize),
	}

	clientID := fmt.Sprintf("%s-%s", opts.ClientID, uuid.NewString()[:8])
	p.clientID = clientID

	will, err := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: EventOffline, Client: clientID})
	if err != nil {
		return nil, fmt.Errorf("format will: %w", err)
	}
	pahoOpts := paho.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(opts.RetryInterval).
		SetBinaryWill(TopicSystem, will, 1, true).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			p.log.Warn().Err(err).Msg("mqtt connection lost, buffering")
		})

	p.client = paho.NewClient(pahoOpts)
	token := p.client.Connect()
	if !token.WaitTimeout(opts.ConnectTimeout) {
		log.Warn().Str("broker", opts.Broker).Msg("mqtt broker not reachable yet, buffering until connected")
		return p, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	return p, nil
}

// onConnect runs on every (re)connect. After the first connect it announces
// RECONNECTED with the number of buffered and dropped messages, then replays
// the buffer.
func (p *RealPublisher) onConnect(paho.Client) {
	n := p.connects.Inc()
	p.log.Info().Str("client", p.clientID).Int64("connects", n).Msg("mqtt connected")
	if n > 1 {
		p.mu.Lock()
		replayed, dropped := p.buffer.len(), p.buffer.dropped
		p.mu.Unlock()

		payload, _ := FormatSystemPayload(SystemEvent{
			Timestamp: time.Now(),
			Event:     EventReconnected,
			Client:    p.clientID,
			Replayed:  replayed,
			Dropped:   dropped,
		})
		if err := p.send(TopicSystem, 1, true, payload); err != nil {
			p.log.Warn().Err(err).Msg("failed to publish reconnect event")
		}
	}
	p.flush()
}

// flush replays buffered messages. Anything that fails goes back into the buffer.
func (p *RealPublisher) flush() {
	p.mu.Lock()
	msgs := p.buffer.drainAll()
	p.mu.Unlock()
	if len(msgs) == 0 {
		return
	}

	p.log.Info().Int("messages", len(msgs)).Msg("replaying buffered mqtt messages")
	for i, m := range msgs {
		if err := p.send(m.topic, m.qos, m.retained, m.payload); err != nil {
			p.log.Warn().Err(err).Int("remaining", len(msgs)-i).Msg("replay interrupted")
			p.mu.Lock()
			for _, rest := range msgs[i:] {
				p.buffer.push(rest)
			}
			p.mu.Unlock()
			return
		}
	}
}

func (p *RealPublisher) send(topic string, qos byte, retained bool, payload []byte) error {
	token := p.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(p.publishTimeout) {
		return fmt.Errorf("publish %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

func (p *RealPublisher) enqueue(topic string, qos byte, retained bool, payload []byte) {
	p.mu.Lock()
	dropped := p.buffer.push(bufferedMsg{topic: topic, payload: payload, qos: qos, retained: retained})
	n := p.buffer.dropped
	p.mu.Unlock()
	if dropped && n == 1 {
		p.log.Warn().Int("capacity", p.buffer.capacity).Msg("mqtt buffer full, dropping oldest")
	}
}

func (p *RealPublisher) publish(topic string, qos byte, retained bool, payload []byte) error {
	if !p.client.IsConnectionOpen() {
		p.enqueue(topic, qos, retained, payload)
		return nil
	}
	if p.Pending() > 0 {
		p.flush()
	}
	if err := p.send(topic, qos, retained, payload); err != nil {
		if !p.client.IsConnectionOpen() {
			p.enqueue(topic, qos, retained, payload)
			return nil
		}
		return err
	}
	return nil
}

// Publish sends a presence or display event. QoS 0, not retained.
func (p *RealPublisher) Publish(event logic.Event) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	return p.publish(Topic, 0, false, payload)
}

// PublishSystem sends a system lifecycle event. QoS 1 so shutdown events
// are delivered before the process exits.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	return p.publish(TopicSystem, 1, event.Retained, payload)
}

// Pending returns the number of buffered messages.
func (p *RealPublisher) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buffer.len()
}

// ClientID returns the MQTT client id, including its random suffix.
func (p *RealPublisher) ClientID() string {
	return p.clientID
}

// IsConnected reports whether the client currently has a broker connection.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000)
	return nil
}
