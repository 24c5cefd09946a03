package mqtt

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/sony/gobreaker"
)

const (
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
	connectRetries = 5
	bufferCapacity = 256

	// breakerTrips is the number of consecutive publish failures that open
	// the breaker; while open, queued messages stay buffered without waiting.
	breakerTrips   = 3
	breakerTimeout = 30 * time.Second
)

// client is the subset of paho.Client the publisher uses.
type client interface {
	Connect() paho.Token
	IsConnectionOpen() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Disconnect(quiesce uint)
}

// RealPublisher publishes to an actual MQTT broker. Publish and
// PublishSystem only enqueue; a single sender goroutine delivers the queue in
// order, so a slow or hung broker never holds up the caller. Messages are
// kept in a ring buffer while the connection is down or the broker rejects
// them, and replayed when the client reconnects.
type RealPublisher struct {
	client  client
	breaker *gobreaker.CircuitBreaker

	mu  sync.Mutex
	buf *ringBuffer

	wake      chan struct{}
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewRealPublisher creates a publisher connected to the given broker. The
// first connection is retried with exponential backoff; afterwards paho
// reconnects on its own.
func NewRealPublisher(broker string) (*RealPublisher, error) {
	p := newPublisher(nil, bufferCapacity)

	will, _ := FormatSystemPayload(SystemEvent{
		Timestamp: time.Now(),
		Event:     "SHUTDOWN",
		Reason:    "MQTT_DISCONNECT",
	})

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID("irrigator").
		SetAutoReconnect(true).
		SetWill(TopicSystem, string(will), 1, false).
		SetOnConnectHandler(func(paho.Client) { p.flush() }).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Printf("mqtt: connection lost: %v", err)
		})
	p.client = paho.NewClient(opts)

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = time.Minute
	if err := p.connectWithRetry(backoff.WithMaxRetries(bo, connectRetries-1)); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	p.start()
	return p, nil
}

// newPublisher builds a publisher without its sender goroutine; call start
// to run it, or drain directly in tests.
func newPublisher(c client, capacity int) *RealPublisher {
	return &RealPublisher{
		client: c,
		buf:    newRingBuffer(capacity),
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "mqtt-publish",
			Timeout: breakerTimeout,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= breakerTrips
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Printf("mqtt: breaker %s %s -> %s", name, from, to)
			},
		}),
	}
}

func (p *RealPublisher) start() {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for {
			select {
			case <-p.done:
				return
			case <-p.wake:
				if err := p.drain(); err != nil {
					log.Printf("mqtt: delivery paused, %d messages buffered: %v", p.Buffered(), err)
				}
			}
		}
	}()
}

func (p *RealPublisher) connectWithRetry(b backoff.BackOff) error {
	return backoff.Retry(func() error {
		token := p.client.Connect()
		if !token.WaitTimeout(connectTimeout) {
			log.Printf("mqtt: connect timeout")
			return errors.New("connection timeout")
		}
		if err := token.Error(); err != nil {
			log.Printf("mqtt: connect failed: %v", err)
			return err
		}
		return nil
	}, b)
}

// Publish sends a pump transition to the MQTT broker.
func (p *RealPublisher) Publish(event PumpEvent) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}

	// QoS 1: transitions are rare and worth delivering.
	return p.send(bufferedMsg{topic: TopicPumps, payload: payload, qos: 1})
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	return p.send(bufferedMsg{topic: TopicSystem, payload: payload, qos: 1, retained: event.Retained})
}

// send queues msg for the sender goroutine. It never blocks on the broker.
func (p *RealPublisher) send(msg bufferedMsg) error {
	p.mu.Lock()
	p.buf.push(msg)
	p.mu.Unlock()
	p.flush()
	return nil
}

func (p *RealPublisher) publishNow(msg bufferedMsg) error {
	token := p.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish to %s: timeout", msg.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", msg.topic, err)
	}
	return nil
}

// flush wakes the sender goroutine. Called on every send and (re)connect.
func (p *RealPublisher) flush() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// drain delivers buffered messages oldest first until the buffer is empty,
// the connection drops or a publish fails. The mutex is never held while
// waiting on the broker.
func (p *RealPublisher) drain() error {
	for p.client.IsConnectionOpen() {
		p.mu.Lock()
		msgs := p.buf.drainAll()
		p.mu.Unlock()
		if len(msgs) == 0 {
			return nil
		}

		for i, msg := range msgs {
			_, err := p.breaker.Execute(func() (interface{}, error) {
				return nil, p.publishNow(msg)
			})
			if err != nil {
				p.requeue(msgs[i:])
				return err
			}
		}
	}
	return nil
}

// requeue puts undelivered messages back ahead of anything sent meanwhile.
func (p *RealPublisher) requeue(msgs []bufferedMsg) {
	p.mu.Lock()
	defer p.mu.Unlock()
	newer := p.buf.drainAll()
	for _, m := range msgs {
		p.buf.push(m)
	}
	for _, m := range newer {
		p.buf.push(m)
	}
}

// Buffered returns the number of messages waiting for a connection.
func (p *RealPublisher) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buf.len()
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Close stops the sender goroutine, makes one last delivery attempt for
// anything still queued (such as the SHUTDOWN event) and disconnects.
func (p *RealPublisher) Close() error {
	var err error
	p.closeOnce.Do(func() {
		close(p.done)
		p.wg.Wait()
		err = p.drain()
		p.client.Disconnect(1000) // 1 second timeout
	})
	if err != nil {
		return fmt.Errorf("deliver buffered messages: %w", err)
	}
	return nil
}
