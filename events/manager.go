package events

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"
	"sync"
	"time"

	_ "github.com/pitabwire/natspubsub" // nats:// driver
	"github.com/pitabwire/util"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"gocloud.dev/pubsub"
	_ "gocloud.dev/pubsub/mempubsub" // mem:// driver

	"github.com/pitabwire/lingua/config"
	"github.com/pitabwire/lingua/internal/codec"
	"github.com/pitabwire/lingua/workerpool"
)

const meterName = "github.com/pitabwire/lingua/events"

var (
	ErrUnknownEvent  = errors.New("event not found in registry")
	ErrMissingHeader = errors.New("missing event header")
	ErrNotOpen       = errors.New("events manager is not open")
)

var attrEventKey = attribute.Key("lingua_event")

// Manager publishes events to, and dispatches events from, one queue.
type Manager struct {
	cfg  config.ConfigurationEvents
	pool *workerpool.Manager

	mu       sync.RWMutex
	registry map[string]Event
	topic    *pubsub.Topic
	sub      *pubsub.Subscription
	stop     context.CancelFunc
	stopped  chan struct{}

	emitted metric.Int64Counter
	handled metric.Int64Counter
	failed  metric.Int64Counter
}

// NewManager creates a manager for the queue named in cfg. Received messages
// are handled on pool.
func NewManager(cfg config.ConfigurationEvents, pool *workerpool.Manager) *Manager {
	m := &Manager{
		cfg:      cfg,
		pool:     pool,
		registry: map[string]Event{},
	}

	meter := otel.Meter(meterName)
	m.emitted, _ = meter.Int64Counter("lingua/events/emitted")
	m.handled, _ = meter.Int64Counter("lingua/events/handled")
	m.failed, _ = meter.Int64Counter("lingua/events/failed")
	return m
}

// Add registers evt, replacing an event of the same name.
func (m *Manager) Add(evt Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.registry[evt.Name()] = evt
}

// Get returns the event registered under name.
func (m *Manager) Get(name string) (Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	evt, ok := m.registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEvent, name)
	}
	return evt, nil
}

// Open opens the topic events are emitted to. It is safe to call again.
func (m *Manager) Open(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.topic != nil {
		return nil
	}
	url := m.cfg.GetEventsQueueURL()
	if strings.TrimSpace(url) == "" {
		return errors.New("events queue url is empty")
	}

	topic, err := pubsub.OpenTopic(ctx, url)
	if err != nil {
		return fmt.Errorf("open events topic: %w", err)
	}
	m.topic = topic
	return nil
}

// Emit publishes payload as the event called name. The trace context of ctx
// travels in the message metadata.
func (m *Manager) Emit(ctx context.Context, name string, payload any) error {
	m.mu.RLock()
	topic := m.topic
	m.mu.RUnlock()
	if topic == nil {
		return ErrNotOpen
	}

	body, err := codec.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", name, err)
	}

	metadata := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, metadata)
	metadata[HeaderName] = name

	if err = topic.Send(ctx, &pubsub.Message{Body: body, Metadata: metadata}); err != nil {
		util.Log(ctx).WithError(err).WithField("name", name).Error("could not emit event")
		return err
	}
	m.emitted.Add(ctx, 1, metric.WithAttributes(attrEventKey.String(name)))
	return nil
}

// Listen opens the subscription and dispatches messages until ctx ends or
// Close is called. It returns once the subscription is open.
func (m *Manager) Listen(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sub != nil {
		return nil
	}
	if m.pool == nil {
		return errors.New("events manager has no worker pool")
	}

	sub, err := pubsub.OpenSubscription(ctx, m.cfg.GetEventsSubscriptionURL())
	if err != nil {
		return fmt.Errorf("open events subscription: %w", err)
	}
	m.sub = sub

	lctx, cancel := context.WithCancel(ctx)
	m.stop = cancel
	m.stopped = make(chan struct{})
	go m.listen(lctx, sub, m.stopped)
	return nil
}

func (m *Manager) listen(ctx context.Context, sub *pubsub.Subscription, stopped chan<- struct{}) {
	defer close(stopped)

	log := util.Log(ctx).WithField("url", m.cfg.GetEventsSubscriptionURL())
	log.Debug("listening for events")

	for {
		msg, err := sub.Receive(ctx)
		if err != nil {
			if ctx.Err() == nil {
				log.WithError(err).Error("could not receive event, stopping listener")
			}
			return
		}

		job := workerpool.NewJob(func(jobCtx context.Context, _ workerpool.ResultPipe[struct{}]) error {
			return m.dispatch(jobCtx, msg)
		}, workerpool.WithJobName("event"))

		if err = workerpool.Submit(ctx, m.pool, job); err != nil {
			log.WithError(err).Error("could not schedule event")
			settle(msg, false)
		}
	}
}

func (m *Manager) dispatch(ctx context.Context, msg *pubsub.Message) error {
	metadata := propagation.MapCarrier(maps.Clone(msg.Metadata))
	ctx = otel.GetTextMapPropagator().Extract(ctx, metadata)

	err := m.Handle(ctx, metadata, msg.Body)
	settle(msg, err == nil)
	return err
}

func settle(msg *pubsub.Message, ok bool) {
	if ok || !msg.Nackable() {
		msg.Ack()
		return
	}
	msg.Nack()
}

// Handle decodes, validates and executes one message.
func (m *Manager) Handle(ctx context.Context, metadata map[string]string, body []byte) error {
	name := metadata[HeaderName]
	log := util.Log(ctx).WithField("event", name)

	err := m.handle(ctx, name, body)
	if err != nil {
		log.WithError(err).Warn("could not handle event")
		m.failed.Add(ctx, 1, metric.WithAttributes(attrEventKey.String(name)))
		return err
	}
	m.handled.Add(ctx, 1, metric.WithAttributes(attrEventKey.String(name)))
	return nil
}

func (m *Manager) handle(ctx context.Context, name string, body []byte) error {
	if name == "" {
		return ErrMissingHeader
	}
	evt, err := m.Get(name)
	if err != nil {
		return err
	}

	payload := evt.PayloadType()
	if err = codec.Unmarshal(body, payload); err != nil {
		return fmt.Errorf("decode %s payload: %w", name, err)
	}
	if err = evt.Validate(ctx, payload); err != nil {
		return fmt.Errorf("validate %s payload: %w", name, err)
	}
	return evt.Execute(ctx, payload)
}

// Close stops listening and shuts the topic and subscription down.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	sub, topic, stop, stopped := m.sub, m.topic, m.stop, m.stopped
	m.sub, m.topic, m.stop, m.stopped = nil, nil, nil, nil
	m.mu.Unlock()

	if stop != nil {
		stop()
	}

	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	var errs []error
	if sub != nil {
		errs = append(errs, sub.Shutdown(sctx))
	}
	if stopped != nil {
		<-stopped
	}
	if topic != nil {
		errs = append(errs, topic.Shutdown(sctx))
	}
	return errors.Join(errs...)
}
