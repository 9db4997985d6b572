package queue

import (
    "context"
    "encoding/json"
    "fmt"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
    "go.uber.org/zap"
)

// DefaultQueue is the durable queue reservation events are published to.
const DefaultQueue = "reservation.events"

// defaultDialTimeout bounds connection setup when ctx carries no deadline.
const defaultDialTimeout = 5 * time.Second

// Publisher publishes ReservationEvents to RabbitMQ.  Each Publish dials,
// declares the queue and publishes one persistent message, so a broker
// outage never leaves a broken connection behind.  Errors are logged and
// returned; callers treat them as non-fatal.
type Publisher struct {
    URL   string
    Queue string
    Log   *zap.Logger
}

// NewPublisher returns a publisher for url and queue.
func NewPublisher(url, queue string, log *zap.Logger) *Publisher {
    if queue == "" {
        queue = DefaultQueue
    }
    if log == nil {
        log = zap.NewNop()
    }
    return &Publisher{URL: url, Queue: queue, Log: log.Named("amqp-publisher")}
}

func declare(ch *amqp.Channel, queue string) error {
    _, err := ch.QueueDeclare(
        queue, // name
        true,  // durable
        false, // autoDelete
        false, // exclusive
        false, // noWait
        nil,   // args
    )
    return err
}

// dialTimeout is the time left before ctx's deadline, capped at
// defaultDialTimeout.
func dialTimeout(ctx context.Context) (time.Duration, error) {
    if err := ctx.Err(); err != nil {
        return 0, err
    }
    deadline, ok := ctx.Deadline()
    if !ok {
        return defaultDialTimeout, nil
    }
    left := time.Until(deadline)
    if left <= 0 {
        return 0, context.DeadlineExceeded
    }
    return min(left, defaultDialTimeout), nil
}

// Publish sends ev to the configured queue.
func (p *Publisher) Publish(ctx context.Context, ev ReservationEvent) error {
    body, err := json.Marshal(ev)
    if err != nil {
        return fmt.Errorf("marshal event: %w", err)
    }
    timeout, err := dialTimeout(ctx)
    if err != nil {
        return err
    }
    conn, err := amqp.DialConfig(p.URL, amqp.Config{
        Heartbeat: 10 * time.Second,
        Locale:    "en_US",
        Dial:      amqp.DefaultDial(timeout),
    })
    if err != nil {
        p.Log.Warn("dial failed", zap.Error(err))
        return err
    }
    defer func() { _ = conn.Close() }()

    ch, err := conn.Channel()
    if err != nil {
        p.Log.Warn("channel open failed", zap.Error(err))
        return err
    }
    defer func() { _ = ch.Close() }()

    if err := declare(ch, p.Queue); err != nil {
        p.Log.Warn("queue declare failed", zap.String("queue", p.Queue), zap.Error(err))
        return err
    }

    pub := amqp.Publishing{
        ContentType:  "application/json",
        DeliveryMode: amqp.Persistent,
        Timestamp:    time.Now().UTC(),
        Body:         body,
    }
    // default exchange, routing key = queue name
    if err := ch.PublishWithContext(ctx, "", p.Queue, false, false, pub); err != nil {
        p.Log.Warn("publish failed", zap.String("action", ev.Action), zap.Error(err))
        return err
    }
    return nil
}
