package queue

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "os"
    "path/filepath"
    "sync"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
    "go.uber.org/zap"
)

// Consumer drains the reservation event queue and appends one line per
// event to <Dir>/reservation.log.
type Consumer struct {
    URL   string
    Queue string
    Dir   string
    Log   *zap.Logger

    mu sync.Mutex // serialises writes to the log file
}

// NewConsumer returns a consumer writing under dir.
func NewConsumer(url, queue, dir string, log *zap.Logger) *Consumer {
    if queue == "" {
        queue = DefaultQueue
    }
    if dir == "" {
        dir = "logs"
    }
    if log == nil {
        log = zap.NewNop()
    }
    return &Consumer{URL: url, Queue: queue, Dir: dir, Log: log.Named("amqp-consumer")}
}

// Run connects to the broker and consumes until ctx is cancelled,
// reconnecting with exponential backoff (capped at 30s) when the broker
// goes away.  Malformed messages are rejected without requeue.
func (c *Consumer) Run(ctx context.Context) error {
    backoff := time.Second
    for {
        if err := ctx.Err(); err != nil {
            return err
        }
        conn, err := amqp.Dial(c.URL)
        if err != nil {
            c.Log.Warn("dial failed", zap.Error(err), zap.Duration("retry_in", backoff))
            if !sleep(ctx, backoff) {
                return ctx.Err()
            }
            if backoff < 30*time.Second {
                backoff *= 2
            }
            continue
        }
        backoff = time.Second

        err = c.consume(ctx, conn)
        _ = conn.Close()
        if ctx.Err() != nil {
            return ctx.Err()
        }
        c.Log.Warn("consume loop ended, reconnecting", zap.Error(err))
        if !sleep(ctx, 2*time.Second) {
            return ctx.Err()
        }
    }
}

func sleep(ctx context.Context, d time.Duration) bool {
    t := time.NewTimer(d)
    defer t.Stop()
    select {
    case <-ctx.Done():
        return false
    case <-t.C:
        return true
    }
}

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := ch.Qos(50, 0, false); err != nil {
        c.Log.Warn("set QoS failed", zap.Error(err))
    }
    if err := declare(ch, c.Queue); err != nil {
        return fmt.Errorf("queue declare: %w", err)
    }
    msgs, err := ch.ConsumeWithContext(ctx, c.Queue, "", false, false, false, false, nil)
    if err != nil {
        return fmt.Errorf("queue consume: %w", err)
    }

    for d := range msgs {
        if err := c.Handle(d.Body); err != nil {
            c.Log.Warn("handle message failed", zap.Error(err))
            _ = d.Nack(false, false)
            continue
        }
        _ = d.Ack(false)
    }
    return errors.New("deliveries channel closed")
}

// Handle decodes one message body and appends it to the log file.
func (c *Consumer) Handle(body []byte) error {
    var ev ReservationEvent
    if err := json.Unmarshal(body, &ev); err != nil {
        return fmt.Errorf("unmarshal: %w", err)
    }
    if ev.Action == "" {
        return errors.New("event without action")
    }

    c.mu.Lock()
    defer c.mu.Unlock()
    if err := os.MkdirAll(c.Dir, 0o755); err != nil {
        return fmt.Errorf("mkdir %s: %w", c.Dir, err)
    }
    f, err := os.OpenFile(filepath.Join(c.Dir, "reservation.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
    if err != nil {
        return fmt.Errorf("open log file: %w", err)
    }
    defer f.Close()

    if _, err := f.WriteString(FormatLine(ev)); err != nil {
        return fmt.Errorf("write log: %w", err)
    }
    return nil
}

// FormatLine renders ev as a single human-readable log line.
func FormatLine(ev ReservationEvent) string {
    if ev.Action == ActionBulkCancelled {
        return fmt.Sprintf("[%s] Reservations %s | actor=%s | deleted=%d\n",
            ev.OccurredAt, ev.Action, ev.Actor, ev.Deleted)
    }
    return fmt.Sprintf("[%s] Reservation %s | reservation_id=%d | actor=%s | room=%q | name=%q | dormitory=%q | floor=%q | seat=%d\n",
        ev.OccurredAt, ev.Action, ev.ReservationID, ev.Actor, ev.RoomNo, ev.Name, ev.Dormitory, ev.Floor, ev.Seat)
}
