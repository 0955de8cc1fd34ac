package queue

// This file contains the background consumer that listens to the
// reservation queues and appends one line per event to
// logs/reservations.log, where the mail notifier picks them up.

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "log/slog"
    "os"
    "path/filepath"
    "sync"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
)

// LogFileName is the file, under the consumer's directory, events are
// appended to.
const LogFileName = "reservations.log"

// Consumer drains the reservation queues into a log file.
type Consumer struct {
    URL    string
    Dir    string
    Logger *slog.Logger

    mu sync.Mutex // serializes appends
}

// Run connects to RabbitMQ, declares both reservation queues (durable) and
// consumes them until ctx is cancelled.  Lost connections are re-dialled
// with exponential backoff capped at 30 seconds.  A message that cannot be
// handled is rejected without requeue so it cannot spin.
func (c *Consumer) Run(ctx context.Context) error {
    log := c.Logger
    if log == nil {
        log = slog.Default()
    }
    backoff := time.Second
    for {
        conn, err := amqp.Dial(c.URL)
        if err != nil {
            log.Warn("reservation consumer: dial failed", "err", err, "retry_in", backoff)
            if !sleep(ctx, backoff) {
                return ctx.Err()
            }
            if backoff < 30*time.Second {
                backoff *= 2
            }
            continue
        }
        backoff = time.Second

        err = c.consumeLoop(ctx, conn, log)
        _ = conn.Close()
        if ctx.Err() != nil {
            return ctx.Err()
        }
        log.Warn("reservation consumer: consume loop ended; reconnecting", "err", err)
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

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection, log *slog.Logger) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := ch.Qos(50, 0, false); err != nil {
        log.Warn("reservation consumer: set QoS failed", "err", err)
    }

    merged := make(chan amqp.Delivery)
    var wg sync.WaitGroup
    for _, name := range []string{ReservationCreatedQueue, ReservationCancelledQueue} {
        if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
            return fmt.Errorf("queue declare %s: %w", name, err)
        }
        msgs, err := ch.Consume(name, "", false, false, false, false, nil)
        if err != nil {
            return fmt.Errorf("queue consume %s: %w", name, err)
        }
        wg.Add(1)
        go func() {
            defer wg.Done()
            for d := range msgs {
                select {
                case merged <- d:
                case <-ctx.Done():
                    return
                }
            }
        }()
    }
    done := make(chan struct{})
    go func() { wg.Wait(); close(done) }()

    for {
        select {
        case <-ctx.Done():
            return ctx.Err()
        case <-done:
            return errors.New("deliveries channel closed")
        case d := <-merged:
            if err := c.Handle(d.Body); err != nil {
                log.Error("reservation consumer: handle message failed", "message_id", d.MessageId, "err", err)
                _ = d.Nack(false, false)
                continue
            }
            _ = d.Ack(false)
        }
    }
}

// Handle decodes one event and appends its line to the log file.
func (c *Consumer) Handle(body []byte) error {
    var ev ReservationEvent
    if err := json.Unmarshal(body, &ev); err != nil {
        return fmt.Errorf("unmarshal: %w", err)
    }
    if ev.ReservationID == 0 || ev.Type == "" {
        return errors.New("event without type or reservation id")
    }
    dir := c.Dir
    if dir == "" {
        dir = "logs"
    }
    c.mu.Lock()
    defer c.mu.Unlock()
    if err := os.MkdirAll(dir, 0o755); err != nil {
        return fmt.Errorf("mkdir %s: %w", dir, err)
    }
    f, err := os.OpenFile(filepath.Join(dir, LogFileName), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
    if err != nil {
        return fmt.Errorf("open log file: %w", err)
    }
    defer f.Close()
    if _, err := f.WriteString(FormatLine(ev)); err != nil {
        return fmt.Errorf("write log: %w", err)
    }
    return nil
}

// FormatLine renders ev as a single human-friendly log line.
func FormatLine(ev ReservationEvent) string {
    verb := "Reservation created"
    if ev.Type == ReservationCancelledQueue {
        verb = "Reservation cancelled"
    }
    return fmt.Sprintf("[%s] %s | reservation_id=%d | date=%s | time=%s | guests=%d | name=%q | email=%s | status=%s\n",
        ev.OccurredAt, verb, ev.ReservationID, ev.Date, ev.Time, ev.PartySize, ev.Name, ev.Email, ev.Status)
}
