package poller

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/lesageromain2-creator/cafe-stockholm-commerce/internal/commerce"
	"github.com/lesageromain2-creator/cafe-stockholm-commerce/internal/notify"
	"github.com/lesageromain2-creator/cafe-stockholm-commerce/internal/order"
)

// StatusFetcher is the slice of the commerce API client the poller
// needs.
type StatusFetcher interface {
	GetOrder(ctx context.Context, orderID string) (commerce.OrderResponse, error)
}

// Journal receives status transitions observed remotely.
type Journal interface {
	UpdateStatus(ctx context.Context, orderID string, to order.Status) error
}

// Config wires a Poller. Zero Interval and MaxWait get sane defaults.
type Config struct {
	Fetcher  StatusFetcher
	Journal  Journal
	Sink     notify.Sink
	Logger   *log.Logger
	Interval time.Duration
	MaxWait  time.Duration
}

// Poller watches a remote order until it reaches a terminal status,
// for customers who return from the payment provider before the
// callback has landed. One fetch is in flight at a time; ticks that
// arrive during a slow fetch are skipped, not queued.
type Poller struct {
	cfg Config
}

func New(cfg Config) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = 3 * time.Second
	}
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = 2 * time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	if cfg.Sink == nil {
		cfg.Sink = notify.NewLogSink(cfg.Logger)
	}
	return &Poller{cfg: cfg}
}

// ErrTimeout means the order never reached a terminal status within
// MaxWait.
var ErrTimeout = errors.New("order status poll timed out")

// Watch blocks until the order reaches a terminal status, the context
// is cancelled, or MaxWait elapses. It returns the final status seen.
func (p *Poller) Watch(ctx context.Context, orderID string) (order.Status, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.MaxWait)
	defer cancel()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	var last order.Status
	for {
		status, err := p.poll(ctx, orderID)
		if err != nil {
			if ctx.Err() != nil {
				return last, p.finish(ctx, last)
			}
			// Transient fetch failure; keep the previous status and retry
			// on the next tick.
			p.cfg.Logger.Printf("poll order %s: %v", orderID, err)
		} else {
			last = status
			if status.IsTerminal() {
				p.record(ctx, orderID, status)
				return status, nil
			}
		}

		select {
		case <-ctx.Done():
			return last, p.finish(ctx, last)
		case <-ticker.C:
		}
	}
}

func (p *Poller) poll(ctx context.Context, orderID string) (order.Status, error) {
	resp, err := p.cfg.Fetcher.GetOrder(ctx, orderID)
	if err != nil {
		return "", err
	}
	return order.Status(resp.Status), nil
}

// record reflects the observed terminal status into the journal and
// tells the user. Redelivered transitions are idempotent on the
// journal side.
func (p *Poller) record(ctx context.Context, orderID string, status order.Status) {
	if p.cfg.Journal != nil {
		if err := p.cfg.Journal.UpdateStatus(ctx, orderID, status); err != nil {
			p.cfg.Logger.Printf("journal order %s status %s: %v", orderID, status, err)
		}
	}
	switch status {
	case order.StatusPaid:
		p.cfg.Sink.Notify(ctx, notify.KindSuccess, "Payment confirmed. Your order is on its way!")
	case order.StatusCancelled:
		p.cfg.Sink.Notify(ctx, notify.KindInfo, "The order was cancelled.")
	}
}

func (p *Poller) finish(ctx context.Context, last order.Status) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: last status %q", ErrTimeout, last)
	}
	return ctx.Err()
}
