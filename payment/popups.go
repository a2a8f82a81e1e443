package payment

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var ErrNoPopup = errors.New("no payment window is open for this order")

// Outcome is how a payment window ended
type Outcome int

const (
	OutcomeSuccess Outcome = iota + 1
	OutcomePending
	OutcomeError
	OutcomeClosed // dismissed before finishing
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomePending:
		return "pending"
	case OutcomeError:
		return "error"
	case OutcomeClosed:
		return "close"
	}
	return "unknown"
}

// ParseOutcome accepts the callback names snap.js uses
func ParseOutcome(s string) (Outcome, bool) {
	switch s {
	case "success", "onSuccess":
		return OutcomeSuccess, true
	case "pending", "onPending":
		return OutcomePending, true
	case "error", "onError":
		return OutcomeError, true
	case "close", "onClose":
		return OutcomeClosed, true
	}
	return 0, false
}

// Result is what the payment window reported
type Result struct {
	Outcome           Outcome `json:"-"`
	OrderID           string  `json:"order_id"`
	GatewayOrderID    string  `json:"gateway_order_id,omitempty"`
	TransactionID     string  `json:"transaction_id,omitempty"`
	TransactionStatus string  `json:"transaction_status,omitempty"`
	PaymentType       string  `json:"payment_type,omitempty"`
	Message           string  `json:"message,omitempty"`
}

// Widget opens the hosted payment window. done is called exactly once with
// the window's outcome.
type Widget interface {
	Open(ctx context.Context, token Token, done func(ctx context.Context, r Result)) error
}

// DefaultPopupTTL is how long a payment window may stay open without the
// browser reporting back. Snap tokens themselves live much longer.
const DefaultPopupTTL = 15 * time.Minute

// Popups is the server side of the hosted widget: Open records the window
// the browser is about to show and Resolve delivers the callback the
// browser posts back. A window the browser never reports on is closed once
// it is older than the TTL.
type Popups struct {
	log logrus.FieldLogger
	ttl time.Duration
	now func() time.Time

	mu   sync.Mutex
	open map[string]*popup
}

type popup struct {
	token    Token
	done     func(ctx context.Context, r Result)
	openedAt time.Time
}

// NewPopups tracks open windows. A ttl of zero uses DefaultPopupTTL.
func NewPopups(ttl time.Duration, log logrus.FieldLogger) *Popups {
	if ttl <= 0 {
		ttl = DefaultPopupTTL
	}
	return &Popups{log: log, ttl: ttl, now: time.Now, open: make(map[string]*popup)}
}

func (p *Popups) Open(ctx context.Context, token Token, done func(ctx context.Context, r Result)) error {
	p.ExpireStale(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.open[token.OrderID]; ok {
		return ErrPopupActive
	}
	p.open[token.OrderID] = &popup{token: token, done: done, openedAt: p.now()}
	p.log.WithFields(logrus.Fields{"order_id": token.OrderID, "gateway_order_id": token.GatewayOrderID}).Debug("payment window opened")
	return nil
}

// Token returns the token of the window open for an order
func (p *Popups) Token(orderID string) (Token, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pop, ok := p.open[orderID]
	if !ok || p.stale(pop) {
		return Token{}, false
	}
	return pop.token, true
}

func (p *Popups) Resolve(ctx context.Context, orderID string, r Result) error {
	p.mu.Lock()
	pop, ok := p.open[orderID]
	if ok {
		delete(p.open, orderID)
	}
	p.mu.Unlock()

	if !ok {
		return ErrNoPopup
	}
	p.deliver(ctx, orderID, pop, r)
	return nil
}

// Expire closes the window of one order if it has outlived the TTL. It
// reports whether a window was closed.
func (p *Popups) Expire(ctx context.Context, orderID string) bool {
	p.mu.Lock()
	pop, ok := p.open[orderID]
	if ok && p.stale(pop) {
		delete(p.open, orderID)
	} else {
		ok = false
	}
	p.mu.Unlock()

	if ok {
		p.deliver(ctx, orderID, pop, Result{Outcome: OutcomeClosed, Message: "payment window timed out"})
	}
	return ok
}

// ExpireStale closes every window that has outlived the TTL
func (p *Popups) ExpireStale(ctx context.Context) int {
	p.mu.Lock()
	expired := make(map[string]*popup)
	for id, pop := range p.open {
		if p.stale(pop) {
			expired[id] = pop
			delete(p.open, id)
		}
	}
	p.mu.Unlock()

	for id, pop := range expired {
		p.deliver(ctx, id, pop, Result{Outcome: OutcomeClosed, Message: "payment window timed out"})
	}
	return len(expired)
}

// stale is called with mu held
func (p *Popups) stale(pop *popup) bool {
	return p.now().Sub(pop.openedAt) >= p.ttl
}

// deliver runs the done callback outside mu since it takes the adapter and
// session locks.
func (p *Popups) deliver(ctx context.Context, orderID string, pop *popup, r Result) {
	r.OrderID = orderID
	if r.GatewayOrderID == "" {
		r.GatewayOrderID = pop.token.GatewayOrderID
	}
	p.log.WithFields(logrus.Fields{"order_id": orderID, "outcome": r.Outcome.String()}).Info("payment window resolved")
	pop.done(ctx, r)
}
