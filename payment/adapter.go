package payment

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var (
	ErrPopupActive  = errors.New("a payment window is already open")
	ErrNotReady     = errors.New("payment script is not loaded yet")
	ErrTokenRequest = errors.New("could not get a payment token")
)

// State of an Adapter. Only one payment window may be open at a time, so
// the adapter moves Ready -> Open -> Ready; Failed is terminal.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateReady
	StateOpen
	StateFailed
)

func (s State) String() string {
	return [...]string{"idle", "loading", "ready", "open", "failed"}[s]
}

// Hooks are the caller's reactions to a payment window outcome
type Hooks struct {
	OnSuccess func(ctx context.Context, r Result)
	OnPending func(ctx context.Context, r Result)
	OnError   func(ctx context.Context, r Result)
	OnClose   func(ctx context.Context, r Result)
}

// Adapter drives one customer's hosted payment: load the script once, get a
// token, open the window and route its outcome.
type Adapter struct {
	loader     ScriptLoader
	issuer     TokenIssuer
	widget     Widget
	reconciler *Reconciler
	log        logrus.FieldLogger

	mu      sync.Mutex
	state   State
	err     error
	current *Token
}

func NewAdapter(loader ScriptLoader, issuer TokenIssuer, widget Widget, reconciler *Reconciler, log logrus.FieldLogger) *Adapter {
	return &Adapter{
		loader:     loader,
		issuer:     issuer,
		widget:     widget,
		reconciler: reconciler,
		log:        log,
	}
}

// Load makes the widget script available. A load failure is final for this adapter.
func (a *Adapter) Load(ctx context.Context) error {
	a.mu.Lock()
	switch a.state {
	case StateFailed:
		err := a.err
		a.mu.Unlock()
		return err
	case StateLoading:
		a.mu.Unlock()
		return ErrNotReady
	case StateReady, StateOpen:
		a.mu.Unlock()
		return nil
	}
	a.state = StateLoading
	a.mu.Unlock()

	err := a.loader.Load(ctx)

	a.mu.Lock()
	defer a.mu.Unlock()
	if err != nil {
		if !errors.Is(err, ErrScriptUnavailable) {
			err = errors.Wrapf(ErrScriptUnavailable, "%v", err)
		}
		a.state = StateFailed
		a.err = err
		return err
	}
	a.state = StateReady
	a.err = nil
	return nil
}

func (a *Adapter) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

func (a *Adapter) Ready() bool {
	return a.State() == StateReady
}

func (a *Adapter) Loading() bool {
	return a.State() == StateLoading
}

// Active reports whether a payment window is open
func (a *Adapter) Active() bool {
	return a.State() == StateOpen
}

// Err is the last load or payment error
func (a *Adapter) Err() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.err
}

// Current is the token of the open window, if any
func (a *Adapter) Current() (Token, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.current == nil {
		return Token{}, false
	}
	return *a.current, true
}

// ProcessPayment requests a token and opens the payment window. The slot is
// taken before the token request so a second call fails fast with
// ErrPopupActive; every outcome gives it back.
func (a *Adapter) ProcessPayment(ctx context.Context, req TokenRequest, hooks Hooks) error {
	a.mu.Lock()
	switch a.state {
	case StateOpen:
		a.mu.Unlock()
		return ErrPopupActive
	case StateFailed:
		err := a.err
		a.mu.Unlock()
		return err
	case StateIdle, StateLoading:
		a.mu.Unlock()
		return ErrNotReady
	}
	a.state = StateOpen
	a.err = nil
	a.mu.Unlock()

	token, err := a.issuer.IssueToken(ctx, req)
	if err != nil {
		err = errors.Wrapf(ErrTokenRequest, "%v", err)
		a.release(err)
		return err
	}

	a.mu.Lock()
	a.current = token
	a.mu.Unlock()

	orderID := token.OrderID
	err = a.widget.Open(ctx, *token, func(ctx context.Context, r Result) {
		r.OrderID = orderID
		a.finish(ctx, r, hooks)
	})
	if err != nil {
		a.release(err)
		return err
	}
	a.log.WithFields(logrus.Fields{"order_id": orderID, "retry": req.Retry}).Info("payment window handed off")
	return nil
}

func (a *Adapter) release(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state == StateOpen {
		a.state = StateReady
	}
	a.current = nil
	a.err = err
}

func (a *Adapter) finish(ctx context.Context, r Result, hooks Hooks) {
	a.mu.Lock()
	if a.state != StateOpen {
		a.mu.Unlock()
		return
	}
	a.state = StateReady
	a.current = nil
	a.err = nil
	if r.Outcome == OutcomeError {
		a.err = errors.Errorf("payment failed: %s", r.Message)
	}
	a.mu.Unlock()

	switch r.Outcome {
	case OutcomeSuccess:
		if a.reconciler != nil {
			a.reconciler.MarkProcessing(ctx, r.OrderID)
		}
		call(ctx, hooks.OnSuccess, r)
	case OutcomePending:
		call(ctx, hooks.OnPending, r)
	case OutcomeError:
		call(ctx, hooks.OnError, r)
	case OutcomeClosed:
		call(ctx, hooks.OnClose, r)
	}
}

func call(ctx context.Context, hook func(context.Context, Result), r Result) {
	if hook != nil {
		hook(ctx, r)
	}
}
