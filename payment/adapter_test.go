package payment

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"fashion-store/models"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type loaderMock struct {
	err   error
	calls int
}

func (l *loaderMock) Load(context.Context) error {
	l.calls++
	return l.err
}

type issuerMock struct {
	err      error
	requests []TokenRequest
}

func (i *issuerMock) IssueToken(_ context.Context, req TokenRequest) (*Token, error) {
	i.requests = append(i.requests, req)
	if i.err != nil {
		return nil, i.err
	}
	return &Token{OrderID: req.OrderID, GatewayOrderID: req.OrderID, Token: "tok-" + req.OrderID}, nil
}

type updaterMock struct {
	mu      sync.Mutex
	updates map[string]models.OrderStatus
	err     error
}

func (u *updaterMock) MarkStatus(_ context.Context, orderID string, status models.OrderStatus) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.updates == nil {
		u.updates = map[string]models.OrderStatus{}
	}
	u.updates[orderID] = status
	return u.err
}

type adapterFixture struct {
	adapter *Adapter
	loader  *loaderMock
	issuer  *issuerMock
	popups  *Popups
	updater *updaterMock
}

func newFixture(t *testing.T) *adapterFixture {
	log, _ := test.NewNullLogger()
	f := &adapterFixture{
		loader:  &loaderMock{},
		issuer:  &issuerMock{},
		popups:  NewPopups(0, log),
		updater: &updaterMock{},
	}
	f.adapter = NewAdapter(f.loader, f.issuer, f.popups, NewReconciler(f.updater, log), log)
	require.NoError(t, f.adapter.Load(context.Background()))
	return f
}

func TestAdapter_ScriptFailureIsTerminal(t *testing.T) {
	log, _ := test.NewNullLogger()
	loader := &loaderMock{err: errors.New("dns failure")}
	a := NewAdapter(loader, &issuerMock{}, NewPopups(0, log), nil, log)

	err := a.Load(context.Background())
	assert.ErrorIs(t, err, ErrScriptUnavailable)
	assert.Equal(t, StateFailed, a.State())

	loader.err = nil
	assert.ErrorIs(t, a.Load(context.Background()), ErrScriptUnavailable)
	assert.Equal(t, 1, loader.calls)

	err = a.ProcessPayment(context.Background(), TokenRequest{OrderID: "o"}, Hooks{})
	assert.ErrorIs(t, err, ErrScriptUnavailable)
}

func TestAdapter_NotLoaded(t *testing.T) {
	log, _ := test.NewNullLogger()
	a := NewAdapter(&loaderMock{}, &issuerMock{}, NewPopups(0, log), nil, log)
	err := a.ProcessPayment(context.Background(), TokenRequest{OrderID: "o"}, Hooks{})
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestAdapter_OnlyOneWindow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.adapter.ProcessPayment(ctx, TokenRequest{OrderID: "o-1"}, Hooks{}))
	assert.True(t, f.adapter.Active())

	err := f.adapter.ProcessPayment(ctx, TokenRequest{OrderID: "o-1", Retry: true}, Hooks{})
	assert.ErrorIs(t, err, ErrPopupActive)
	assert.Len(t, f.issuer.requests, 1)
}

func TestAdapter_EveryOutcomeReleasesTheSlot(t *testing.T) {
	outcomes := []Outcome{OutcomeSuccess, OutcomePending, OutcomeError, OutcomeClosed}
	for _, outcome := range outcomes {
		t.Run(outcome.String(), func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			var fired []string
			hooks := Hooks{
				OnSuccess: func(context.Context, Result) { fired = append(fired, "success") },
				OnPending: func(context.Context, Result) { fired = append(fired, "pending") },
				OnError:   func(context.Context, Result) { fired = append(fired, "error") },
				OnClose:   func(context.Context, Result) { fired = append(fired, "close") },
			}

			require.NoError(t, f.adapter.ProcessPayment(ctx, TokenRequest{OrderID: "o-1"}, hooks))
			require.NoError(t, f.popups.Resolve(ctx, "o-1", Result{Outcome: outcome}))

			assert.Equal(t, []string{outcome.String()}, fired)
			assert.False(t, f.adapter.Active())
			assert.NoError(t, f.adapter.ProcessPayment(ctx, TokenRequest{OrderID: "o-1", Retry: true}, hooks))
		})
	}
}

func TestAdapter_SuccessReconcilesProcessing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.adapter.ProcessPayment(ctx, TokenRequest{OrderID: "o-1"}, Hooks{}))
	require.NoError(t, f.popups.Resolve(ctx, "o-1", Result{Outcome: OutcomeSuccess}))

	assert.Equal(t, models.StatusProcessing, f.updater.updates["o-1"])
}

func TestAdapter_PendingDoesNotTouchOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.adapter.ProcessPayment(ctx, TokenRequest{OrderID: "o-1"}, Hooks{}))
	require.NoError(t, f.popups.Resolve(ctx, "o-1", Result{Outcome: OutcomePending}))

	assert.Empty(t, f.updater.updates)
}

func TestAdapter_TokenFailureIsRetryable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.issuer.err = errors.New("503")

	err := f.adapter.ProcessPayment(ctx, TokenRequest{OrderID: "o-1"}, Hooks{})
	assert.ErrorIs(t, err, ErrTokenRequest)
	assert.Equal(t, StateReady, f.adapter.State())
	assert.Error(t, f.adapter.Err())

	f.issuer.err = nil
	assert.NoError(t, f.adapter.ProcessPayment(ctx, TokenRequest{OrderID: "o-1"}, Hooks{}))
}

func TestAdapter_ErrorOutcomeRecordsError(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.adapter.ProcessPayment(ctx, TokenRequest{OrderID: "o-1"}, Hooks{}))
	require.NoError(t, f.popups.Resolve(ctx, "o-1", Result{Outcome: OutcomeError, Message: "card declined"}))

	assert.ErrorContains(t, f.adapter.Err(), "card declined")
	assert.True(t, f.adapter.Ready())
}

func TestPopups_ResolveUnknown(t *testing.T) {
	log, _ := test.NewNullLogger()
	p := NewPopups(0, log)
	assert.ErrorIs(t, p.Resolve(context.Background(), "nope", Result{Outcome: OutcomeSuccess}), ErrNoPopup)
}

func TestPopups_StaleWindowIsClosed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	clock := time.Now()
	f.popups.now = func() time.Time { return clock }

	var closed []Result
	hooks := Hooks{OnClose: func(_ context.Context, r Result) { closed = append(closed, r) }}
	require.NoError(t, f.adapter.ProcessPayment(ctx, TokenRequest{OrderID: "o-1"}, hooks))

	assert.False(t, f.popups.Expire(ctx, "o-1"), "fresh windows stay open")
	_, ok := f.popups.Token("o-1")
	assert.True(t, ok)

	clock = clock.Add(DefaultPopupTTL)
	_, ok = f.popups.Token("o-1")
	assert.False(t, ok)
	assert.True(t, f.popups.Expire(ctx, "o-1"))
	assert.False(t, f.popups.Expire(ctx, "o-1"))

	require.Len(t, closed, 1)
	assert.Equal(t, OutcomeClosed, closed[0].Outcome)
	assert.Equal(t, "o-1", closed[0].OrderID)
	assert.True(t, f.adapter.Ready())
	assert.ErrorIs(t, f.popups.Resolve(ctx, "o-1", Result{Outcome: OutcomeSuccess}), ErrNoPopup)

	require.NoError(t, f.adapter.ProcessPayment(ctx, TokenRequest{OrderID: "o-1", Retry: true}, hooks))
	assert.True(t, f.adapter.Active())
}

func TestPopups_OpenSweepsStaleWindows(t *testing.T) {
	log, _ := test.NewNullLogger()
	p := NewPopups(time.Minute, log)
	clock := time.Now()
	p.now = func() time.Time { return clock }
	ctx := context.Background()

	var outcomes []Outcome
	done := func(_ context.Context, r Result) { outcomes = append(outcomes, r.Outcome) }
	require.NoError(t, p.Open(ctx, Token{OrderID: "a"}, done))

	clock = clock.Add(2 * time.Minute)
	require.NoError(t, p.Open(ctx, Token{OrderID: "b"}, done))
	assert.Equal(t, []Outcome{OutcomeClosed}, outcomes)

	_, ok := p.Token("a")
	assert.False(t, ok)
	_, ok = p.Token("b")
	assert.True(t, ok)
	assert.ErrorIs(t, p.Open(ctx, Token{OrderID: "b"}, done), ErrPopupActive)
}

func TestReconciler_FailureIsLoggedOnly(t *testing.T) {
	log, hook := test.NewNullLogger()
	r := NewReconciler(&updaterMock{err: errors.New("timeout")}, log)

	r.MarkProcessing(context.Background(), "o-1")

	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "could not mark order processing after payment", hook.LastEntry().Message)
	assert.Equal(t, "o-1", hook.LastEntry().Data["order_id"])
}
