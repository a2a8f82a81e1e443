package cart

import (
	"context"
	"errors"
	"fmt"
)

// Markers remember an owner's hosted-payment attempt across page reloads:
// which order has a payment window open, and which order last completed.
type Markers struct {
	storage Storage
	owner   string
}

func NewMarkers(storage Storage, owner string) *Markers {
	return &Markers{storage: storage, owner: owner}
}

func (m *Markers) inflightKey() string {
	return fmt.Sprintf("payment:%s:inflight", m.owner)
}

func (m *Markers) completedKey() string {
	return fmt.Sprintf("payment:%s:completed", m.owner)
}

func (m *Markers) MarkInFlight(ctx context.Context, orderID string) error {
	return m.storage.Save(ctx, m.inflightKey(), []byte(orderID))
}

// InFlight returns the order with an open payment window, or "" when none
func (m *Markers) InFlight(ctx context.Context) (string, error) {
	return m.read(ctx, m.inflightKey())
}

// MarkCompleted records the finished order and drops the in-flight marker
func (m *Markers) MarkCompleted(ctx context.Context, orderID string) error {
	if err := m.storage.Save(ctx, m.completedKey(), []byte(orderID)); err != nil {
		return err
	}
	return m.storage.Delete(ctx, m.inflightKey())
}

func (m *Markers) Completed(ctx context.Context) (string, error) {
	return m.read(ctx, m.completedKey())
}

// ConsumeCompleted returns the completed order once and forgets it
func (m *Markers) ConsumeCompleted(ctx context.Context) (string, error) {
	orderID, err := m.read(ctx, m.completedKey())
	if err != nil || orderID == "" {
		return orderID, err
	}
	return orderID, m.storage.Delete(ctx, m.completedKey())
}

func (m *Markers) ClearInFlight(ctx context.Context) error {
	return m.storage.Delete(ctx, m.inflightKey())
}

func (m *Markers) read(ctx context.Context, key string) (string, error) {
	data, err := m.storage.Load(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}
