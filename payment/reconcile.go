package payment

import (
	"context"

	"fashion-store/models"

	"github.com/sirupsen/logrus"
)

// StatusUpdater writes an order status
type StatusUpdater interface {
	MarkStatus(ctx context.Context, orderID string, status models.OrderStatus) error
}

// Reconciler moves an order forward as soon as the payment window reports
// success, ahead of the gateway's server-to-server notification. The
// notification stays authoritative; failures here are only logged.
type Reconciler struct {
	updater StatusUpdater
	log     logrus.FieldLogger
}

func NewReconciler(updater StatusUpdater, log logrus.FieldLogger) *Reconciler {
	return &Reconciler{updater: updater, log: log}
}

func (r *Reconciler) MarkProcessing(ctx context.Context, orderID string) {
	if err := r.updater.MarkStatus(ctx, orderID, models.StatusProcessing); err != nil {
		r.log.WithFields(logrus.Fields{"order_id": orderID, "err": err}).Warn("could not mark order processing after payment")
	}
}
