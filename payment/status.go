package payment

import (
	"fmt"
	"regexp"
	"time"

	"fashion-store/models"
)

var retrySuffix = regexp.MustCompile(`-r\d+$`)

// RetryOrderID derives a fresh gateway order id; Midtrans refuses to reuse one
func RetryOrderID(orderID string, now time.Time) string {
	return fmt.Sprintf("%s-r%d", orderID, now.Unix())
}

// BaseOrderID strips a retry suffix from a gateway order id
func BaseOrderID(gatewayOrderID string) string {
	return retrySuffix.ReplaceAllString(gatewayOrderID, "")
}

// StatusFromTransaction maps a Midtrans transaction state onto an order status.
// ok is false for states that should not touch the order (e.g. refund).
func StatusFromTransaction(transactionStatus, fraudStatus string) (status models.OrderStatus, ok bool) {
	switch transactionStatus {
	case "capture":
		if fraudStatus == "challenge" {
			return models.StatusPending, true
		}
		return models.StatusPaid, true
	case "settlement":
		return models.StatusPaid, true
	case "pending":
		return models.StatusPending, true
	case "deny", "failure":
		return models.StatusFailed, true
	case "cancel", "expire":
		return models.StatusCancelled, true
	}
	return "", false
}

// Completed reports whether the redirect parameters describe a finished payment
func Completed(transactionStatus string) bool {
	return transactionStatus == "settlement" || transactionStatus == "capture"
}
