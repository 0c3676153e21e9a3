package webhook

import "gearted/internal/models"

// transition is the transaction state machine, kept pure so it can be
// checked exhaustively. It returns the target status for applying kind
// to the current status, and whether that move is legal.
func transition(current string, kind EventKind) (string, bool) {
	switch kind {
	case EventPaymentSucceeded:
		if current == models.TransactionStatusPending || current == models.TransactionStatusProcessing {
			return models.TransactionStatusSucceeded, true
		}
	case EventPaymentProcessing, EventPaymentAuthorized:
		if current == models.TransactionStatusPending {
			return models.TransactionStatusProcessing, true
		}
	case EventPaymentFailed:
		if current == models.TransactionStatusPending || current == models.TransactionStatusProcessing {
			return models.TransactionStatusFailed, true
		}
	case EventPaymentCanceled:
		if current == models.TransactionStatusPending || current == models.TransactionStatusProcessing {
			return models.TransactionStatusCancelled, true
		}
	case EventChargeRefunded:
		if current == models.TransactionStatusSucceeded {
			return models.TransactionStatusRefunded, true
		}
	}
	return current, false
}

// targetOf returns the terminal status an event kind drives toward,
// used to recognize duplicate deliveries of an already-applied event.
func targetOf(kind EventKind) string {
	switch kind {
	case EventPaymentSucceeded:
		return models.TransactionStatusSucceeded
	case EventPaymentProcessing, EventPaymentAuthorized:
		return models.TransactionStatusProcessing
	case EventPaymentFailed:
		return models.TransactionStatusFailed
	case EventPaymentCanceled:
		return models.TransactionStatusCancelled
	case EventChargeRefunded:
		return models.TransactionStatusRefunded
	}
	return ""
}
