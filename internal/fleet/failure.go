package fleet

// FailureCategory classifies a delivery.failed event so the escalation
// engine can choose a recovery action (§4.5 FAILED_DELIVERY).
type FailureCategory string

const (
	FailureTransient       FailureCategory = "TRANSIENT" // driver-side hiccup, safe to retry now
	FailureRecipientAbsent FailureCategory = "RECIPIENT_ABSENT"
	FailureAddressIssue    FailureCategory = "ADDRESS_ISSUE"
	FailureRefused         FailureCategory = "REFUSED"
)

// RecoveryAction is the autonomous response the escalation engine takes
// for one failure category.
type RecoveryAction string

const (
	RecoveryImmediateRetry  RecoveryAction = "IMMEDIATE_RETRY"
	RecoveryScheduledRetry  RecoveryAction = "SCHEDULED_RETRY"
	RecoveryContactCustomer RecoveryAction = "CONTACT_CUSTOMER"
)

// RecoveryFor maps a failure category to its recovery action. An address
// issue or outright refusal cannot be fixed by retrying delivery, so both
// route to a human contacting the customer; a transient failure is worth
// retrying immediately, and an absent recipient is worth one scheduled
// retry before involving a human.
func RecoveryFor(cat FailureCategory) RecoveryAction {
	switch cat {
	case FailureTransient:
		return RecoveryImmediateRetry
	case FailureRecipientAbsent:
		return RecoveryScheduledRetry
	default:
		return RecoveryContactCustomer
	}
}
