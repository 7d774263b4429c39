package entitlement

// DenyReason explains why the access gate refused a billable operation
type DenyReason string

// DenyReasonQuotaExceeded means the free-tier quota is used up and the
// tenant has no active subscription
const DenyReasonQuotaExceeded DenyReason = "QUOTA_EXCEEDED"

// Decision is the outcome of an access-gate evaluation
type Decision struct {
	Allowed bool
	// Metered is true when the allowed operation counts against the
	// free-tier quota (non-operator, non-subscriber)
	Metered bool
	Reason  DenyReason
}

// Decide is the access gate consulted before every billable operation. It is
// pure: it performs no I/O and must be re-evaluated against a freshly read
// entitlement record on every request.
//
// Decision order: operators are always allowed unmetered, then subscribers
// unmetered, then free-tier tenants while usage is below the limit, then
// denial with an upgrade prompt.
func Decide(ent *Entitlement, isOperator bool, freeLimit int64) Decision {
	if isOperator {
		return Decision{Allowed: true, Metered: false}
	}
	if ent.Subscribed {
		return Decision{Allowed: true, Metered: false}
	}
	if ent.UsageCount < freeLimit {
		return Decision{Allowed: true, Metered: true}
	}
	return Decision{Allowed: false, Reason: DenyReasonQuotaExceeded}
}
