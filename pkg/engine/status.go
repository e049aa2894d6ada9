package engine

// MapStatus is a pure total function from (decision tier, gate verdict) to
// a subject lifecycle status. Every input pair maps to exactly one status;
// unmapped tiers default to pending_review.
func MapStatus(tier Tier, gate GateVerdict) Status {
	if gate == GateFail {
		return StatusDeclined
	}
	switch tier {
	case TierDecline:
		return StatusDeclined
	case TierApproveFund:
		return StatusApproved
	case TierIncubateDerisk:
		return StatusIncubate
	case TierReviewReevaluate:
		return StatusRFIPending
	default:
		return StatusPendingReview
	}
}
