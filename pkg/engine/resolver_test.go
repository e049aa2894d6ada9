package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func pass() Phase1Result { return Phase1Result{Result: GatePass} }

func cleanRisk() Phase3Result {
	return Phase3Result{ExecutionMultiplier: 1.0, RiskGrade: "A"}
}

func TestResolveGateFailAlwaysDeclines(t *testing.T) {
	e := newTestEngine(t)
	p1 := Phase1Result{Result: GateFail, Rationale: "hard stop present: fraud"}
	p2 := Phase2Result{BaseScore: 98, Confidence: 100}

	p4 := e.Resolve(p1, p2, cleanRisk())
	assert.Equal(t, TierDecline, p4.DecisionTier)
	assert.Contains(t, p4.Conditions, "ethical gate failed: hard stop present: fraud")
	// The score is still computed for the record.
	assert.Equal(t, 98.0, p4.FinalScore)
}

func TestResolveApprove(t *testing.T) {
	e := newTestEngine(t)
	p2 := Phase2Result{BaseScore: 85, Confidence: 90}
	p3 := Phase3Result{ExecutionMultiplier: 0.952, RiskGrade: "A"}

	p4 := e.Resolve(pass(), p2, p3)
	assert.InDelta(t, 80.92, p4.FinalScore, 1e-9)
	assert.Equal(t, TierApproveFund, p4.DecisionTier)
	assert.Empty(t, p4.Conditions)
}

func TestResolveTierLadder(t *testing.T) {
	e := newTestEngine(t)
	tests := []struct {
		base float64
		want Tier
	}{
		{90, TierApproveFund},
		{80, TierApproveFund},
		{79.9, TierIncubateDerisk},
		{60, TierIncubateDerisk},
		{59.9, TierReviewReevaluate},
		{40, TierReviewReevaluate},
		{39.9, TierDecline},
		{0, TierDecline},
	}
	for _, tt := range tests {
		p4 := e.Resolve(pass(), Phase2Result{BaseScore: tt.base, Confidence: 100}, cleanRisk())
		assert.Equal(t, tt.want, p4.DecisionTier, "base score %.1f", tt.base)
	}
}

func TestResolveIneligibleRiskGradeBlocksApprove(t *testing.T) {
	e := newTestEngine(t)
	p2 := Phase2Result{BaseScore: 95, Confidence: 100}
	p3 := Phase3Result{ExecutionMultiplier: 0.95, RiskGrade: "D"}

	p4 := e.Resolve(pass(), p2, p3)
	assert.Equal(t, TierIncubateDerisk, p4.DecisionTier)
	assert.Contains(t, p4.Conditions, "reduce execution risk (current grade D)")
}

func TestResolveUncertainGateCapsAtIncubate(t *testing.T) {
	e := newTestEngine(t)
	p1 := Phase1Result{Result: GateUncertain, Rationale: "2 manipulation indicators (uncertain threshold 1)", RFIItems: []string{"address flagged indicator: love_bombing"}}
	p2 := Phase2Result{BaseScore: 95, Confidence: 100}

	p4 := e.Resolve(p1, p2, cleanRisk())
	assert.Equal(t, TierIncubateDerisk, p4.DecisionTier)
	assert.Contains(t, p4.Conditions, "resolve open ethical questions: 2 manipulation indicators (uncertain threshold 1)")
	assert.Contains(t, p4.Conditions, "address flagged indicator: love_bombing")
}

func TestResolveLowConfidenceDiscount(t *testing.T) {
	e := newTestEngine(t)
	// Confidence 0 halves the score outright.
	p4 := e.Resolve(pass(), Phase2Result{BaseScore: 100, Confidence: 0}, cleanRisk())
	assert.InDelta(t, 50.0, p4.FinalScore, 1e-9)
	assert.Equal(t, TierReviewReevaluate, p4.DecisionTier)

	// Confidence 40 discounts by 0.5 + 40/200 = 0.7.
	p4 = e.Resolve(pass(), Phase2Result{BaseScore: 100, Confidence: 40}, cleanRisk())
	assert.InDelta(t, 70.0, p4.FinalScore, 1e-9)
	assert.Equal(t, TierIncubateDerisk, p4.DecisionTier)

	// At the knee there is no discount.
	p4 = e.Resolve(pass(), Phase2Result{BaseScore: 100, Confidence: 50}, cleanRisk())
	assert.InDelta(t, 100.0, p4.FinalScore, 1e-9)
}

func TestResolveIncubateInheritsDeriskingPlan(t *testing.T) {
	e := newTestEngine(t)
	p2 := Phase2Result{BaseScore: 70, Confidence: 100}
	p3 := Phase3Result{ExecutionMultiplier: 0.9, RiskGrade: "B", DeriskingPlan: []string{"hire a CFO"}}

	p4 := e.Resolve(pass(), p2, p3)
	assert.Equal(t, TierIncubateDerisk, p4.DecisionTier)
	assert.Equal(t, []string{"hire a CFO"}, p4.Conditions)
}

func TestResolveNextBestActionPerTier(t *testing.T) {
	e := newTestEngine(t)
	approve := e.Resolve(pass(), Phase2Result{BaseScore: 90, Confidence: 100}, cleanRisk())
	decline := e.Resolve(pass(), Phase2Result{BaseScore: 10, Confidence: 100}, cleanRisk())

	assert.Contains(t, approve.NextBestAction, "release funding")
	assert.Contains(t, decline.NextBestAction, "do not fund")
}
