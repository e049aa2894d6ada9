package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Mindburn-Labs/verdant/pkg/judgment"
	"github.com/Mindburn-Labs/verdant/pkg/rubric"
)

func TestAdjustRiskNoRisks(t *testing.T) {
	e := newTestEngine(t)
	p3 := e.AdjustRisk(&judgment.Judgment{})

	assert.Equal(t, 1.0, p3.ExecutionMultiplier)
	assert.Equal(t, "A", p3.RiskGrade)
}

func TestAdjustRiskSubtractsPerDimension(t *testing.T) {
	e := newTestEngine(t)
	j := &judgment.Judgment{
		Risks: []judgment.ExecutionRisk{
			{Dimension: rubric.RiskTechnical, Severity: 3},
			{Dimension: rubric.RiskFinancial, Severity: 2},
		},
	}

	p3 := e.AdjustRisk(j)
	assert.InDelta(t, 1.0-5*0.016, p3.ExecutionMultiplier, 1e-9)
	assert.Equal(t, "A", p3.RiskGrade)
}

func TestAdjustRiskMaxSeverityLandsOnFloor(t *testing.T) {
	e := newTestEngine(t)
	j := &judgment.Judgment{
		Risks: []judgment.ExecutionRisk{
			{Dimension: rubric.RiskTeam, Severity: 5},
			{Dimension: rubric.RiskTechnical, Severity: 5},
			{Dimension: rubric.RiskFinancial, Severity: 5},
			{Dimension: rubric.RiskExternal, Severity: 5},
			{Dimension: rubric.RiskTimeline, Severity: 5},
		},
	}

	p3 := e.AdjustRisk(j)
	// 1.0 − 25×0.016 is exactly the floor, not below it.
	assert.InDelta(t, 0.6, p3.ExecutionMultiplier, 1e-9)
	assert.Equal(t, "D", p3.RiskGrade)
}

func TestAdjustRiskWorstSeverityPerDimensionWins(t *testing.T) {
	e := newTestEngine(t)
	j := &judgment.Judgment{
		Risks: []judgment.ExecutionRisk{
			{Dimension: rubric.RiskTechnical, Severity: 2},
			{Dimension: rubric.RiskTechnical, Severity: 5},
			{Dimension: rubric.RiskTechnical, Severity: 1},
		},
	}

	p3 := e.AdjustRisk(j)
	// Only the severity-5 entry counts; duplicates never stack.
	assert.InDelta(t, 1.0-5*0.016, p3.ExecutionMultiplier, 1e-9)
}

func TestAdjustRiskHarmGateForcesFloorAndF(t *testing.T) {
	e := newTestEngine(t)
	j := &judgment.Judgment{
		HarmGates: []rubric.HarmGate{rubric.HarmEnvironmental},
		Risks: []judgment.ExecutionRisk{
			{Dimension: rubric.RiskTechnical, Severity: 1},
		},
	}

	p3 := e.AdjustRisk(j)
	assert.Equal(t, 0.6, p3.ExecutionMultiplier)
	assert.Equal(t, "F", p3.RiskGrade)
	assert.Equal(t, []rubric.HarmGate{rubric.HarmEnvironmental}, p3.HarmGates)
}

func TestAdjustRiskCarriesDeriskingPlan(t *testing.T) {
	e := newTestEngine(t)
	j := &judgment.Judgment{
		DeriskingPlan: []string{"hire a CFO", "pilot with one community first"},
	}

	p3 := e.AdjustRisk(j)
	assert.Equal(t, j.DeriskingPlan, p3.DeriskingPlan)
}
