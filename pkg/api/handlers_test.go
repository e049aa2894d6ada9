package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mindburn-Labs/verdant/pkg/engine"
	"github.com/Mindburn-Labs/verdant/pkg/judgment"
	"github.com/Mindburn-Labs/verdant/pkg/principal"
	"github.com/Mindburn-Labs/verdant/pkg/rubric"
	"github.com/Mindburn-Labs/verdant/pkg/store"
)

type cannedJudge struct {
	raw []byte
}

func (c *cannedJudge) ProduceJudgment(context.Context, *engine.Subject, *rubric.Rubric) ([]byte, error) {
	return c.raw, nil
}

func passingJudgment(t *testing.T) []byte {
	t.Helper()
	var scores []map[string]any
	for _, sc := range rubric.Default().SubCriteria() {
		scores = append(scores, map[string]any{"subcriterion_id": string(sc), "score": 9})
	}
	raw, err := json.Marshal(map[string]any{
		"phase1": map[string]any{},
		"phase2": map[string]any{"scores": scores, "confidence": 95},
		"phase3": map[string]any{"risk_grade": "A"},
		"phase4": map[string]any{},
	})
	require.NoError(t, err)
	return raw
}

func newTestService(t *testing.T, raw []byte) (*EvaluationService, *store.MemoryStore) {
	t.Helper()
	eng, err := engine.New(rubric.Default())
	require.NoError(t, err)
	v, err := judgment.NewValidator(rubric.Default())
	require.NoError(t, err)

	st := store.NewMemoryStore()
	require.NoError(t, st.InsertSubject(context.Background(), &engine.Subject{
		ID:        "sub-1",
		Name:      "Community Composting",
		CreatedAt: time.Now().UTC(),
	}))

	o := engine.NewOrchestrator(eng, v, &cannedJudge{raw: raw}, st, st, st)
	return NewEvaluationService(o, st), st
}

func authedRequest(method, target string, body []byte) *http.Request {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	ctx := principal.NewContext(req.Context(), &principal.Base{ID: "reviewer-1"})
	return req.WithContext(ctx)
}

func decodeProblem(t *testing.T, rec *httptest.ResponseRecorder) *ProblemDetail {
	t.Helper()
	var p ProblemDetail
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&p))
	return &p
}

func TestHandleEvaluateSuccess(t *testing.T) {
	s, st := newTestService(t, passingJudgment(t))
	req := authedRequest(http.MethodPost, "/evaluations", []byte(`{"subject_id":"sub-1"}`))
	rec := httptest.NewRecorder()

	s.HandleEvaluate(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp EvaluateResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, resp.Success)
	assert.NotEmpty(t, resp.EvaluationID)
	assert.Equal(t, engine.TierApproveFund, resp.Result.Phase4.DecisionTier)

	// The audit entry is attributed to the authenticated reviewer.
	entries := st.AuditEntries()
	require.Len(t, entries, 1)
	assert.Equal(t, "reviewer-1", entries[0].ActorID)
}

func TestHandleEvaluateRequiresPrincipal(t *testing.T) {
	s, _ := newTestService(t, passingJudgment(t))
	req := httptest.NewRequest(http.MethodPost, "/evaluations", strings.NewReader(`{"subject_id":"sub-1"}`))
	rec := httptest.NewRecorder()

	s.HandleEvaluate(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
}

func TestHandleEvaluateRejectsBadBody(t *testing.T) {
	s, _ := newTestService(t, passingJudgment(t))
	req := authedRequest(http.MethodPost, "/evaluations", []byte(`{not json`))
	rec := httptest.NewRecorder()

	s.HandleEvaluate(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleEvaluateRequiresSubjectID(t *testing.T) {
	s, _ := newTestService(t, passingJudgment(t))
	req := authedRequest(http.MethodPost, "/evaluations", []byte(`{"evaluation_mode":"standard"}`))
	rec := httptest.NewRecorder()

	s.HandleEvaluate(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	p := decodeProblem(t, rec)
	assert.Contains(t, p.Detail, "subject_id")
}

func TestHandleEvaluateUnknownSubjectIs404(t *testing.T) {
	s, _ := newTestService(t, passingJudgment(t))
	req := authedRequest(http.MethodPost, "/evaluations", []byte(`{"subject_id":"nope"}`))
	rec := httptest.NewRecorder()

	s.HandleEvaluate(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleEvaluateCooldownIs409(t *testing.T) {
	s, _ := newTestService(t, passingJudgment(t))

	first := httptest.NewRecorder()
	s.HandleEvaluate(first, authedRequest(http.MethodPost, "/evaluations", []byte(`{"subject_id":"sub-1"}`)))
	require.Equal(t, http.StatusOK, first.Code)

	second := httptest.NewRecorder()
	s.HandleEvaluate(second, authedRequest(http.MethodPost, "/evaluations", []byte(`{"subject_id":"sub-1"}`)))
	assert.Equal(t, http.StatusConflict, second.Code)
}

func TestHandleEvaluateContractViolationIs500(t *testing.T) {
	s, _ := newTestService(t, []byte("definitely fund this one"))
	req := authedRequest(http.MethodPost, "/evaluations", []byte(`{"subject_id":"sub-1"}`))
	rec := httptest.NewRecorder()

	s.HandleEvaluate(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	p := decodeProblem(t, rec)
	// The raw judge output never leaks into the response.
	assert.Equal(t, "judgment did not satisfy the contract", p.Detail)
}

func TestHandleEvaluateMethodNotAllowed(t *testing.T) {
	s, _ := newTestService(t, passingJudgment(t))
	req := authedRequest(http.MethodDelete, "/evaluations", nil)
	rec := httptest.NewRecorder()

	s.HandleEvaluate(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandleHistory(t *testing.T) {
	s, _ := newTestService(t, passingJudgment(t))

	rec := httptest.NewRecorder()
	s.HandleEvaluate(rec, authedRequest(http.MethodPost, "/evaluations", []byte(`{"subject_id":"sub-1"}`)))
	require.Equal(t, http.StatusOK, rec.Code)

	histRec := httptest.NewRecorder()
	s.HandleHistory(histRec, authedRequest(http.MethodGet, "/evaluations?subject_id=sub-1", nil))

	require.Equal(t, http.StatusOK, histRec.Code)
	var resp struct {
		SubjectID   string                     `json:"subject_id"`
		Evaluations []*engine.EvaluationResult `json:"evaluations"`
	}
	require.NoError(t, json.NewDecoder(histRec.Body).Decode(&resp))
	assert.Equal(t, "sub-1", resp.SubjectID)
	assert.Len(t, resp.Evaluations, 1)
}

func TestHandleHistoryRequiresSubjectID(t *testing.T) {
	s, _ := newTestService(t, passingJudgment(t))
	rec := httptest.NewRecorder()

	s.HandleHistory(rec, authedRequest(http.MethodGet, "/evaluations", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleHealth(t *testing.T) {
	s, _ := newTestService(t, passingJudgment(t))
	rec := httptest.NewRecorder()

	s.HandleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestRoutesDispatch(t *testing.T) {
	s, _ := newTestService(t, passingJudgment(t))
	mux := http.NewServeMux()
	s.Routes(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, authedRequest(http.MethodPut, "/evaluations", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
