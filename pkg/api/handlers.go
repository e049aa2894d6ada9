package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Mindburn-Labs/verdant/pkg/engine"
	"github.com/Mindburn-Labs/verdant/pkg/judgment"
	"github.com/Mindburn-Labs/verdant/pkg/observability"
	"github.com/Mindburn-Labs/verdant/pkg/principal"
)

// EvaluationService exposes the orchestrator over HTTP.
type EvaluationService struct {
	orchestrator *engine.Orchestrator
	evaluations  engine.EvaluationStore
	obs          *observability.Provider
}

// NewEvaluationService wires the HTTP handlers.
func NewEvaluationService(o *engine.Orchestrator, evaluations engine.EvaluationStore) *EvaluationService {
	return &EvaluationService{orchestrator: o, evaluations: evaluations}
}

// WithObservability attaches an observability provider for RED metrics.
func (s *EvaluationService) WithObservability(obs *observability.Provider) *EvaluationService {
	s.obs = obs
	return s
}

// EvaluateRequest is the inbound trigger payload.
type EvaluateRequest struct {
	SubjectID      string `json:"subject_id"`
	EvaluationMode string `json:"evaluation_mode"`
}

// EvaluateResponse is the success envelope.
type EvaluateResponse struct {
	Success      bool                     `json:"success"`
	EvaluationID string                   `json:"evaluation_id"`
	Result       *engine.EvaluationResult `json:"result"`
}

// HandleEvaluate handles POST /evaluations.
func (s *EvaluationService) HandleEvaluate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteMethodNotAllowed(w)
		return
	}

	// The auth middleware already rejects unauthenticated requests, but
	// the handler re-checks so it fails closed when mounted bare.
	if _, err := principal.FromContext(r.Context()); err != nil {
		WriteUnauthorized(w, "")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit
	var req EvaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteBadRequest(w, "Invalid request body")
		return
	}
	if req.SubjectID == "" {
		WriteBadRequest(w, "Missing required field: subject_id")
		return
	}
	if req.EvaluationMode == "" {
		req.EvaluationMode = "standard"
	}

	ctx := r.Context()
	if s.obs != nil {
		var span trace.Span
		ctx, span = s.obs.StartSpan(ctx, "evaluate",
			attribute.String("subject_id", req.SubjectID),
			attribute.String("mode", req.EvaluationMode),
		)
		defer span.End()
	}

	start := time.Now()
	result, err := s.orchestrator.Evaluate(ctx, req.SubjectID, req.EvaluationMode)
	if s.obs != nil {
		tier := ""
		if result != nil {
			tier = string(result.Phase4.DecisionTier)
		}
		s.obs.RecordEvaluation(ctx, tier, time.Since(start), err)
	}
	if err != nil {
		writeEvaluateError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(EvaluateResponse{
		Success:      true,
		EvaluationID: result.ID,
		Result:       result,
	})
}

// HandleHistory handles GET /evaluations?subject_id=…, returning a
// subject's append-only evaluation history, newest first.
func (s *EvaluationService) HandleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteMethodNotAllowed(w)
		return
	}
	subjectID := r.URL.Query().Get("subject_id")
	if subjectID == "" {
		WriteBadRequest(w, "Missing required parameter: subject_id")
		return
	}

	evals, err := s.evaluations.ListEvaluations(r.Context(), subjectID, 50)
	if err != nil {
		WriteInternal(w, errors.New("evaluation lookup failed"))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"subject_id":  subjectID,
		"evaluations": evals,
	})
}

// HandleHealth handles GET /health.
func (s *EvaluationService) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// Routes mounts the service on a mux.
func (s *EvaluationService) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/evaluations", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			s.HandleEvaluate(w, r)
		case http.MethodGet:
			s.HandleHistory(w, r)
		default:
			WriteMethodNotAllowed(w)
		}
	})
	mux.HandleFunc("/health", s.HandleHealth)
}

func writeEvaluateError(w http.ResponseWriter, err error) {
	var contractErr *judgment.ContractError
	switch {
	case errors.Is(err, engine.ErrSubjectNotFound):
		WriteNotFound(w, "Subject not found")
	case errors.Is(err, engine.ErrCooldown):
		WriteConflict(w, "Subject was evaluated recently; retry after the cool-down window")
	case errors.As(err, &contractErr):
		WriteInternal(w, errors.New("judgment did not satisfy the contract"))
	default:
		WriteInternal(w, errors.New("evaluation failed"))
	}
}
