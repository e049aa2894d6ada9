package judge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mindburn-Labs/verdant/pkg/engine"
	"github.com/Mindburn-Labs/verdant/pkg/rubric"
)

var testSubject = &engine.Subject{
	ID:          "sub-1",
	Name:        "River Restoration Co-op",
	Description: "Community-led watershed restoration.",
}

func TestNewOpenAIJudgeTimeout(t *testing.T) {
	j := NewOpenAIJudge("", "", "test-model")
	assert.Equal(t, 60*time.Second, j.client.Timeout)

	j = NewOpenAIJudge("", "", "test-model", WithTimeout(90*time.Second))
	assert.Equal(t, 90*time.Second, j.client.Timeout)

	j = NewOpenAIJudge("", "", "test-model", WithTimeout(0))
	assert.Equal(t, 60*time.Second, j.client.Timeout)
}

func TestBuildPromptRendersRubric(t *testing.T) {
	system, user, err := buildPrompt(testSubject, rubric.Default())
	require.NoError(t, err)

	// Every category, hard stop, and indicator comes from the injected
	// rubric, not from hard-coded prompt text.
	assert.Contains(t, system, "impact (weight 30%)")
	assert.Contains(t, system, "planetary_wellbeing")
	assert.Contains(t, system, "fraud")
	assert.Contains(t, system, "love_bombing")
	assert.Contains(t, user, "River Restoration Co-op")
}

func TestProduceJudgmentReturnsMessageContent(t *testing.T) {
	want := `{"phase1":{},"phase2":{"scores":[],"confidence":70},"phase3":{},"phase4":{}}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		assert.Equal(t, 0.0, req.Temperature)
		assert.Equal(t, "json_object", req.ResponseFormat.Type)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": want}},
			},
		})
	}))
	defer srv.Close()

	j := NewOpenAIJudge(srv.URL, "test-key", "test-model")
	raw, err := j.ProduceJudgment(context.Background(), testSubject, rubric.Default())
	require.NoError(t, err)
	assert.JSONEq(t, want, string(raw))
}

func TestProduceJudgmentRetriesServerErrors(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls < 3 {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": `{"phase1":{}}`}},
			},
		})
	}))
	defer srv.Close()

	j := NewOpenAIJudge(srv.URL, "", "test-model")
	raw, err := j.ProduceJudgment(context.Background(), testSubject, rubric.Default())
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.NotEmpty(t, raw)
}

func TestProduceJudgmentExhaustsRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	j := NewOpenAIJudge(srv.URL, "", "test-model")
	_, err := j.ProduceJudgment(context.Background(), testSubject, rubric.Default())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestProduceJudgmentNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))
	defer srv.Close()

	j := NewOpenAIJudge(srv.URL, "", "test-model")
	_, err := j.ProduceJudgment(context.Background(), testSubject, rubric.Default())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no choices")
}

func TestProduceJudgmentHonorsContextCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	j := NewOpenAIJudge(srv.URL, "", "test-model")
	_, err := j.ProduceJudgment(ctx, testSubject, rubric.Default())
	assert.ErrorIs(t, err, context.Canceled)
}
