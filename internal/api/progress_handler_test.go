package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/scry-progress/internal/api/shared"
	"github.com/phrazzld/scry-progress/internal/catalog"
	"github.com/phrazzld/scry-progress/internal/domain"
	"github.com/phrazzld/scry-progress/internal/domain/srs"
	"github.com/phrazzld/scry-progress/internal/platform/logger"
	"github.com/phrazzld/scry-progress/internal/platform/memory"
	"github.com/phrazzld/scry-progress/internal/progress"
	"github.com/phrazzld/scry-progress/internal/service/due"
	"github.com/phrazzld/scry-progress/internal/service/review"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var handlerNow = time.Date(2026, 2, 2, 10, 0, 0, 0, time.UTC)

// stubMastery returns a fixed report or error.
type stubMastery struct {
	report *domain.MasteryReport
	err    error
}

func (s stubMastery) Compute(context.Context, uuid.UUID) (*domain.MasteryReport, error) {
	return s.report, s.err
}

func newTestRouter(t *testing.T, mastery MasteryService, dueOpts ...due.Option) http.Handler {
	t.Helper()
	l, _ := logger.NewTestLogger(t)

	reg, err := progress.NewRegistry(memory.NewKVStore(), progress.WithLogger(l))
	require.NoError(t, err)
	srsService, err := srs.NewDefaultService()
	require.NoError(t, err)

	reviews := review.NewService(reg, srsService,
		review.WithLogger(l),
		review.WithClock(func() time.Time { return handlerNow }))
	h := NewProgressHandler(reviews, due.NewService(reg, l, dueOpts...), mastery, l)
	h.now = func() time.Time { return handlerNow }

	r := chi.NewRouter()
	h.Routes(r)
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestSubmitRating(t *testing.T) {
	t.Parallel()
	h := newTestRouter(t, stubMastery{})
	base := "/learners/" + uuid.NewString()

	rec := do(t, h, http.MethodPost, base+"/flashcards/items/people-1/reviews", `{"rating":"good"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	p := decode[domain.ItemProgress](t, rec)
	assert.Equal(t, "people-1", p.ItemID)
	assert.Equal(t, 1, p.Repetitions)
	assert.Equal(t, handlerNow.AddDate(0, 0, 1), p.NextReviewDate)

	rec = do(t, h, http.MethodGet, base+"/flashcards/items/people-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, p, decode[domain.ItemProgress](t, rec))

	rec = do(t, h, http.MethodGet, base+"/flashcards/items", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[map[string]domain.ItemProgress](t, rec), 1)
}

func TestSubmitRating_BadRequests(t *testing.T) {
	t.Parallel()
	h := newTestRouter(t, stubMastery{})
	learner := uuid.NewString()

	tests := []struct {
		name    string
		path    string
		body    string
		message string
	}{
		{"unknown rating", "/learners/" + learner + "/flashcards/items/a/reviews", `{"rating":"meh"}`, "Invalid Rating: invalid value"},
		{"missing rating", "/learners/" + learner + "/flashcards/items/a/reviews", `{}`, "Invalid Rating: required field"},
		{"empty body", "/learners/" + learner + "/flashcards/items/a/reviews", ``, "Invalid request format"},
		{"bad pool", "/learners/" + learner + "/decks/items/a/reviews", `{"rating":"good"}`, "Invalid pool: must be flashcards or questions"},
		{"bad learner", "/learners/not-a-uuid/flashcards/items/a/reviews", `{"rating":"good"}`, "Invalid request"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.message, decode[shared.ErrorResponse](t, rec).Error)
		})
	}

	// Nothing was written
	rec := do(t, h, http.MethodGet, "/learners/"+learner+"/flashcards/items/a", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Progress not found", decode[shared.ErrorResponse](t, rec).Error)
}

func TestDue(t *testing.T) {
	t.Parallel()
	h := newTestRouter(t, stubMastery{})
	base := "/learners/" + uuid.NewString()

	rec := do(t, h, http.MethodPost, base+"/questions/items/q-1/reviews", `{"rating":"easy"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodPost, base+"/questions/due", `{"candidateIds":["q-2","q-1","q-2"]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[DueResponse](t, rec)
	assert.Equal(t, []string{"q-2"}, resp.Due)
	assert.Equal(t, 1, resp.Count)
	assert.Equal(t, 2, resp.Stats.Total)
	assert.Equal(t, 1, resp.Stats.WithProgress)

	rec = do(t, h, http.MethodPost, base+"/questions/due",
		`{"candidateIds":["q-2","q-1"],"at":"2026-02-03T10:00:00Z"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"q-2", "q-1"}, decode[DueResponse](t, rec).Due)
}

func TestDue_CatalogCandidates(t *testing.T) {
	t.Parallel()
	fsys := fstest.MapFS{
		"flashcards.json": {Data: []byte(`[
			{"meta": {"domain": "People", "ecoReference": "Task 1"}, "flashcards": [{"id": 1}, {"id": 2}]},
			{"meta": {"domain": "Process", "ecoReference": "Task 1"}, "flashcards": [{"id": 1}]}
		]`)},
	}
	h := newTestRouter(t, stubMastery{},
		due.WithCatalog(domain.PoolFlashcards, catalog.NewFlashcardFile(fsys, "flashcards.json")),
		due.WithCatalog(domain.PoolQuestions, catalog.NewQuestionFile(fsys, "missing.json")))
	base := "/learners/" + uuid.NewString()

	rec := do(t, h, http.MethodPost, base+"/flashcards/items/people-task-1-2/reviews", `{"rating":"good"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	for _, body := range []string{"", `{}`, `{"candidateIds":[]}`} {
		rec = do(t, h, http.MethodPost, base+"/flashcards/due", body)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		resp := decode[DueResponse](t, rec)
		assert.Equal(t, []string{"people-task-1-1", "process-task-1-1"}, resp.Due, "body %q", body)
		assert.Equal(t, 2, resp.Count)
		assert.Equal(t, due.PoolStats{Total: 3, WithProgress: 1, Due: 2, AverageEaseFactor: 2.5}, resp.Stats)
	}

	rec = do(t, h, http.MethodPost, base+"/questions/due", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "Item catalog is unavailable", decode[shared.ErrorResponse](t, rec).Error)
}

func TestFlags(t *testing.T) {
	t.Parallel()
	h := newTestRouter(t, stubMastery{})
	base := "/learners/" + uuid.NewString()

	rec := do(t, h, http.MethodPost, base+"/flags/q-9", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, FlagResponse{ItemID: "q-9", Flagged: true}, decode[FlagResponse](t, rec))

	rec = do(t, h, http.MethodGet, base+"/flags/q-9", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[FlagResponse](t, rec).Flagged)

	rec = do(t, h, http.MethodGet, base+"/flags", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"q-9"}, decode[FlaggedResponse](t, rec).ItemIDs)

	rec = do(t, h, http.MethodPost, base+"/flags/q-9", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[FlagResponse](t, rec).Flagged)
}

func TestReset(t *testing.T) {
	t.Parallel()
	h := newTestRouter(t, stubMastery{})
	base := "/learners/" + uuid.NewString()

	require.Equal(t, http.StatusOK,
		do(t, h, http.MethodPost, base+"/flashcards/items/a/reviews", `{"rating":"hard"}`).Code)

	rec := do(t, h, http.MethodDelete, base+"/flashcards", "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, h, http.MethodGet, base+"/flashcards/items", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[map[string]domain.ItemProgress](t, rec))
}

func TestGetMastery(t *testing.T) {
	t.Parallel()

	t.Run("report", func(t *testing.T) {
		report := &domain.MasteryReport{
			Domains:        []domain.DomainStats{{DomainID: "people", MasteryPercent: 40}},
			OverallPercent: 40,
			ComputedAt:     handlerNow,
		}
		h := newTestRouter(t, stubMastery{report: report})

		rec := do(t, h, http.MethodGet, "/learners/"+uuid.NewString()+"/mastery", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, *report, decode[domain.MasteryReport](t, rec))
	})

	t.Run("internal error is not leaked", func(t *testing.T) {
		h := newTestRouter(t, stubMastery{err: errors.New("dial tcp 10.0.0.5:5432: refused")})

		rec := do(t, h, http.MethodGet, "/learners/"+uuid.NewString()+"/mastery", "")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "Failed to compute mastery", decode[shared.ErrorResponse](t, rec).Error)
		assert.NotContains(t, rec.Body.String(), "10.0.0.5")
	})
}

func TestListRatings(t *testing.T) {
	t.Parallel()
	h := newTestRouter(t, stubMastery{})

	rec := do(t, h, http.MethodGet, "/ratings", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[
		{"value":"again","label":"Again","description":"Didn't remember"},
		{"value":"hard","label":"Hard","description":"Remembered with difficulty"},
		{"value":"good","label":"Good","description":"Remembered correctly"},
		{"value":"easy","label":"Easy","description":"Remembered easily"}
	]`, rec.Body.String())
}

func TestMapErrorToStatusCode(t *testing.T) {
	t.Parallel()
	tests := []struct {
		err  error
		want int
	}{
		{domain.ErrInvalidRating, http.StatusBadRequest},
		{domain.ErrInvalidPool, http.StatusBadRequest},
		{domain.ErrEmptyItemID, http.StatusBadRequest},
		{fmt.Errorf("%w: read f.json", catalog.ErrUnavailable), http.StatusServiceUnavailable},
		{review.NewServiceError("submit_rating", "failed", errors.New("io")), http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MapErrorToStatusCode(tt.err), tt.err.Error())
	}
}
