package shared

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/phrazzld/scry-progress/internal/platform/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithTraceID(t *testing.T) {
	t.Parallel()

	assert.Empty(t, GetTraceID(context.Background()))

	ctx := WithTraceID(context.Background(), "caller-trace")
	assert.Equal(t, "caller-trace", GetTraceID(ctx))

	for _, in := range []string{"", "   ", strings.Repeat("x", 65)} {
		generated := GetTraceID(WithTraceID(context.Background(), in))
		assert.Len(t, generated, 32)
		_, err := hex.DecodeString(generated)
		assert.NoError(t, err)
	}

	wrongType := context.WithValue(context.Background(), TraceIDKey, 123)
	assert.Empty(t, GetTraceID(wrongType))
}

func TestGenerateTraceID_Unique(t *testing.T) {
	t.Parallel()
	seen := make(map[string]struct{}, 500)
	for i := 0; i < 500; i++ {
		id := generateTraceID()
		_, dup := seen[id]
		require.False(t, dup, "duplicate trace ID %s", id)
		seen[id] = struct{}{}
	}
}

type ratingBody struct {
	Rating string `json:"rating" validate:"required,oneof=again hard good easy"`
}

func TestDecodeJSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{name: "valid", body: `{"rating":"good"}`},
		{name: "empty", body: "", wantErr: ErrEmptyBody.Error()},
		{name: "malformed", body: `{"rating":`, wantErr: "unexpected EOF"},
		{name: "unknown field", body: `{"rating":"good","extra":1}`, wantErr: "unknown field"},
		{name: "trailing object", body: `{"rating":"good"}{}`, wantErr: "single JSON object"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var v ratingBody
			err := DecodeJSON(httptest.NewRecorder(), req, &v)
			if tt.wantErr == "" {
				require.NoError(t, err)
				assert.Equal(t, "good", v.Rating)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateRequest(t *testing.T) {
	t.Parallel()
	assert.NoError(t, ValidateRequest(&ratingBody{Rating: "easy"}))
	assert.Error(t, ValidateRequest(&ratingBody{Rating: "meh"}))
	assert.Error(t, ValidateRequest(&ratingBody{}))
}

func TestRespondWithErrorAndLog(t *testing.T) {
	t.Parallel()
	l, logs := logger.NewTestLogger(t)

	ctx := logger.WithLogger(WithTraceID(context.Background(), "trace-1"), l)
	req := httptest.NewRequest(http.MethodGet, "/learners/x/mastery", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	RespondWithErrorAndLog(rec, req, http.StatusInternalServerError, "Failed to compute mastery",
		assert.AnError)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, ErrorResponse{Error: "Failed to compute mastery", TraceID: "trace-1"}, body)
	assert.NotContains(t, rec.Body.String(), assert.AnError.Error())

	entries, err := logs.EntriesWithMessage("API error response")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "ERROR", entries[0]["level"])
	assert.Equal(t, "trace-1", entries[0]["trace_id"])
}
