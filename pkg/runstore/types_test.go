package runstore

import (
	"strconv"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindValid(t *testing.T) {
	for _, k := range []Kind{KindPanel, KindRegression, KindComparison, KindDashboard} {
		assert.True(t, k.Valid(), k)
	}
	assert.False(t, Kind("").Valid())
	assert.False(t, Kind("Panel").Valid())
}

func TestNewRun(t *testing.T) {
	r := NewRun(KindPanel, "50 countries", "{}")
	_, err := uuid.Parse(r.ID)
	require.NoError(t, err)
	assert.NotNil(t, r.Inputs)
	assert.Greater(t, r.CreatedAtMs, int64(0))
	assert.NoError(t, r.Validate())
}

func TestRunValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Run)
		wantErr string
	}{
		{"bad id", func(r *Run) { r.ID = "nope" }, "invalid run ID"},
		{"bad kind", func(r *Run) { r.Kind = "model" }, "invalid kind"},
		{"bad input", func(r *Run) { r.Inputs = []string{"x"} }, "invalid input run ID at index 0"},
		{"zero time", func(r *Run) { r.CreatedAtMs = 0 }, "created_at_ms must be positive"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRun(KindRegression, "", "")
			tt.mutate(r)
			assert.ErrorContains(t, r.Validate(), tt.wantErr)
		})
	}
}

func TestSchema(t *testing.T) {
	assert.Equal(t, "esgpanel:p:run:abc", RunKey("p", "abc"))
	assert.Equal(t, "esgpanel:p:run:", RunKeyPrefix("p"))
	assert.Equal(t, "esgpanel:p:runs", RunIndexKey("p"))
	assert.Equal(t, "esgpanel:p:run_events", RunEventsChannel("p"))
}

func TestHashRoundTrip(t *testing.T) {
	r := NewRun(KindComparison, "cv", `{"best":"linear"}`)
	r.Inputs = []string{uuid.New().String()}
	r.ConfigDigest = "d1"

	hash, err := RunToHash(r)
	require.NoError(t, err)

	// Redis hands every field back as a string
	strs := make(map[string]string, len(hash))
	for k, v := range hash {
		switch x := v.(type) {
		case string:
			strs[k] = x
		case int64:
			strs[k] = strconv.FormatInt(x, 10)
		}
	}
	got, err := HashToRun(strs)
	require.NoError(t, err)
	assert.Equal(t, r, got)
}

func TestHashToRun_Errors(t *testing.T) {
	_, err := HashToRun(map[string]string{"created_at_ms": "x"})
	assert.ErrorContains(t, err, "invalid created_at_ms")

	_, err = HashToRun(map[string]string{"created_at_ms": "1", "inputs": "{"})
	assert.ErrorContains(t, err, "failed to unmarshal inputs")

	r, err := HashToRun(map[string]string{"created_at_ms": "1"})
	require.NoError(t, err)
	assert.Equal(t, []string{}, r.Inputs)
}
