package runs

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dyluth/esgpanel/internal/filter"
	"github.com/dyluth/esgpanel/internal/resolver"
	"github.com/dyluth/esgpanel/pkg/runstore"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func setupStore(t *testing.T) (*runstore.Client, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client, err := runstore.NewClient(&redis.Options{Addr: mr.Addr()}, "test-project")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client, mr
}

func seed(t *testing.T, store *runstore.Client) []*runstore.Run {
	now := time.Now().UnixMilli()
	runs := []*runstore.Run{
		runstore.NewRun(runstore.KindPanel, "50 countries", `{"rows":1200,"countries":50}`),
		runstore.NewRun(runstore.KindRegression, "FE gdp_growth", `{"n":800,"r_squared":0.41}`),
		runstore.NewRun(runstore.KindComparison, "CV 3 models", `{"best":"linear"}`),
	}
	for i, r := range runs {
		r.CreatedAtMs = now - int64(len(runs)-i)*60_000
		require.NoError(t, store.CreateRun(context.Background(), r))
	}
	return runs
}

func TestListRuns(t *testing.T) {
	t.Run("empty store", func(t *testing.T) {
		store, _ := setupStore(t)
		var buf bytes.Buffer
		require.NoError(t, ListRuns(context.Background(), store, OutputFormatDefault, nil, &buf, nil))
		assert.Contains(t, buf.String(), "No runs found for project 'test-project'")
	})

	t.Run("table", func(t *testing.T) {
		store, _ := setupStore(t)
		runs := seed(t, store)

		var buf bytes.Buffer
		require.NoError(t, ListRuns(context.Background(), store, OutputFormatDefault, nil, &buf, zaptest.NewLogger(t)))
		out := buf.String()

		assert.Contains(t, out, "Runs for project 'test-project'")
		assert.Contains(t, out, runs[0].ID[:8])
		assert.Contains(t, out, "FE gdp_growth")
		assert.Contains(t, out, "3 runs found")
		assert.Less(t, strings.Index(out, "50 countries"), strings.Index(out, "CV 3 models"), "oldest first")
	})

	t.Run("jsonl with kind filter", func(t *testing.T) {
		store, _ := setupStore(t)
		runs := seed(t, store)

		var buf bytes.Buffer
		criteria := &filter.Criteria{KindGlob: "reg*"}
		require.NoError(t, ListRuns(context.Background(), store, OutputFormatJSONL, criteria, &buf, nil))

		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		require.Len(t, lines, 1)
		var got runstore.Run
		require.NoError(t, json.Unmarshal([]byte(lines[0]), &got))
		assert.Equal(t, runs[1].ID, got.ID)
	})

	t.Run("time window", func(t *testing.T) {
		store, _ := setupStore(t)
		runs := seed(t, store)

		var buf bytes.Buffer
		criteria := &filter.Criteria{SinceTimestampMs: runs[1].CreatedAtMs}
		require.NoError(t, ListRuns(context.Background(), store, OutputFormatJSONL, criteria, &buf, nil))
		assert.Equal(t, 2, strings.Count(buf.String(), "\n"))
	})

	t.Run("skips dangling entries", func(t *testing.T) {
		store, mr := setupStore(t)
		runs := seed(t, store)
		mr.Del(runstore.RunKey("test-project", runs[0].ID))

		var buf bytes.Buffer
		require.NoError(t, ListRuns(context.Background(), store, OutputFormatDefault, nil, &buf, zaptest.NewLogger(t)))
		assert.Contains(t, buf.String(), "2 runs found")
	})

	t.Run("unknown format", func(t *testing.T) {
		store, _ := setupStore(t)
		err := ListRuns(context.Background(), store, OutputFormat("xml"), nil, &bytes.Buffer{}, nil)
		assert.ErrorContains(t, err, "unknown output format")
	})
}

func TestParseOutputFormat(t *testing.T) {
	f, err := ParseOutputFormat("")
	require.NoError(t, err)
	assert.Equal(t, OutputFormatDefault, f)

	f, err = ParseOutputFormat("jsonl")
	require.NoError(t, err)
	assert.Equal(t, OutputFormatJSONL, f)

	_, err = ParseOutputFormat("csv")
	assert.ErrorContains(t, err, "valid: default, jsonl")
}

func TestGetRun(t *testing.T) {
	store, _ := setupStore(t)
	runs := seed(t, store)
	ctx := context.Background()

	t.Run("by full ID", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, GetRun(ctx, store, runs[1].ID, &buf))

		var got map[string]interface{}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
		assert.Equal(t, runs[1].ID, got["id"])
		assert.Equal(t, "regression", got["kind"])

		payload, ok := got["payload"].(map[string]interface{})
		require.True(t, ok, "JSON payload is embedded as an object")
		assert.Equal(t, 800.0, payload["n"])
	})

	t.Run("by short ID", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, GetRun(ctx, store, runs[2].ID[:8], &buf))
		assert.Contains(t, buf.String(), runs[2].ID)
	})

	t.Run("not found", func(t *testing.T) {
		err := GetRun(ctx, store, "ffffffff", &bytes.Buffer{})
		assert.True(t, resolver.IsNotFoundError(err))
	})
}

func TestFormatSingleJSON_TextPayload(t *testing.T) {
	r := runstore.NewRun(runstore.KindDashboard, "html", "results/dashboard.html")
	var buf bytes.Buffer
	require.NoError(t, FormatSingleJSON(&buf, r))
	assert.Contains(t, buf.String(), `"payload": "results/dashboard.html"`)
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "abcdefgh", formatID("abcdefgh-1234"))
	assert.Equal(t, "abc", formatID("abc"))

	assert.Equal(t, "-", formatLabel(""))
	assert.Equal(t, strings.Repeat("x", 25)+"...", formatLabel(strings.Repeat("x", 40)))

	assert.Equal(t, "-", formatPayload(""))
	assert.Equal(t, "-", formatPayload("\n  \n"))
	assert.Equal(t, "second", formatPayload("\n second \nthird"))
	assert.Equal(t, strings.Repeat("y", 37)+"...", formatPayload(strings.Repeat("y", 50)))

	assert.Equal(t, "-", formatTimestamp(0))
	assert.Equal(t, "5m ago", formatTimestamp(time.Now().Add(-5*time.Minute-time.Second).UnixMilli()))
	assert.Equal(t, "3h ago", formatTimestamp(time.Now().Add(-3*time.Hour-time.Minute).UnixMilli()))
	assert.Equal(t, "2d ago", formatTimestamp(time.Now().Add(-49*time.Hour).UnixMilli()))
}

func TestEventWriter(t *testing.T) {
	r := runstore.NewRun(runstore.KindPanel, "50 countries", `{"rows":3}`)

	var text, jsonl bytes.Buffer
	require.NoError(t, EventWriter(&text, OutputFormatDefault)(r))
	require.NoError(t, EventWriter(&jsonl, OutputFormatJSONL)(r))

	assert.Contains(t, text.String(), r.ID[:8])
	assert.Contains(t, text.String(), "panel")
	assert.True(t, strings.HasPrefix(jsonl.String(), "{"))
	assert.Contains(t, jsonl.String(), r.ID)
}
