package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"validation-recorder/models"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const runResultsJSON = `{
  "metadata": {"dbt_version": "1.7.4", "generated_at": "2026-10-17T10:00:00Z"},
  "results": [
    {
      "unique_id": "model.shop.dim_customers",
      "status": "success",
      "execution_time": 1.5,
      "adapter_response": {"_message": "SELECT 120", "rows_affected": 120}
    },
    {
      "unique_id": "model.shop.fct_orders",
      "status": "error",
      "execution_time": 0.25,
      "adapter_response": {}
    },
    {}
  ]
}`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestRunResultAdapter_Ingest(t *testing.T) {
	store := newFakeStore()
	logger, _ := test.NewNullLogger()
	adapter := NewRunResultAdapter(store, logger)

	result, err := adapter.Ingest(context.Background(), writeFile(t, "run_results.json", runResultsJSON))
	require.NoError(t, err)

	assert.Equal(t, "1.7.4", result.RunID)
	assert.Equal(t, 3, result.Processed)
	assert.False(t, result.Missing)
	require.Len(t, store.runResults, 3)

	assert.Equal(t, models.RunResult{
		ID: 1, RunID: "1.7.4", ModelName: "model.shop.dim_customers", Status: "success",
		ExecutionTime: 1.5, RowsAffected: 120,
	}, *store.runResults[0])

	assert.Equal(t, "error", store.runResults[1].Status)
	assert.Zero(t, store.runResults[1].RowsAffected)

	// every field absent
	assert.Equal(t, "unknown", store.runResults[2].ModelName)
	assert.Equal(t, "unknown", store.runResults[2].Status)
	assert.Zero(t, store.runResults[2].ExecutionTime)
	assert.Zero(t, store.runResults[2].RowsAffected)
}

func TestRunResultAdapter_MissingVersion(t *testing.T) {
	store := newFakeStore()
	adapter := NewRunResultAdapter(store, logrus.New())

	result, err := adapter.Ingest(context.Background(),
		writeFile(t, "run_results.json", `{"results": [{"unique_id": "model.a", "status": "success"}]}`))
	require.NoError(t, err)
	assert.Equal(t, "unknown", result.RunID)
	assert.Equal(t, "unknown", store.runResults[0].RunID)
}

func TestRunResultAdapter_MissingFile(t *testing.T) {
	store := newFakeStore()
	logger, hook := test.NewNullLogger()
	adapter := NewRunResultAdapter(store, logger)

	result, err := adapter.Ingest(context.Background(), filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.True(t, result.Missing)
	assert.Zero(t, result.Processed)
	assert.Empty(t, store.runResults)

	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}

func TestRunResultAdapter_MalformedDocument(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "truncated json", content: `{"results": [`},
		{name: "empty file", content: ""},
		{name: "results not a list", content: `{"results": {"unique_id": "x"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore()
			adapter := NewRunResultAdapter(store, logrus.New())

			_, err := adapter.Ingest(context.Background(), writeFile(t, "run_results.json", tt.content))
			require.Error(t, err)
			assert.ErrorIs(t, err, models.ErrParse)
			assert.Empty(t, store.runResults)
		})
	}
}

func TestRunResultAdapter_StoreFailureKeepsInsertedRows(t *testing.T) {
	store := newFakeStore()
	store.failAfter = 1
	adapter := NewRunResultAdapter(store, logrus.New())

	result, err := adapter.Ingest(context.Background(), writeFile(t, "run_results.json", runResultsJSON))
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrPersistence)
	assert.Equal(t, 1, result.Processed)
	assert.Len(t, store.runResults, 1)
}
