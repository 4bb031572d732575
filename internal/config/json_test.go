package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, dir, name string, data map[string]any) string {
	t.Helper()
	if dir == "" {
		dir = t.TempDir()
	}
	if name == "" {
		name = "cfg.json"
	}
	path := filepath.Join(dir, name)
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func Test_parseJson_SourcesAndPrecedence(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	dir := t.TempDir()
	pathFlag := writeTempJSON(t, dir, "flag.json", map[string]any{
		"database_driver":            "pgx",
		"database_dsn":               "postgres://db",
		"storage_backend":            "s3",
		"submission_prefixes":        []string{"mobile", "test"},
		"submission_period_offset":   "-15m",
		"task_timeout":               "2m",
		"load_history":               int64(time.Hour),
		"abort_outside_time_window":  false,
		"cloudfront_distribution_id": "E123",
		"interop_base_url":           "https://interop",
		"valid_origins":              []string{"JE", "GB-SCT"},
		"max_upload_batch_size":      100,
	})

	t.Run("loads from json", func(t *testing.T) {
		os.Args = []string{"testbin", "-config", pathFlag}

		cfg := &Config{}
		cfg.LoadDefaults()
		parseJson(cfg)

		assert.Equal(t, "pgx", cfg.DatabaseDriver)
		assert.Equal(t, "postgres://db", cfg.DatabaseDSN)
		assert.Equal(t, "s3", cfg.StorageBackend)
		assert.Equal(t, []string{"mobile", "test"}, cfg.SubmissionPrefixes)
		assert.Equal(t, -15*time.Minute, cfg.SubmissionPeriodOffset)
		assert.Equal(t, 2*time.Minute, cfg.TaskTimeout)
		assert.Equal(t, time.Hour, cfg.LoadHistory)
		assert.False(t, cfg.AbortOutsideTimeWindow)
		assert.Equal(t, "E123", cfg.CloudFrontDistributionID)
		assert.Equal(t, "https://interop", cfg.InteropBaseURL)
		assert.Equal(t, []string{"JE", "GB-SCT"}, cfg.ValidOrigins)
		assert.Equal(t, 100, cfg.MaxUploadBatchSize)
	})

	t.Run("absent keys keep defaults", func(t *testing.T) {
		os.Args = []string{"testbin", "-config", pathFlag}

		cfg := &Config{}
		cfg.LoadDefaults()
		parseJson(cfg)

		assert.Equal(t, 15, cfg.Concurrency)
		assert.Equal(t, "distribution", cfg.DistributionBucket)
		assert.Equal(t, []string{"GB-EAW"}, cfg.UploadRegions)
		assert.Equal(t, time.Minute, cfg.InteropHTTPTimeout)
	})

	t.Run("no CONFIG and no flags → no changes", func(t *testing.T) {
		os.Args = []string{"testbin"}

		cfg := &Config{
			DatabaseDSN:            "keys.db",
			Concurrency:            2,
			SubmissionPeriodOffset: time.Minute,
			ValidOrigins:           []string{"JE"},
		}
		parseJson(cfg)

		assert.Equal(t, "keys.db", cfg.DatabaseDSN)
		assert.Equal(t, 2, cfg.Concurrency)
		assert.Equal(t, time.Minute, cfg.SubmissionPeriodOffset)
		assert.Equal(t, []string{"JE"}, cfg.ValidOrigins)
	})

	t.Run("invalid JSON → panics", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte(`{ this is not valid json`), 0o600))

		os.Args = []string{"testbin", "-config", bad}

		cfg := &Config{}
		require.Panics(t, func() { parseJson(cfg) })
	})

	t.Run("invalid duration → panics", func(t *testing.T) {
		bad := writeTempJSON(t, dir, "dur.json", map[string]any{"task_timeout": "soon"})

		os.Args = []string{"testbin", "-config", bad}

		cfg := &Config{}
		require.Panics(t, func() { parseJson(cfg) })
	})

	t.Run("missing file → panics", func(t *testing.T) {
		os.Args = []string{"testbin", "-config", filepath.Join(dir, "missing.json")}

		cfg := &Config{}
		require.Panics(t, func() { parseJson(cfg) })
	})
}
