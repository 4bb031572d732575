package config

import (
	"flag"
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	// Test cases
	tests := []struct {
		expected    *Config
		name        string
		args        []string
		expectPanic bool
	}{
		{name: "Test1 OK", args: []string{"cmd",
			"-database-driver", "pgx", "-database-dsn", "postgres://db",
			"-storage-backend", "s3", "-s3-base-endpoint", "http://endpoint",
			"-abort-outside-time-window=false", "-submission-period-offset", "-15m", "-task-timeout", "2m",
			"-valid-origins", "JE, GB-SCT", "-upload-regions", "GB-EAW",
			"-max-upload-batch-size", "100", "--kms-key-id=alias/sign",
		}, expectPanic: false,
			expected: &Config{
				DatabaseDriver:         "pgx",
				DatabaseDSN:            "postgres://db",
				StorageBackend:         "s3",
				S3BaseEndpoint:         "http://endpoint",
				KMSKeyID:               "alias/sign",
				AbortOutsideTimeWindow: false,
				SubmissionPeriodOffset: -15 * time.Minute,
				TaskTimeout:            2 * time.Minute,
				ValidOrigins:           []string{"JE", "GB-SCT"},
				UploadRegions:          []string{"GB-EAW"},
				SubmissionPrefixes:     []string{},
				MaxUploadBatchSize:     100,
			}},
		{name: "foreign flags ignored", args: []string{"cmd", "-c", "cfg.json", "-x", "1", "-concurrency", "4"},
			expectPanic: false,
			expected: &Config{
				Concurrency:        4,
				ValidOrigins:       []string{},
				UploadRegions:      []string{},
				SubmissionPrefixes: []string{},
			}},
		{name: "bad int", args: []string{"cmd", "-concurrency", "many"}, expectPanic: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.PanicOnError)

			os.Args = tt.args

			config := &Config{}

			if !tt.expectPanic {

				require.NotPanics(t, func() { parseFlags(config) })
				assert.Empty(t, cmp.Diff(config, tt.expected))
			} else {
				require.Panics(t, func() { parseFlags(config) })
			}
		})
	}
}
