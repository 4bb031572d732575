// Package config handles configuration for the distribution and federation
// jobs, including defaults, JSON overlay, and command-line flags.
package config

import "time"

// Backend names accepted by SubmissionBackend and StorageBackend.
const (
	BackendSQL  = "sql"
	BackendS3   = "s3"
	BackendFile = "file"
)

// Config holds runtime settings shared by the distributor and federator.
//
// Groups:
//   - persistence: DatabaseDriver/DatabaseDSN for the SQL submission store
//     and sync cursors, or SubmissionBackend "s3" to keep both as objects.
//   - object storage: StorageBackend ("s3" or "file"), StorageRoot for the
//     file backend, AWS region and optional static credentials.
//   - signing: a PEM key file for local signing or a KMS key id, plus the
//     identity stamped into every export.
//   - distribution and federation job knobs.
type Config struct {
	LogLevel string

	DatabaseDriver string
	DatabaseDSN    string

	SubmissionBackend  string
	SubmissionBucket   string
	SubmissionPrefixes []string
	FederatedKeyPrefix string
	StateBucket        string
	StatePrefix        string

	StorageBackend     string
	StorageRoot        string
	AWSRegion          string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	S3BaseEndpoint     string

	SigningKeyFile         string
	KMSKeyID               string
	SignatureKeyID         string
	AppBundleID            string
	AndroidPackage         string
	VerificationKeyID      string
	VerificationKeyVersion string

	DistributionBucket           string
	AbortOutsideTimeWindow       bool
	SubmissionPeriodOffset       time.Duration
	LoadHistory                  time.Duration
	Concurrency                  int
	TaskTimeout                  time.Duration
	CloudFrontDistributionID     string
	DailyInvalidationPattern     string
	TwoHourlyInvalidationPattern string
	RunTimeout                   time.Duration

	InteropBaseURL             string
	InteropAuthToken           string
	InteropAuthTokenSecretName string
	InteropHTTPTimeout         time.Duration

	DownloadEnabled                 bool
	ValidOrigins                    []string
	DownloadRiskLevelDefaultEnabled bool
	DownloadRiskLevelDefault        int
	InitialDownloadHistoryDays      int
	MaxSubsequentBatchDownloadCount int

	UploadEnabled                 bool
	UploadRegions                 []string
	UploadRiskLevelDefaultEnabled bool
	UploadRiskLevelDefault        int
	InitialUploadHistoryDays      int
	MaxUploadBatchSize            int
	MaxSubsequentBatchUploadCount int
}

// LoadDefaults populates Config with development defaults: a local SQLite
// database, the file object store and a PEM signing key next to it.
func (c *Config) LoadDefaults() {
	c.LogLevel = "info"

	c.DatabaseDriver = "sqlite"
	c.DatabaseDSN = "file:exposurekeys.db"

	c.SubmissionBackend = BackendSQL
	c.SubmissionBucket = "submissions"
	c.SubmissionPrefixes = []string{}
	c.FederatedKeyPrefix = "federatedKeyPrefix"
	c.StateBucket = "state"
	c.StatePrefix = "sync-state"

	c.StorageBackend = BackendFile
	c.StorageRoot = "./data"
	c.AWSRegion = "eu-west-2"

	c.SigningKeyFile = "signing-key.pem"
	c.SignatureKeyID = "local"
	c.AppBundleID = "uk.nhs.covid-19"
	c.AndroidPackage = "uk.nhs.covid-19"
	c.VerificationKeyID = "234"
	c.VerificationKeyVersion = "v1"

	c.DistributionBucket = "distribution"
	c.AbortOutsideTimeWindow = true
	c.SubmissionPeriodOffset = -15 * time.Minute
	c.Concurrency = 15
	c.TaskTimeout = 6 * time.Minute
	c.DailyInvalidationPattern = "/distribution/daily*"
	c.TwoHourlyInvalidationPattern = "/distribution/two-hourly*"
	c.RunTimeout = 15 * time.Minute

	c.InteropHTTPTimeout = 1 * time.Minute

	c.DownloadEnabled = true
	c.ValidOrigins = []string{}
	c.DownloadRiskLevelDefault = 7
	c.InitialDownloadHistoryDays = 14
	c.MaxSubsequentBatchDownloadCount = 100

	c.UploadEnabled = true
	c.UploadRegions = []string{"GB-EAW"}
	c.UploadRiskLevelDefault = 7
	c.InitialUploadHistoryDays = 14
	c.MaxUploadBatchSize = 0
	c.MaxSubsequentBatchUploadCount = 100
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional JSON file and finally from command-line flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
