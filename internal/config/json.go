package config

import (
	"encoding/json"
	"os"
	"slices"
	"time"

	"github.com/dmitrijs2005/exposurekeys/internal/flagx"
	"github.com/dmitrijs2005/exposurekeys/internal/timex"
)

// JsonConfig is the JSON form of Config. Interval fields use
// timex.Duration so both "15m" strings and integer nanoseconds parse.
type JsonConfig struct {
	LogLevel string `json:"log_level"`

	DatabaseDriver string `json:"database_driver"`
	DatabaseDSN    string `json:"database_dsn"`

	SubmissionBackend  string   `json:"submission_backend"`
	SubmissionBucket   string   `json:"submission_bucket"`
	SubmissionPrefixes []string `json:"submission_prefixes"`
	FederatedKeyPrefix string   `json:"federated_key_prefix"`
	StateBucket        string   `json:"state_bucket"`
	StatePrefix        string   `json:"state_prefix"`

	StorageBackend     string `json:"storage_backend"`
	StorageRoot        string `json:"storage_root"`
	AWSRegion          string `json:"aws_region"`
	AWSAccessKeyID     string `json:"aws_access_key_id"`
	AWSSecretAccessKey string `json:"aws_secret_access_key"`
	S3BaseEndpoint     string `json:"s3_base_endpoint"`

	SigningKeyFile         string `json:"signing_key_file"`
	KMSKeyID               string `json:"kms_key_id"`
	SignatureKeyID         string `json:"signature_key_id"`
	AppBundleID            string `json:"app_bundle_id"`
	AndroidPackage         string `json:"android_package"`
	VerificationKeyID      string `json:"verification_key_id"`
	VerificationKeyVersion string `json:"verification_key_version"`

	DistributionBucket           string         `json:"distribution_bucket"`
	AbortOutsideTimeWindow       bool           `json:"abort_outside_time_window"`
	SubmissionPeriodOffset       timex.Duration `json:"submission_period_offset"`
	LoadHistory                  timex.Duration `json:"load_history"`
	Concurrency                  int            `json:"concurrency"`
	TaskTimeout                  timex.Duration `json:"task_timeout"`
	CloudFrontDistributionID     string         `json:"cloudfront_distribution_id"`
	DailyInvalidationPattern     string         `json:"daily_invalidation_pattern"`
	TwoHourlyInvalidationPattern string         `json:"two_hourly_invalidation_pattern"`
	RunTimeout                   timex.Duration `json:"run_timeout"`

	InteropBaseURL             string         `json:"interop_base_url"`
	InteropAuthToken           string         `json:"interop_auth_token"`
	InteropAuthTokenSecretName string         `json:"interop_auth_token_secret_name"`
	InteropHTTPTimeout         timex.Duration `json:"interop_http_timeout"`

	DownloadEnabled                 bool     `json:"download_enabled"`
	ValidOrigins                    []string `json:"valid_origins"`
	DownloadRiskLevelDefaultEnabled bool     `json:"download_risk_level_default_enabled"`
	DownloadRiskLevelDefault        int      `json:"download_risk_level_default"`
	InitialDownloadHistoryDays      int      `json:"initial_download_history_days"`
	MaxSubsequentBatchDownloadCount int      `json:"max_subsequent_batch_download_count"`

	UploadEnabled                 bool     `json:"upload_enabled"`
	UploadRegions                 []string `json:"upload_regions"`
	UploadRiskLevelDefaultEnabled bool     `json:"upload_risk_level_default_enabled"`
	UploadRiskLevelDefault        int      `json:"upload_risk_level_default"`
	InitialUploadHistoryDays      int      `json:"initial_upload_history_days"`
	MaxUploadBatchSize            int      `json:"max_upload_batch_size"`
	MaxSubsequentBatchUploadCount int      `json:"max_subsequent_batch_upload_count"`
}

func toJson(c *Config) *JsonConfig {
	return &JsonConfig{
		LogLevel:                        c.LogLevel,
		DatabaseDriver:                  c.DatabaseDriver,
		DatabaseDSN:                     c.DatabaseDSN,
		SubmissionBackend:               c.SubmissionBackend,
		SubmissionBucket:                c.SubmissionBucket,
		SubmissionPrefixes:              slices.Clone(c.SubmissionPrefixes),
		FederatedKeyPrefix:              c.FederatedKeyPrefix,
		StateBucket:                     c.StateBucket,
		StatePrefix:                     c.StatePrefix,
		StorageBackend:                  c.StorageBackend,
		StorageRoot:                     c.StorageRoot,
		AWSRegion:                       c.AWSRegion,
		AWSAccessKeyID:                  c.AWSAccessKeyID,
		AWSSecretAccessKey:              c.AWSSecretAccessKey,
		S3BaseEndpoint:                  c.S3BaseEndpoint,
		SigningKeyFile:                  c.SigningKeyFile,
		KMSKeyID:                        c.KMSKeyID,
		SignatureKeyID:                  c.SignatureKeyID,
		AppBundleID:                     c.AppBundleID,
		AndroidPackage:                  c.AndroidPackage,
		VerificationKeyID:               c.VerificationKeyID,
		VerificationKeyVersion:          c.VerificationKeyVersion,
		DistributionBucket:              c.DistributionBucket,
		AbortOutsideTimeWindow:          c.AbortOutsideTimeWindow,
		SubmissionPeriodOffset:          timex.Duration{Duration: c.SubmissionPeriodOffset},
		LoadHistory:                     timex.Duration{Duration: c.LoadHistory},
		Concurrency:                     c.Concurrency,
		TaskTimeout:                     timex.Duration{Duration: c.TaskTimeout},
		CloudFrontDistributionID:        c.CloudFrontDistributionID,
		DailyInvalidationPattern:        c.DailyInvalidationPattern,
		TwoHourlyInvalidationPattern:    c.TwoHourlyInvalidationPattern,
		RunTimeout:                      timex.Duration{Duration: c.RunTimeout},
		InteropBaseURL:                  c.InteropBaseURL,
		InteropAuthToken:                c.InteropAuthToken,
		InteropAuthTokenSecretName:      c.InteropAuthTokenSecretName,
		InteropHTTPTimeout:              timex.Duration{Duration: c.InteropHTTPTimeout},
		DownloadEnabled:                 c.DownloadEnabled,
		ValidOrigins:                    slices.Clone(c.ValidOrigins),
		DownloadRiskLevelDefaultEnabled: c.DownloadRiskLevelDefaultEnabled,
		DownloadRiskLevelDefault:        c.DownloadRiskLevelDefault,
		InitialDownloadHistoryDays:      c.InitialDownloadHistoryDays,
		MaxSubsequentBatchDownloadCount: c.MaxSubsequentBatchDownloadCount,
		UploadEnabled:                   c.UploadEnabled,
		UploadRegions:                   slices.Clone(c.UploadRegions),
		UploadRiskLevelDefaultEnabled:   c.UploadRiskLevelDefaultEnabled,
		UploadRiskLevelDefault:          c.UploadRiskLevelDefault,
		InitialUploadHistoryDays:        c.InitialUploadHistoryDays,
		MaxUploadBatchSize:              c.MaxUploadBatchSize,
		MaxSubsequentBatchUploadCount:   c.MaxSubsequentBatchUploadCount,
	}
}

func (j *JsonConfig) apply(c *Config) {
	c.LogLevel = j.LogLevel
	c.DatabaseDriver = j.DatabaseDriver
	c.DatabaseDSN = j.DatabaseDSN
	c.SubmissionBackend = j.SubmissionBackend
	c.SubmissionBucket = j.SubmissionBucket
	c.SubmissionPrefixes = j.SubmissionPrefixes
	c.FederatedKeyPrefix = j.FederatedKeyPrefix
	c.StateBucket = j.StateBucket
	c.StatePrefix = j.StatePrefix
	c.StorageBackend = j.StorageBackend
	c.StorageRoot = j.StorageRoot
	c.AWSRegion = j.AWSRegion
	c.AWSAccessKeyID = j.AWSAccessKeyID
	c.AWSSecretAccessKey = j.AWSSecretAccessKey
	c.S3BaseEndpoint = j.S3BaseEndpoint
	c.SigningKeyFile = j.SigningKeyFile
	c.KMSKeyID = j.KMSKeyID
	c.SignatureKeyID = j.SignatureKeyID
	c.AppBundleID = j.AppBundleID
	c.AndroidPackage = j.AndroidPackage
	c.VerificationKeyID = j.VerificationKeyID
	c.VerificationKeyVersion = j.VerificationKeyVersion
	c.DistributionBucket = j.DistributionBucket
	c.AbortOutsideTimeWindow = j.AbortOutsideTimeWindow
	c.SubmissionPeriodOffset = time.Duration(j.SubmissionPeriodOffset.Duration)
	c.LoadHistory = time.Duration(j.LoadHistory.Duration)
	c.Concurrency = j.Concurrency
	c.TaskTimeout = time.Duration(j.TaskTimeout.Duration)
	c.CloudFrontDistributionID = j.CloudFrontDistributionID
	c.DailyInvalidationPattern = j.DailyInvalidationPattern
	c.TwoHourlyInvalidationPattern = j.TwoHourlyInvalidationPattern
	c.RunTimeout = time.Duration(j.RunTimeout.Duration)
	c.InteropBaseURL = j.InteropBaseURL
	c.InteropAuthToken = j.InteropAuthToken
	c.InteropAuthTokenSecretName = j.InteropAuthTokenSecretName
	c.InteropHTTPTimeout = time.Duration(j.InteropHTTPTimeout.Duration)
	c.DownloadEnabled = j.DownloadEnabled
	c.ValidOrigins = j.ValidOrigins
	c.DownloadRiskLevelDefaultEnabled = j.DownloadRiskLevelDefaultEnabled
	c.DownloadRiskLevelDefault = j.DownloadRiskLevelDefault
	c.InitialDownloadHistoryDays = j.InitialDownloadHistoryDays
	c.MaxSubsequentBatchDownloadCount = j.MaxSubsequentBatchDownloadCount
	c.UploadEnabled = j.UploadEnabled
	c.UploadRegions = j.UploadRegions
	c.UploadRiskLevelDefaultEnabled = j.UploadRiskLevelDefaultEnabled
	c.UploadRiskLevelDefault = j.UploadRiskLevelDefault
	c.InitialUploadHistoryDays = j.InitialUploadHistoryDays
	c.MaxUploadBatchSize = j.MaxUploadBatchSize
	c.MaxSubsequentBatchUploadCount = j.MaxSubsequentBatchUploadCount
}

// parseJson overlays the file named by -c/-config onto config. Keys absent
// from the file keep their current values. An unreadable file or invalid
// JSON panics.
func parseJson(config *Config) {

	// try flags
	jsonConfigFile := flagx.JsonConfigFlags()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := toJson(config)
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	c.apply(config)
}
