package config

import (
	"flag"
	"os"
	"strings"

	"github.com/dmitrijs2005/exposurekeys/internal/flagx"
)

// parseFlags overlays command-line flags onto config.
//
// Every Config field has a flag named after it in kebab case, for example
// -database-dsn, -max-upload-batch-size or -submission-period-offset.
// Durations use time.ParseDuration syntax ("15m", "-15m") and lists are
// comma-separated. Booleans are switched off with -flag=false.
//
// os.Args is first filtered down to the flags defined here with
// flagx.FilterFlagSet, so -c/-config and flags of other components do not
// collide.
func parseFlags(config *Config) {
	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.LogLevel, "log-level", config.LogLevel, "log level (debug, info, warn, error)")

	fs.StringVar(&config.DatabaseDriver, "database-driver", config.DatabaseDriver, "database driver (pgx or sqlite)")
	fs.StringVar(&config.DatabaseDSN, "database-dsn", config.DatabaseDSN, "database DSN")

	fs.StringVar(&config.SubmissionBackend, "submission-backend", config.SubmissionBackend, "submission store (sql or s3)")
	fs.StringVar(&config.SubmissionBucket, "submission-bucket", config.SubmissionBucket, "bucket holding submissions")
	submissionPrefixes := fs.String("submission-prefixes", strings.Join(config.SubmissionPrefixes, ","), "comma-separated prefixes of device submissions")
	fs.StringVar(&config.FederatedKeyPrefix, "federated-key-prefix", config.FederatedKeyPrefix, "prefix of imported submissions")
	fs.StringVar(&config.StateBucket, "state-bucket", config.StateBucket, "bucket holding sync cursors")
	fs.StringVar(&config.StatePrefix, "state-prefix", config.StatePrefix, "prefix of sync cursors")

	fs.StringVar(&config.StorageBackend, "storage-backend", config.StorageBackend, "object store (s3 or file)")
	fs.StringVar(&config.StorageRoot, "storage-root", config.StorageRoot, "root directory of the file object store")
	fs.StringVar(&config.AWSRegion, "aws-region", config.AWSRegion, "AWS region")
	fs.StringVar(&config.AWSAccessKeyID, "aws-access-key-id", config.AWSAccessKeyID, "static AWS access key id")
	fs.StringVar(&config.AWSSecretAccessKey, "aws-secret-access-key", config.AWSSecretAccessKey, "static AWS secret access key")
	fs.StringVar(&config.S3BaseEndpoint, "s3-base-endpoint", config.S3BaseEndpoint, "S3 base endpoint (e.g., \"http://127.0.0.1:9000/\")")

	fs.StringVar(&config.SigningKeyFile, "signing-key-file", config.SigningKeyFile, "PEM encoded P-256 private key")
	fs.StringVar(&config.KMSKeyID, "kms-key-id", config.KMSKeyID, "KMS signing key id, overrides the key file")
	fs.StringVar(&config.SignatureKeyID, "signature-key-id", config.SignatureKeyID, "key id in Signature metadata")
	fs.StringVar(&config.AppBundleID, "app-bundle-id", config.AppBundleID, "export app bundle id")
	fs.StringVar(&config.AndroidPackage, "android-package", config.AndroidPackage, "export android package")
	fs.StringVar(&config.VerificationKeyID, "verification-key-id", config.VerificationKeyID, "export verification key id")
	fs.StringVar(&config.VerificationKeyVersion, "verification-key-version", config.VerificationKeyVersion, "export verification key version")

	fs.StringVar(&config.DistributionBucket, "distribution-bucket", config.DistributionBucket, "bucket receiving exports")
	fs.BoolVar(&config.AbortOutsideTimeWindow, "abort-outside-time-window", config.AbortOutsideTimeWindow, "refuse to run outside the distribution window")
	fs.DurationVar(&config.SubmissionPeriodOffset, "submission-period-offset", config.SubmissionPeriodOffset, "shift applied to period bounds")
	fs.DurationVar(&config.LoadHistory, "load-history", config.LoadHistory, "only load submissions this recent, 0 loads all")
	fs.IntVar(&config.Concurrency, "concurrency", config.Concurrency, "export workers")
	fs.DurationVar(&config.TaskTimeout, "task-timeout", config.TaskTimeout, "time allowed for all exports")
	fs.StringVar(&config.CloudFrontDistributionID, "cloudfront-distribution-id", config.CloudFrontDistributionID, "CloudFront distribution to invalidate")
	fs.StringVar(&config.DailyInvalidationPattern, "daily-invalidation-pattern", config.DailyInvalidationPattern, "daily invalidation path")
	fs.StringVar(&config.TwoHourlyInvalidationPattern, "two-hourly-invalidation-pattern", config.TwoHourlyInvalidationPattern, "two-hourly invalidation path")
	fs.DurationVar(&config.RunTimeout, "run-timeout", config.RunTimeout, "deadline of a single run")

	fs.StringVar(&config.InteropBaseURL, "interop-base-url", config.InteropBaseURL, "federation server base URL")
	fs.StringVar(&config.InteropAuthToken, "interop-auth-token", config.InteropAuthToken, "federation bearer token")
	fs.StringVar(&config.InteropAuthTokenSecretName, "interop-auth-token-secret-name", config.InteropAuthTokenSecretName, "Secrets Manager name of the bearer token")
	fs.DurationVar(&config.InteropHTTPTimeout, "interop-http-timeout", config.InteropHTTPTimeout, "federation request timeout")

	fs.BoolVar(&config.DownloadEnabled, "download-enabled", config.DownloadEnabled, "download keys from the federation server")
	validOrigins := fs.String("valid-origins", strings.Join(config.ValidOrigins, ","), "comma-separated origins accepted on download")
	fs.BoolVar(&config.DownloadRiskLevelDefaultEnabled, "download-risk-level-default-enabled", config.DownloadRiskLevelDefaultEnabled, "override risk level of downloaded keys")
	fs.IntVar(&config.DownloadRiskLevelDefault, "download-risk-level-default", config.DownloadRiskLevelDefault, "risk level of downloaded keys")
	fs.IntVar(&config.InitialDownloadHistoryDays, "initial-download-history-days", config.InitialDownloadHistoryDays, "days fetched on the first download")
	fs.IntVar(&config.MaxSubsequentBatchDownloadCount, "max-subsequent-batch-download-count", config.MaxSubsequentBatchDownloadCount, "batches fetched per run")

	fs.BoolVar(&config.UploadEnabled, "upload-enabled", config.UploadEnabled, "upload keys to the federation server")
	uploadRegions := fs.String("upload-regions", strings.Join(config.UploadRegions, ","), "comma-separated regions sent with uploaded keys")
	fs.BoolVar(&config.UploadRiskLevelDefaultEnabled, "upload-risk-level-default-enabled", config.UploadRiskLevelDefaultEnabled, "override risk level of uploaded keys")
	fs.IntVar(&config.UploadRiskLevelDefault, "upload-risk-level-default", config.UploadRiskLevelDefault, "risk level of uploaded keys")
	fs.IntVar(&config.InitialUploadHistoryDays, "initial-upload-history-days", config.InitialUploadHistoryDays, "days sent on the first upload")
	fs.IntVar(&config.MaxUploadBatchSize, "max-upload-batch-size", config.MaxUploadBatchSize, "submissions per upload, 0 means unbounded")
	fs.IntVar(&config.MaxSubsequentBatchUploadCount, "max-subsequent-batch-upload-count", config.MaxSubsequentBatchUploadCount, "uploads per run")

	// Filter args to include only the flags handled here.
	args := flagx.FilterFlagSet(os.Args[1:], fs)

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.SubmissionPrefixes = flagx.SplitList(*submissionPrefixes)
	config.ValidOrigins = flagx.SplitList(*validOrigins)
	config.UploadRegions = flagx.SplitList(*uploadRegions)
}
