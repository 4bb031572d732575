package app

import (
	"context"
	"time"

	"github.com/dmitrijs2005/exposurekeys/internal/cdn"
	"github.com/dmitrijs2005/exposurekeys/internal/distribution"
	"github.com/dmitrijs2005/exposurekeys/internal/export"
	"github.com/dmitrijs2005/exposurekeys/internal/signer"
)

// Distribution returns the export job configured from the App.
func (app *App) Distribution(ctx context.Context) (*distribution.Service, error) {
	c := app.config

	var invalidator cdn.Invalidator
	if c.CloudFrontDistributionID != "" {
		cfg, err := app.awsConfig(ctx)
		if err != nil {
			return nil, err
		}
		invalidator = cdn.NewCloudFrontFromConfig(cfg)
	}

	builder := export.NewBuilder(app.signer, export.SignatureInfo{
		AppBundleID:            c.AppBundleID,
		AndroidPackage:         c.AndroidPackage,
		VerificationKeyVersion: c.VerificationKeyVersion,
		VerificationKeyID:      c.VerificationKeyID,
	})

	return distribution.NewService(
		app.repo,
		builder,
		app.store,
		signer.NewDatedSigner(app.signer, c.SignatureKeyID),
		invalidator,
		distribution.Config{
			Bucket:                   c.DistributionBucket,
			AbortOutsideTimeWindow:   c.AbortOutsideTimeWindow,
			SubmissionPeriodOffset:   c.SubmissionPeriodOffset,
			LoadHistory:              c.LoadHistory,
			Concurrency:              c.Concurrency,
			TaskTimeout:              c.TaskTimeout,
			CloudFrontDistributionID: c.CloudFrontDistributionID,
			DailyPattern:             c.DailyInvalidationPattern,
			TwoHourlyPattern:         c.TwoHourlyInvalidationPattern,
		},
		app.logger,
	), nil
}

// RunDistribution performs one distribution run at the current time.
func (app *App) RunDistribution(ctx context.Context) error {
	ctx, cancel := app.runContext(ctx)
	defer cancel()

	app.logger.Info(ctx, "Starting distribution...")

	svc, err := app.Distribution(ctx)
	if err != nil {
		return err
	}
	if err := svc.DistributeKeys(ctx, time.Now()); err != nil {
		return err
	}

	app.logger.Info(ctx, "Distribution finished")
	return nil
}
