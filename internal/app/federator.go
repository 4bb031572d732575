package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/dmitrijs2005/exposurekeys/internal/federation"
	"github.com/dmitrijs2005/exposurekeys/internal/secrets"
	"github.com/dmitrijs2005/exposurekeys/internal/signer"
)

var errInteropNotConfigured = errors.New("interop base URL and auth token must be configured")

// interopToken prefers the Secrets Manager secret over the literal token.
func (app *App) interopToken(ctx context.Context) (string, error) {
	name := app.config.InteropAuthTokenSecretName
	if name == "" {
		return app.config.InteropAuthToken, nil
	}
	cfg, err := app.awsConfig(ctx)
	if err != nil {
		return "", err
	}
	token, err := secrets.NewSecretsManagerFromConfig(cfg).Get(ctx, name)
	if err != nil {
		return "", fmt.Errorf("interop auth token: %w", err)
	}
	return token, nil
}

// Federation returns the federation job configured from the App.
func (app *App) Federation(ctx context.Context) (*federation.Service, error) {
	c := app.config

	var (
		download *federation.Downloader
		upload   *federation.Uploader
	)
	if !c.DownloadEnabled && !c.UploadEnabled {
		return federation.NewService(download, upload, app.logger), nil
	}

	token, err := app.interopToken(ctx)
	if err != nil {
		return nil, err
	}
	if c.InteropBaseURL == "" || token == "" {
		return nil, errInteropNotConfigured
	}

	client := federation.NewHTTPClient(c.InteropBaseURL, token, signer.NewJWS(app.signer), &http.Client{Timeout: c.InteropHTTPTimeout})
	cursor := federation.NewCursor(app.cursors)

	if c.DownloadEnabled {
		download = federation.NewDownloader(client, cursor, app.repo, federation.DownloadConfig{
			ValidOrigins:            c.ValidOrigins,
			RiskLevelDefaultEnabled: c.DownloadRiskLevelDefaultEnabled,
			RiskLevelDefault:        int32(c.DownloadRiskLevelDefault),
			InitialHistoryDays:      c.InitialDownloadHistoryDays,
			MaxBatches:              c.MaxSubsequentBatchDownloadCount,
		}, app.logger)
	}
	if c.UploadEnabled {
		upload = federation.NewUploader(client, cursor, app.repo, federation.UploadConfig{
			Regions:                 c.UploadRegions,
			RiskLevelDefaultEnabled: c.UploadRiskLevelDefaultEnabled,
			RiskLevelDefault:        int32(c.UploadRiskLevelDefault),
			InitialHistoryDays:      c.InitialUploadHistoryDays,
			MaxBatchSize:            c.MaxUploadBatchSize,
			MaxBatches:              c.MaxSubsequentBatchUploadCount,
		}, app.logger)
	}

	return federation.NewService(download, upload, app.logger), nil
}

// RunFederation downloads then uploads. Both directions run even if the
// first fails; their errors are joined.
func (app *App) RunFederation(ctx context.Context) error {
	ctx, cancel := app.runContext(ctx)
	defer cancel()

	app.logger.Info(ctx, "Starting federation...")

	svc, err := app.Federation(ctx)
	if err != nil {
		return err
	}
	if err := svc.Run(ctx); err != nil {
		return err
	}

	app.logger.Info(ctx, "Federation finished")
	return nil
}
