// Package app wires configuration into the distribution and federation
// jobs: it opens the submission store and sync cursors, picks the object
// store and signer, and runs one job per process with a signal-aware
// context.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/dmitrijs2005/exposurekeys/internal/awsx"
	"github.com/dmitrijs2005/exposurekeys/internal/config"
	"github.com/dmitrijs2005/exposurekeys/internal/logging"
	"github.com/dmitrijs2005/exposurekeys/internal/repositories/cursors"
	"github.com/dmitrijs2005/exposurekeys/internal/repositories/repomanager"
	"github.com/dmitrijs2005/exposurekeys/internal/repositories/submissions"
	"github.com/dmitrijs2005/exposurekeys/internal/signer"
	"github.com/dmitrijs2005/exposurekeys/internal/storage"
)

// loadAWSConfig is a seam for tests.
var loadAWSConfig = awsx.LoadConfig

type App struct {
	config  *config.Config
	logger  logging.Logger
	store   storage.ObjectStore
	repo    submissions.Repository
	cursors cursors.Store
	signer  signer.Signer
	db      *sql.DB

	aws    *aws.Config
	closed bool
}

// NewApp builds the shared dependencies of both jobs. The caller must
// Close the App.
func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	app := &App{config: c, logger: logger}

	if err := app.initStore(ctx); err != nil {
		return nil, err
	}
	if err := app.initSubmissions(ctx); err != nil {
		return nil, err
	}
	if err := app.initSigner(ctx); err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

// NewLogger returns the JSON logger used by the binaries.
func NewLogger(c *config.Config) logging.Logger {
	return logging.NewJSONLogger(os.Stdout, c.LogLevel)
}

func (app *App) awsConfig(ctx context.Context) (aws.Config, error) {
	if app.aws != nil {
		return *app.aws, nil
	}
	cfg, err := loadAWSConfig(ctx, awsx.Options{
		Region:          app.config.AWSRegion,
		AccessKeyID:     app.config.AWSAccessKeyID,
		SecretAccessKey: app.config.AWSSecretAccessKey,
	})
	if err != nil {
		return aws.Config{}, fmt.Errorf("aws config: %w", err)
	}
	app.aws = &cfg
	return cfg, nil
}

func (app *App) initStore(ctx context.Context) error {
	switch app.config.StorageBackend {
	case config.BackendFile:
		fs, err := storage.NewFileStore(app.config.StorageRoot)
		if err != nil {
			return fmt.Errorf("file store: %w", err)
		}
		app.store = fs
	case config.BackendS3:
		cfg, err := app.awsConfig(ctx)
		if err != nil {
			return err
		}
		app.store = storage.NewS3StoreFromConfig(cfg, app.config.S3BaseEndpoint)
	default:
		return fmt.Errorf("unsupported storage backend %q", app.config.StorageBackend)
	}
	return nil
}

func (app *App) initSubmissions(ctx context.Context) error {
	switch app.config.SubmissionBackend {
	case config.BackendSQL:
		rm, err := repomanager.NewSQLRepositoryManager(app.config.DatabaseDriver)
		if err != nil {
			return fmt.Errorf("db init error: %w", err)
		}
		db, err := rm.Open(ctx, app.config.DatabaseDSN)
		if err != nil {
			return fmt.Errorf("db init error: %w", err)
		}
		if err := rm.RunMigrations(ctx, db); err != nil {
			db.Close()
			return fmt.Errorf("migrations: %w", err)
		}
		app.db = db
		app.repo = rm.Submissions(db)
		app.cursors = rm.Cursors(db)
	case config.BackendS3:
		app.repo = submissions.NewObjectRepository(app.store, submissions.ObjectConfig{
			Bucket:          app.config.SubmissionBucket,
			LocalPrefixes:   app.config.SubmissionPrefixes,
			FederatedPrefix: app.config.FederatedKeyPrefix,
			Concurrency:     app.config.Concurrency,
		}, app.logger)
		app.cursors = cursors.NewObjectStore(app.store, app.config.StateBucket, app.config.StatePrefix)
	default:
		return fmt.Errorf("unsupported submission backend %q", app.config.SubmissionBackend)
	}
	return nil
}

func (app *App) initSigner(ctx context.Context) error {
	if app.config.KMSKeyID != "" {
		cfg, err := app.awsConfig(ctx)
		if err != nil {
			return err
		}
		app.signer = signer.NewKMSSignerFromConfig(cfg, app.config.KMSKeyID)
		return nil
	}
	s, err := signer.LoadLocalSigner(app.config.SigningKeyFile)
	if err != nil {
		return err
	}
	app.signer = s
	return nil
}

// Close releases the database connection.
func (app *App) Close() error {
	if app.closed || app.db == nil {
		return nil
	}
	app.closed = true
	return app.db.Close()
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) func() {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	done := make(chan struct{})
	go func() {
		select {
		case <-sigs:
			cancelFunc()
		case <-done:
		}
	}()

	return func() {
		signal.Stop(sigs)
		close(done)
	}
}

// runContext derives the context of a single job run: cancelled on
// SIGINT/SIGTERM/SIGQUIT and bounded by RunTimeout when set.
func (app *App) runContext(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	stop := app.initSignalHandler(cancel)

	if app.config.RunTimeout > 0 {
		var cancelTimeout context.CancelFunc
		ctx, cancelTimeout = context.WithTimeout(ctx, app.config.RunTimeout)
		return ctx, func() {
			cancelTimeout()
			stop()
			cancel()
		}
	}
	return ctx, func() {
		stop()
		cancel()
	}
}
