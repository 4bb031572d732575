package federation

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/dmitrijs2005/exposurekeys/internal/logging"
	"github.com/dmitrijs2005/exposurekeys/internal/repositories/submissions"
	"github.com/dmitrijs2005/exposurekeys/internal/tek"
	"github.com/google/uuid"
)

type DownloadConfig struct {
	// ValidOrigins lists the partner regions whose keys are stored.
	ValidOrigins []string

	RiskLevelDefaultEnabled bool
	RiskLevelDefault        int32

	// InitialHistoryDays is how far back the first download starts when
	// no cursor exists.
	InitialHistoryDays int

	// MaxBatches bounds the pages fetched in one run.
	MaxBatches int
}

// Downloader pulls batches from the partner and stores the valid keys of
// allow-listed origins as federated submissions.
type Downloader struct {
	client Client
	cursor *Cursor
	repo   submissions.Repository
	cfg    DownloadConfig
	logger logging.Logger
	now    func() time.Time
	newID  func() string
}

func NewDownloader(client Client, cursor *Cursor, repo submissions.Repository, cfg DownloadConfig, logger logging.Logger) *Downloader {
	if cfg.MaxBatches <= 0 {
		cfg.MaxBatches = 1
	}
	return &Downloader{
		client: client,
		cursor: cursor,
		repo:   repo,
		cfg:    cfg,
		logger: logger.With("module", "federation-download"),
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// Run downloads until the server reports no more data, the batch limit is
// reached or the context deadline is too close. It returns the number of
// batches processed. On error the cursor keeps the last acknowledged batch.
func (d *Downloader) Run(ctx context.Context) (int, error) {
	today := d.now().UTC().Truncate(24 * time.Hour)

	date := today.AddDate(0, 0, -d.cfg.InitialHistoryDays)
	tag := ""

	last, err := d.cursor.DownloadCursor(ctx)
	if err != nil {
		return 0, err
	}
	if last != nil {
		date, tag = last.BatchDate, last.BatchTag
	}
	d.logger.Info(ctx, "starting download", "date", date.Format(BatchDateLayout), "batchTag", tag)

	processed := 0
	var longest time.Duration
	for i := 1; i <= d.cfg.MaxBatches; i++ {
		started := time.Now()

		resp, err := d.client.Download(ctx, date, tag)
		if err != nil {
			return processed, err
		}
		if resp == nil {
			break
		}

		if err := d.accept(ctx, resp); err != nil {
			return processed, err
		}
		if err := d.cursor.SetDownloadCursor(ctx, Batch{BatchTag: resp.BatchTag, BatchDate: today}); err != nil {
			return processed, fmt.Errorf("save download cursor: %w", err)
		}
		d.logger.Info(ctx, "downloaded batch", "batchTag", resp.BatchTag, "exposures", len(resp.Exposures), "iteration", i)

		tag = resp.BatchTag
		processed++

		longest = max(longest, time.Since(started))
		if budgetExhausted(ctx, longest) {
			d.logger.Warn(ctx, "stopping download, time budget exhausted", "longestIteration", longest)
			break
		}
	}

	d.logger.Info(ctx, "download finished", "batches", processed)
	return processed, nil
}

func (d *Downloader) accept(ctx context.Context, resp *DownloadResponse) error {
	now := d.now()

	var origins []string
	byOrigin := map[string][]tek.Key{}
	for _, e := range resp.Exposures {
		k := e.Key()
		if d.cfg.RiskLevelDefaultEnabled {
			k.TransmissionRiskLevel = d.cfg.RiskLevelDefault
		}
		if _, ok := byOrigin[e.Origin]; !ok {
			origins = append(origins, e.Origin)
		}
		byOrigin[e.Origin] = append(byOrigin[e.Origin], k)
	}

	for _, origin := range origins {
		keys := byOrigin[origin]

		valid := make([]tek.Key, 0, len(keys))
		for _, k := range keys {
			if k.HasValidShape() && k.IsValidAt(now) {
				valid = append(valid, k)
			}
		}
		d.logger.Info(ctx, "downloaded federated keys", "origin", origin, "batchTag", resp.BatchTag,
			"valid", len(valid), "invalid", len(keys)-len(valid))

		if !slices.Contains(d.cfg.ValidOrigins, origin) {
			d.logger.Warn(ctx, "dropping keys from origin not on allow-list", "origin", origin, "batchTag", resp.BatchTag)
			continue
		}
		if len(valid) == 0 {
			d.logger.Info(ctx, "no valid keys to store", "origin", origin, "batchTag", resp.BatchTag)
			continue
		}

		err := d.repo.Store(ctx, tek.Submission{
			ID:          d.newID(),
			SubmittedAt: now.UTC(),
			Origin:      origin,
			BatchTag:    resp.BatchTag,
			Keys:        valid,
		})
		if err != nil {
			return fmt.Errorf("store keys of origin %s: %w", origin, err)
		}
	}
	return nil
}
