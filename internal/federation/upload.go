package federation

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/exposurekeys/internal/logging"
	"github.com/dmitrijs2005/exposurekeys/internal/repositories/submissions"
	"github.com/dmitrijs2005/exposurekeys/internal/tek"
)

// DefaultUploadBatchHeadroom is subtracted from MaxBatchSize to get the
// soft limit, leaving room for submissions that arrive during a run.
const DefaultUploadBatchHeadroom = 4

type UploadConfig struct {
	Regions []string

	RiskLevelDefaultEnabled bool
	RiskLevelDefault        int32

	// InitialHistoryDays is how far back the first upload starts when no
	// cursor exists.
	InitialHistoryDays int

	// MaxBatchSize caps submissions per request; 0 uploads everything in
	// a single request.
	MaxBatchSize  int
	BatchHeadroom int

	// MaxBatches bounds the requests made in one run.
	MaxBatches int
}

// Uploader sends local submissions newer than the upload cursor to the
// partner.
type Uploader struct {
	client Client
	cursor *Cursor
	repo   submissions.Repository
	cfg    UploadConfig
	logger logging.Logger
	now    func() time.Time
}

func NewUploader(client Client, cursor *Cursor, repo submissions.Repository, cfg UploadConfig, logger logging.Logger) *Uploader {
	if cfg.MaxBatches <= 0 {
		cfg.MaxBatches = 1
	}
	if cfg.BatchHeadroom <= 0 {
		cfg.BatchHeadroom = DefaultUploadBatchHeadroom
	}
	if cfg.Regions == nil {
		cfg.Regions = []string{}
	}
	return &Uploader{
		client: client,
		cursor: cursor,
		repo:   repo,
		cfg:    cfg,
		logger: logger.With("module", "federation-upload"),
		now:    time.Now,
	}
}

func (u *Uploader) limits() (soft, hard int) {
	if u.cfg.MaxBatchSize <= 0 {
		return 0, 0
	}
	return max(u.cfg.MaxBatchSize-u.cfg.BatchHeadroom, 1), u.cfg.MaxBatchSize
}

// Run uploads batches until the backlog is drained, the batch limit is
// reached or the context deadline is too close. It returns the number of
// submissions uploaded. The cursor is saved after every accepted batch.
func (u *Uploader) Run(ctx context.Context) (int, error) {
	last := u.now().UTC().AddDate(0, 0, -u.cfg.InitialHistoryDays)
	saved, err := u.cursor.UploadCursor(ctx)
	if err != nil {
		return 0, err
	}
	if saved != nil {
		last = *saved
	}
	u.logger.Info(ctx, "starting upload", "since", last)

	soft, hard := u.limits()
	uploaded := 0
	var longest time.Duration

	for i := 1; i <= u.cfg.MaxBatches; i++ {
		started := time.Now()

		subs, err := u.repo.Load(ctx, submissions.Query{
			SinceExclusive: last,
			Limit:          soft,
			MaxResults:     hard,
			LocalOnly:      true,
		})
		if err != nil {
			return uploaded, fmt.Errorf("load submissions: %w", err)
		}
		if len(subs) == 0 {
			u.logger.Info(ctx, "no submissions to upload", "since", last, "iteration", i)
			break
		}

		exposures := u.exposures(subs)
		if len(exposures) > 0 {
			resp, err := u.client.Upload(ctx, exposures)
			if err != nil {
				return uploaded, err
			}
			if resp.InsertedExposures != len(exposures) {
				u.logger.Warn(ctx, "partner inserted fewer keys than sent",
					"sent", len(exposures), "inserted", resp.InsertedExposures, "iteration", i)
			}
		} else {
			u.logger.Info(ctx, "no valid keys in submissions", "submissions", len(subs), "iteration", i)
		}

		newest := last
		for _, s := range subs {
			if s.SubmittedAt.After(newest) {
				newest = s.SubmittedAt
			}
		}
		if err := u.cursor.SetUploadCursor(ctx, newest); err != nil {
			return uploaded, fmt.Errorf("save upload cursor: %w", err)
		}
		u.logger.Info(ctx, "uploaded batch", "submissions", len(subs), "keys", len(exposures), "until", newest, "iteration", i)

		last = newest
		uploaded += len(subs)

		if hard == 0 || len(subs) < soft {
			break
		}
		longest = max(longest, time.Since(started))
		if budgetExhausted(ctx, longest) {
			u.logger.Warn(ctx, "stopping upload, time budget exhausted", "longestIteration", longest)
			break
		}
	}

	u.logger.Info(ctx, "upload finished", "submissions", uploaded)
	return uploaded, nil
}

func (u *Uploader) exposures(subs []tek.Submission) []ExposureUpload {
	now := u.now()
	var out []ExposureUpload
	for _, s := range subs {
		for _, k := range s.Keys {
			if !k.HasValidShape() || !k.IsValidAt(now) {
				continue
			}
			risk := k.TransmissionRiskLevel
			if u.cfg.RiskLevelDefaultEnabled {
				risk = u.cfg.RiskLevelDefault
			}
			out = append(out, ExposureUpload{
				KeyData:               k.KeyData,
				RollingStartNumber:    k.RollingStartNumber,
				TransmissionRiskLevel: risk,
				RollingPeriod:         k.RollingPeriod,
				Regions:               u.cfg.Regions,
				DaysSinceOnset:        k.DaysSinceOnset,
			})
		}
	}
	return out
}
