// Package distribution regenerates the signed daily and two-hourly key
// exports, removes objects that fell out of the retention window and
// invalidates the CDN.
package distribution

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/dmitrijs2005/exposurekeys/internal/cdn"
	"github.com/dmitrijs2005/exposurekeys/internal/common"
	"github.com/dmitrijs2005/exposurekeys/internal/export"
	"github.com/dmitrijs2005/exposurekeys/internal/logging"
	"github.com/dmitrijs2005/exposurekeys/internal/repositories/submissions"
	"github.com/dmitrijs2005/exposurekeys/internal/schedule"
	"github.com/dmitrijs2005/exposurekeys/internal/storage"
	"github.com/dmitrijs2005/exposurekeys/internal/tek"
	"github.com/dmitrijs2005/exposurekeys/internal/workerpool"
)

const (
	DefaultTaskTimeout      = 6 * time.Minute
	DefaultDailyPattern     = "/distribution/daily*"
	DefaultTwoHourlyPattern = "/distribution/two-hourly*"
)

type Config struct {
	Bucket string

	AbortOutsideTimeWindow bool
	// SubmissionPeriodOffset zero means schedule.DefaultSubmissionPeriodOffset.
	SubmissionPeriodOffset time.Duration

	// LoadHistory limits loaded submissions to those newer than now minus
	// LoadHistory; zero loads everything.
	LoadHistory time.Duration

	Concurrency int
	TaskTimeout time.Duration

	// CloudFrontDistributionID empty skips invalidation.
	CloudFrontDistributionID string
	DailyPattern             string
	TwoHourlyPattern         string
}

// Builder produces a signed export for a key list.
type Builder interface {
	Build(ctx context.Context, keys []tek.Key, now time.Time) (*export.Batch, error)
}

// HeaderSigner computes the signature metadata stored with each archive.
type HeaderSigner interface {
	Headers(ctx context.Context, content []byte) (map[string]string, error)
}

type Service struct {
	repo    submissions.Repository
	builder Builder
	store   storage.ObjectStore
	headers HeaderSigner
	cdn     cdn.Invalidator
	cfg     Config
	logger  logging.Logger
	shuffle func([]tek.Key)
}

func NewService(repo submissions.Repository, builder Builder, store storage.ObjectStore, headers HeaderSigner,
	invalidator cdn.Invalidator, cfg Config, logger logging.Logger) *Service {
	if cfg.SubmissionPeriodOffset == 0 {
		cfg.SubmissionPeriodOffset = schedule.DefaultSubmissionPeriodOffset
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = DefaultTaskTimeout
	}
	if cfg.DailyPattern == "" {
		cfg.DailyPattern = DefaultDailyPattern
	}
	if cfg.TwoHourlyPattern == "" {
		cfg.TwoHourlyPattern = DefaultTwoHourlyPattern
	}
	if invalidator == nil {
		invalidator = cdn.Noop{}
	}
	return &Service{
		repo:    repo,
		builder: builder,
		store:   store,
		headers: headers,
		cdn:     invalidator,
		cfg:     cfg,
		logger:  logger.With("module", "distribution"),
		shuffle: shuffleKeys,
	}
}

func shuffleKeys(keys []tek.Key) {
	rand.Shuffle(len(keys), func(i, j int) { keys[i], keys[j] = keys[j], keys[i] })
}

type keptSet struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

func (k *keptSet) add(key string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.keys[key] = struct{}{}
}

func (k *keptSet) has(key string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	_, ok := k.keys[key]
	return ok
}

// DistributeKeys performs one distribution run anchored at now. Any
// failure aborts the run before storage is reconciled.
func (s *Service) DistributeKeys(ctx context.Context, now time.Time) error {
	now = now.UTC()
	window := schedule.NewWindow(now, s.cfg.SubmissionPeriodOffset)
	s.logger.Info(ctx, "distribution window", "now", now, "window", window.String())

	if !window.IsValidBatchStart() {
		if s.cfg.AbortOutsideTimeWindow {
			return fmt.Errorf("%w: %s not in %s", common.ErrOutsideWindow, now.Format(time.RFC3339), window)
		}
		s.logger.Warn(ctx, "running outside of the distribution window", "now", now)
	}

	q := submissions.Query{}
	if s.cfg.LoadHistory > 0 {
		q.SinceExclusive = now.Add(-s.cfg.LoadHistory)
	}
	subs, err := s.repo.Load(ctx, q)
	if err != nil {
		return fmt.Errorf("load submissions: %w", err)
	}
	s.logger.Info(ctx, "loaded submissions", "count", len(subs))

	kept := &keptSet{keys: map[string]struct{}{}}
	pool := workerpool.New(ctx, "distribution", s.cfg.Concurrency, s.logger)
	for _, kind := range []schedule.Kind{schedule.Daily, schedule.TwoHourly} {
		for _, p := range schedule.PeriodFor(kind, now).AllPeriodsToGenerate() {
			if err := pool.Submit(func(ctx context.Context) error {
				return s.distributePeriod(ctx, subs, window, p, now, kept)
			}); err != nil {
				return err
			}
		}
	}
	if err := pool.CloseAndWait(s.cfg.TaskTimeout); err != nil {
		return fmt.Errorf("generate exports: %w", err)
	}

	if err := s.removeStale(ctx, kept); err != nil {
		return err
	}
	return s.invalidate(ctx)
}

// validKeys returns the keys of submissions covered by p that are valid
// at the window's expiry reference.
func (s *Service) validKeys(subs []tek.Submission, window schedule.Window, p schedule.Period) []tek.Key {
	ref := window.ZipExpirationExclusive()
	var keys []tek.Key
	for _, sub := range subs {
		if !p.Covers(sub.SubmittedAt, s.cfg.SubmissionPeriodOffset) {
			continue
		}
		for _, k := range sub.Keys {
			if k.IsValidAt(ref) {
				keys = append(keys, k)
			}
		}
	}
	return keys
}

func (s *Service) distributePeriod(ctx context.Context, subs []tek.Submission, window schedule.Window,
	p schedule.Period, now time.Time, kept *keptSet) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	keys := s.validKeys(subs, window, p)
	s.shuffle(keys)

	batch, err := s.builder.Build(ctx, keys, now)
	if err != nil {
		return fmt.Errorf("%s: %w", p, err)
	}
	archive, err := batch.Zip()
	if err != nil {
		return fmt.Errorf("%s: %w", p, err)
	}

	var meta map[string]string
	if s.headers != nil {
		if meta, err = s.headers.Headers(ctx, archive); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}

	// A failed sibling task cancels ctx; nothing is published after that.
	if err := ctx.Err(); err != nil {
		return err
	}
	path := p.ZipPath()
	if err := s.store.Put(ctx, s.cfg.Bucket, path, archive, common.ContentTypeZip, meta); err != nil {
		return fmt.Errorf("%s: %w", p, err)
	}
	kept.add(path)

	s.logger.Debug(ctx, "published export", "path", path, "keys", len(keys))
	return nil
}

func (s *Service) removeStale(ctx context.Context, kept *keptSet) error {
	objects, err := s.store.List(ctx, s.cfg.Bucket, "")
	if err != nil {
		return fmt.Errorf("list distribution bucket: %w", err)
	}

	deleted := 0
	for _, o := range objects {
		if kept.has(o.Key) {
			continue
		}
		if err := s.store.Delete(ctx, s.cfg.Bucket, o.Key); err != nil {
			return fmt.Errorf("delete %s: %w", o.Key, err)
		}
		deleted++
	}
	s.logger.Info(ctx, "removed stale objects", "deleted", deleted, "kept", len(objects)-deleted)
	return nil
}

func (s *Service) invalidate(ctx context.Context) error {
	if s.cfg.CloudFrontDistributionID == "" {
		s.logger.Info(ctx, "no CDN distribution configured, skipping invalidation")
		return nil
	}
	for _, pattern := range []string{s.cfg.DailyPattern, s.cfg.TwoHourlyPattern} {
		if err := s.cdn.Invalidate(ctx, s.cfg.CloudFrontDistributionID, pattern); err != nil {
			return err
		}
	}
	return nil
}
