package submissions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/exposurekeys/internal/common"
	"github.com/dmitrijs2005/exposurekeys/internal/logging"
	"github.com/dmitrijs2005/exposurekeys/internal/storage"
	"github.com/dmitrijs2005/exposurekeys/internal/tek"
	"github.com/dmitrijs2005/exposurekeys/internal/workerpool"
	"github.com/google/uuid"
)

// storedPayload is the JSON document kept per submission.
type storedPayload struct {
	TemporaryExposureKeys []tek.Key `json:"temporaryExposureKeys"`
}

// ObjectConfig describes the bucket layout.
type ObjectConfig struct {
	Bucket string

	// LocalPrefixes hold device submissions; empty means any key outside
	// FederatedPrefix. The first prefix is used when storing local ones.
	LocalPrefixes []string

	// FederatedPrefix holds imported submissions as
	// <prefix>/<origin>/<yyyyMMdd>/<batchTag>.json.
	FederatedPrefix string

	Concurrency  int
	FetchTimeout time.Duration
}

// ObjectRepository keeps each submission as a JSON object. The object's
// last-modified time is the submission time.
type ObjectRepository struct {
	store  storage.ObjectStore
	cfg    ObjectConfig
	logger logging.Logger
	newID  func() string
}

func NewObjectRepository(store storage.ObjectStore, cfg ObjectConfig, logger logging.Logger) *ObjectRepository {
	if cfg.FederatedPrefix == "" {
		cfg.FederatedPrefix = "federatedKeyPrefix"
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 5 * time.Minute
	}
	return &ObjectRepository{
		store:  store,
		cfg:    cfg,
		logger: logger.With("module", "submissions"),
		newID:  uuid.NewString,
	}
}

func (r *ObjectRepository) isFederated(key string) bool {
	return strings.HasPrefix(key, r.cfg.FederatedPrefix+"/")
}

func (r *ObjectRepository) isLocal(key string) bool {
	if r.isFederated(key) {
		return false
	}
	if len(r.cfg.LocalPrefixes) == 0 {
		return true
	}
	for _, p := range r.cfg.LocalPrefixes {
		if strings.HasPrefix(key, p) {
			return true
		}
	}
	return false
}

// Load lists the bucket, applies q and fetches the selected objects
// concurrently. Objects that cannot be decoded are logged and skipped.
func (r *ObjectRepository) Load(ctx context.Context, q Query) ([]tek.Submission, error) {
	objects, err := r.store.List(ctx, r.cfg.Bucket, "")
	if err != nil {
		return nil, err
	}

	selected := objects[:0]
	for _, o := range objects {
		if !o.LastModified.After(q.SinceExclusive) {
			continue
		}
		if r.isLocal(o.Key) || (!q.LocalOnly && r.isFederated(o.Key)) {
			selected = append(selected, o)
		}
	}
	sort.SliceStable(selected, func(i, j int) bool {
		if !selected[i].LastModified.Equal(selected[j].LastModified) {
			return selected[i].LastModified.Before(selected[j].LastModified)
		}
		return selected[i].Key < selected[j].Key
	})
	selected = limitByTimestamp(selected, func(o storage.Object) time.Time { return o.LastModified }, q.Limit, q.MaxResults)

	results := make([]*tek.Submission, len(selected))
	var mu sync.Mutex

	pool := workerpool.New(ctx, "submission-loader", r.cfg.Concurrency, r.logger)
	for i, o := range selected {
		if err := pool.Submit(func(ctx context.Context) error {
			s, err := r.fetch(ctx, o)
			if err != nil {
				return err
			}
			mu.Lock()
			results[i] = s
			mu.Unlock()
			return nil
		}); err != nil {
			return nil, err
		}
	}
	if err := pool.CloseAndWait(r.cfg.FetchTimeout); err != nil {
		return nil, fmt.Errorf("load submissions: %w", err)
	}

	out := make([]tek.Submission, 0, len(results))
	for _, s := range results {
		if s != nil {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (r *ObjectRepository) fetch(ctx context.Context, o storage.Object) (*tek.Submission, error) {
	b, err := r.store.Get(ctx, r.cfg.Bucket, o.Key)
	if errors.Is(err, common.ErrorNotFound) {
		r.logger.Warn(ctx, "submission disappeared", "key", o.Key)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var p storedPayload
	if err := json.Unmarshal(b, &p); err != nil {
		r.logger.Warn(ctx, "skipping malformed submission", "key", o.Key, "error", err)
		return nil, nil
	}

	s := &tek.Submission{ID: o.Key, SubmittedAt: o.LastModified.UTC(), Keys: p.TemporaryExposureKeys}
	if r.isFederated(o.Key) {
		parts := strings.Split(strings.TrimPrefix(o.Key, r.cfg.FederatedPrefix+"/"), "/")
		if len(parts) == 3 {
			s.Origin = parts[0]
			s.BatchTag = strings.TrimSuffix(parts[2], ".json")
		}
	}
	return s, nil
}

// ObjectKey is where s is stored.
func (r *ObjectRepository) ObjectKey(s tek.Submission) string {
	if s.IsFederated() {
		return fmt.Sprintf("%s/%s/%s/%s.json", r.cfg.FederatedPrefix, s.Origin, s.SubmittedAt.UTC().Format("20060102"), s.BatchTag)
	}
	id := s.ID
	if id == "" {
		id = r.newID()
	}
	prefix := ""
	if len(r.cfg.LocalPrefixes) > 0 {
		prefix = r.cfg.LocalPrefixes[0]
	}
	return prefix + id + ".json"
}

func (r *ObjectRepository) Store(ctx context.Context, s tek.Submission) error {
	b, err := json.Marshal(storedPayload{TemporaryExposureKeys: s.Keys})
	if err != nil {
		return err
	}
	return r.store.Put(ctx, r.cfg.Bucket, r.ObjectKey(s), b, common.ContentTypeJSON, nil)
}
