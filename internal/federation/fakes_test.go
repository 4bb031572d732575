package federation

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/exposurekeys/internal/common"
	"github.com/dmitrijs2005/exposurekeys/internal/logging"
	"github.com/dmitrijs2005/exposurekeys/internal/repositories/submissions"
	"github.com/dmitrijs2005/exposurekeys/internal/tek"
)

var testNow = time.Date(2020, 7, 16, 1, 46, 0, 0, time.UTC)

const (
	validKeyData = "AQIDBAUGBwgJCgsMDQ4PEA=="
	// 2020-07-15T00:00Z
	todayMinusOneRSN = 2657952
)

func validKey() tek.Key {
	return tek.Key{KeyData: validKeyData, RollingStartNumber: todayMinusOneRSN, RollingPeriod: 144, TransmissionRiskLevel: 7}
}

func expiredKey() tek.Key {
	return tek.Key{KeyData: validKeyData, RollingStartNumber: todayMinusOneRSN - 144*20, RollingPeriod: 144, TransmissionRiskLevel: 7}
}

func discardLogger() logging.Logger {
	return logging.Nop{}
}

type memCursorStore struct {
	mu     sync.Mutex
	values map[string][]byte
	getErr error
	putErr error
	puts   int
}

func newMemCursorStore() *memCursorStore {
	return &memCursorStore{values: map[string][]byte{}}
}

func (m *memCursorStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	v, ok := m.values[key]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return v, nil
}

func (m *memCursorStore) Put(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putErr != nil {
		return m.putErr
	}
	m.values[key] = value
	m.puts++
	return nil
}

type memRepo struct {
	submissions.Repository

	mu       sync.Mutex
	subs     []tek.Submission
	stored   []tek.Submission
	queries  []submissions.Query
	storeErr error
	loadErr  error
}

func (m *memRepo) Store(_ context.Context, s tek.Submission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.storeErr != nil {
		return m.storeErr
	}
	m.stored = append(m.stored, s)
	return nil
}

// Load applies SinceExclusive and LocalOnly, then caps the result at
// Limit and MaxResults. Timestamp ties are not special-cased.
func (m *memRepo) Load(_ context.Context, q submissions.Query) ([]tek.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries = append(m.queries, q)
	if m.loadErr != nil {
		return nil, m.loadErr
	}

	var out []tek.Submission
	for _, s := range m.subs {
		if !s.SubmittedAt.After(q.SinceExclusive) {
			continue
		}
		if q.LocalOnly && s.IsFederated() {
			continue
		}
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].SubmittedAt.Before(out[j].SubmittedAt) })
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	if q.MaxResults > 0 && len(out) > q.MaxResults {
		out = out[:q.MaxResults]
	}
	return out, nil
}

type downloadCall struct {
	date     time.Time
	batchTag string
}

type fakeClient struct {
	downloads   []*DownloadResponse
	downloadAt  int
	downloadErr error
	calls       []downloadCall

	uploads   [][]ExposureUpload
	uploadErr error
}

func (f *fakeClient) Download(_ context.Context, date time.Time, batchTag string) (*DownloadResponse, error) {
	f.calls = append(f.calls, downloadCall{date: date, batchTag: batchTag})
	if f.downloadErr != nil && f.downloadAt >= len(f.downloads) {
		return nil, f.downloadErr
	}
	if f.downloadAt >= len(f.downloads) {
		return nil, nil
	}
	r := f.downloads[f.downloadAt]
	f.downloadAt++
	return r, nil
}

func (f *fakeClient) Upload(_ context.Context, exposures []ExposureUpload) (*UploadResponse, error) {
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	f.uploads = append(f.uploads, exposures)
	return &UploadResponse{BatchTag: "accepted", InsertedExposures: len(exposures)}, nil
}
