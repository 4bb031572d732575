package submissions

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/exposurekeys/internal/common"
	"github.com/dmitrijs2005/exposurekeys/internal/logging"
	"github.com/dmitrijs2005/exposurekeys/internal/storage"
	"github.com/dmitrijs2005/exposurekeys/internal/tek"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memObject struct {
	body    []byte
	modTime time.Time
}

type memStore struct {
	storage.ObjectStore

	mu      sync.Mutex
	objects map[string]memObject
	now     time.Time
	listErr error
	missing map[string]bool
}

func newMemStore(now time.Time) *memStore {
	return &memStore{objects: map[string]memObject{}, now: now, missing: map[string]bool{}}
}

func (m *memStore) add(key string, body string, at time.Time) {
	m.objects[key] = memObject{body: []byte(body), modTime: at}
}

func (m *memStore) Put(_ context.Context, _, key string, body []byte, _ string, _ map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = memObject{body: body, modTime: m.now}
	return nil
}

func (m *memStore) Get(_ context.Context, _, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.objects[key]
	if !ok || m.missing[key] {
		return nil, common.ErrorNotFound
	}
	return o.body, nil
}

func (m *memStore) List(_ context.Context, _, prefix string) ([]storage.Object, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []storage.Object
	for k, o := range m.objects {
		if strings.HasPrefix(k, prefix) {
			out = append(out, storage.Object{Key: k, LastModified: o.modTime})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func discardLogger() logging.Logger {
	return logging.Nop{}
}

const payload = `{"temporaryExposureKeys":[{"key":"AQIDBAUGBwgJCgsMDQ4PEA==","rollingStartNumber":2657952,"rollingPeriod":144,"transmissionRisk":7}]}`

func TestObjectRepository_LoadFiltersAndOrders(t *testing.T) {
	base := time.Date(2020, 7, 15, 1, 0, 0, 0, time.UTC)
	store := newMemStore(base)
	store.add("local/b.json", payload, base.Add(2*time.Minute))
	store.add("local/a.json", payload, base.Add(time.Minute))
	store.add("local/old.json", payload, base)
	store.add("federatedKeyPrefix/JE/20200715/tag-1.json", payload, base.Add(3*time.Minute))
	store.add("other/ignored.json", payload, base.Add(4*time.Minute))

	repo := NewObjectRepository(store, ObjectConfig{Bucket: "subs", LocalPrefixes: []string{"local/"}}, discardLogger())

	got, err := repo.Load(context.Background(), Query{SinceExclusive: base})
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, "local/a.json", got[0].ID)
	assert.Equal(t, "local/b.json", got[1].ID)
	assert.Equal(t, "federatedKeyPrefix/JE/20200715/tag-1.json", got[2].ID)
	assert.Equal(t, "JE", got[2].Origin)
	assert.Equal(t, "tag-1", got[2].BatchTag)
	require.Len(t, got[0].Keys, 1)
	assert.Equal(t, int64(2657952), got[0].Keys[0].RollingStartNumber)

	local, err := repo.Load(context.Background(), Query{SinceExclusive: base, LocalOnly: true})
	require.NoError(t, err)
	require.Len(t, local, 2)
	for _, s := range local {
		assert.False(t, s.IsFederated())
	}
}

func TestObjectRepository_LoadSoftLimitKeepsTies(t *testing.T) {
	base := time.Date(2020, 7, 15, 1, 0, 0, 0, time.UTC)
	store := newMemStore(base)
	store.add("a.json", payload, base.Add(time.Minute))
	store.add("b.json", payload, base.Add(2*time.Minute))
	store.add("c.json", payload, base.Add(2*time.Minute))
	store.add("d.json", payload, base.Add(3*time.Minute))

	repo := NewObjectRepository(store, ObjectConfig{Bucket: "subs"}, discardLogger())

	got, err := repo.Load(context.Background(), Query{Limit: 2})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "c.json", got[2].ID)

	capped, err := repo.Load(context.Background(), Query{Limit: 2, MaxResults: 2})
	require.NoError(t, err)
	require.Len(t, capped, 2)
}

func TestObjectRepository_SkipsMalformedAndMissing(t *testing.T) {
	base := time.Date(2020, 7, 15, 1, 0, 0, 0, time.UTC)
	store := newMemStore(base)
	store.add("good.json", payload, base.Add(time.Minute))
	store.add("bad.json", "{not json", base.Add(time.Minute))
	store.add("gone.json", payload, base.Add(time.Minute))
	store.missing["gone.json"] = true

	repo := NewObjectRepository(store, ObjectConfig{Bucket: "subs"}, discardLogger())

	got, err := repo.Load(context.Background(), Query{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "good.json", got[0].ID)
}

func TestObjectRepository_LoadListError(t *testing.T) {
	store := newMemStore(time.Now())
	store.listErr = errors.New("access denied")

	repo := NewObjectRepository(store, ObjectConfig{Bucket: "subs"}, discardLogger())

	_, err := repo.Load(context.Background(), Query{})
	require.EqualError(t, err, "access denied")
}

func TestObjectRepository_StoreLayout(t *testing.T) {
	at := time.Date(2020, 7, 15, 9, 30, 0, 0, time.UTC)
	store := newMemStore(at)
	repo := NewObjectRepository(store, ObjectConfig{Bucket: "subs", LocalPrefixes: []string{"uploads/"}}, discardLogger())
	repo.newID = func() string { return "fixed" }

	keys := []tek.Key{{KeyData: "AQIDBAUGBwgJCgsMDQ4PEA==", RollingStartNumber: 2657952, RollingPeriod: 144, TransmissionRiskLevel: 7}}

	require.NoError(t, repo.Store(context.Background(), tek.Submission{SubmittedAt: at, Keys: keys}))
	require.NoError(t, repo.Store(context.Background(), tek.Submission{SubmittedAt: at, Origin: "GB", BatchTag: "tag-9", Keys: keys}))

	_, ok := store.objects["uploads/fixed.json"]
	assert.True(t, ok)
	_, ok = store.objects["federatedKeyPrefix/GB/20200715/tag-9.json"]
	assert.True(t, ok)

	got, err := repo.Load(context.Background(), Query{})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, keys, got[0].Keys)
}
