package federation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/exposurekeys/internal/common"
	"github.com/dmitrijs2005/exposurekeys/internal/repositories/cursors"
)

const (
	DownloadCursorKey = "federation-download"
	UploadCursorKey   = "federation-upload"
)

type downloadState struct {
	BatchTag  string `json:"batchTag"`
	BatchDate string `json:"batchDate"`
}

type uploadState struct {
	LastUploadedTimestamp time.Time `json:"lastUploadedTimestamp"`
}

// Cursor stores the last downloaded batch and the last uploaded
// submission time under two independent keys.
type Cursor struct {
	store cursors.Store
}

func NewCursor(store cursors.Store) *Cursor {
	return &Cursor{store: store}
}

// DownloadCursor returns nil when nothing was downloaded yet.
func (c *Cursor) DownloadCursor(ctx context.Context) (*Batch, error) {
	var st downloadState
	found, err := c.get(ctx, DownloadCursorKey, &st)
	if err != nil || !found {
		return nil, err
	}

	date, err := time.Parse(BatchDateLayout, st.BatchDate)
	if err != nil {
		return nil, fmt.Errorf("download cursor: %w", err)
	}
	return &Batch{BatchTag: st.BatchTag, BatchDate: date}, nil
}

func (c *Cursor) SetDownloadCursor(ctx context.Context, b Batch) error {
	return c.put(ctx, DownloadCursorKey, downloadState{
		BatchTag:  b.BatchTag,
		BatchDate: b.BatchDate.UTC().Format(BatchDateLayout),
	})
}

// UploadCursor returns nil when nothing was uploaded yet.
func (c *Cursor) UploadCursor(ctx context.Context) (*time.Time, error) {
	var st uploadState
	found, err := c.get(ctx, UploadCursorKey, &st)
	if err != nil || !found {
		return nil, err
	}
	t := st.LastUploadedTimestamp.UTC()
	return &t, nil
}

func (c *Cursor) SetUploadCursor(ctx context.Context, t time.Time) error {
	return c.put(ctx, UploadCursorKey, uploadState{LastUploadedTimestamp: t.UTC()})
}

func (c *Cursor) get(ctx context.Context, key string, v any) (bool, error) {
	b, err := c.store.Get(ctx, key)
	if errors.Is(err, common.ErrorNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return false, fmt.Errorf("cursor %s: %w", key, err)
	}
	return true, nil
}

func (c *Cursor) put(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.store.Put(ctx, key, b)
}
