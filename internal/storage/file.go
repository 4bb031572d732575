package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dmitrijs2005/exposurekeys/internal/common"
	"github.com/dmitrijs2005/exposurekeys/internal/filex"
)

const metadataDir = ".metadata"

// FileStore keeps buckets as directories under a root, for local runs.
// Object metadata is written to root/.metadata/<bucket>/<key>.json.
type FileStore struct {
	root string
}

func NewFileStore(root string) (*FileStore, error) {
	dir, err := filex.EnsureDir(root)
	if err != nil {
		return nil, err
	}
	return &FileStore{root: dir}, nil
}

func (s *FileStore) path(bucket, key string) (string, error) {
	if bucket == "" || bucket == metadataDir || strings.ContainsAny(bucket, `/\`) {
		return "", fmt.Errorf("invalid bucket %q", bucket)
	}
	clean := filepath.Clean(filepath.FromSlash(key))
	if key == "" || filepath.IsAbs(clean) || clean == "." || strings.HasPrefix(clean, "..") {
		return "", fmt.Errorf("invalid key %q", key)
	}
	return filepath.Join(s.root, bucket, clean), nil
}

func (s *FileStore) Put(ctx context.Context, bucket, key string, body []byte, contentType string, metadata map[string]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := s.path(bucket, key)
	if err != nil {
		return err
	}
	if err := filex.WriteFileAtomic(p, body); err != nil {
		return err
	}

	meta := map[string]string{}
	for k, v := range metadata {
		meta[k] = v
	}
	if contentType != "" {
		meta["Content-Type"] = contentType
	}
	b, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	return filex.WriteFileAtomic(filepath.Join(s.root, metadataDir, bucket, filepath.FromSlash(key)+".json"), b)
}

func (s *FileStore) Get(_ context.Context, bucket, key string) ([]byte, error) {
	p, err := s.path(bucket, key)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("get %s/%s: %w", bucket, key, common.ErrorNotFound)
	}
	return b, err
}

// Metadata returns what Put stored alongside the object.
func (s *FileStore) Metadata(bucket, key string) (map[string]string, error) {
	b, err := os.ReadFile(filepath.Join(s.root, metadataDir, bucket, filepath.FromSlash(key)+".json"))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, err
	}
	meta := map[string]string{}
	return meta, json.Unmarshal(b, &meta)
}

// List walks the bucket directory. Keys use forward slashes and are sorted.
func (s *FileStore) List(_ context.Context, bucket, prefix string) ([]Object, error) {
	dir := filepath.Join(s.root, bucket)
	var objects []Object

	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && p == dir {
				return filepath.SkipDir
			}
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".tmp-") {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		objects = append(objects, Object{Key: key, LastModified: info.ModTime().UTC()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list %s/%s: %w", bucket, prefix, err)
	}

	sort.Slice(objects, func(i, j int) bool { return objects[i].Key < objects[j].Key })
	return objects, nil
}

func (s *FileStore) Delete(_ context.Context, bucket, key string) error {
	p, err := s.path(bucket, key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete %s/%s: %w", bucket, key, err)
	}
	_ = os.Remove(filepath.Join(s.root, metadataDir, bucket, filepath.FromSlash(key)+".json"))
	return nil
}
