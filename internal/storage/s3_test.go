package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/dmitrijs2005/exposurekeys/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	s3API

	put     *s3.PutObjectInput
	putBody string
	pages   []*s3.ListObjectsV2Output
	tokens  []string
	getErr  error
	deleted []string
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.put = in
	b, _ := io.ReadAll(in.Body)
	f.putBody = string(b)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader("content of " + *in.Key))}, nil
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.tokens = append(f.tokens, aws.ToString(in.ContinuationToken))
	page := f.pages[0]
	f.pages = f.pages[1:]
	return page, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.deleted = append(f.deleted, *in.Bucket+"/"+*in.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3Store_Put(t *testing.T) {
	f := &fakeS3{}
	s := NewS3Store(f)

	err := s.Put(context.Background(), "dist", "distribution/daily/2020071600.zip", []byte("zip"), "application/zip",
		map[string]string{"Signature-Date": "today"})
	require.NoError(t, err)

	assert.Equal(t, "dist", *f.put.Bucket)
	assert.Equal(t, "distribution/daily/2020071600.zip", *f.put.Key)
	assert.Equal(t, "application/zip", *f.put.ContentType)
	assert.Equal(t, "today", f.put.Metadata["Signature-Date"])
	assert.Equal(t, "zip", f.putBody)
}

func TestS3Store_ListFollowsPages(t *testing.T) {
	t1 := time.Date(2020, 7, 15, 1, 0, 0, 0, time.UTC)
	f := &fakeS3{pages: []*s3.ListObjectsV2Output{
		{
			Contents:              []types.Object{{Key: aws.String("a"), LastModified: &t1}},
			IsTruncated:           aws.Bool(true),
			NextContinuationToken: aws.String("next"),
		},
		{
			Contents:    []types.Object{{Key: aws.String("b")}},
			IsTruncated: aws.Bool(false),
		},
	}}

	objs, err := NewS3Store(f).List(context.Background(), "dist", "")
	require.NoError(t, err)

	assert.Equal(t, []Object{{Key: "a", LastModified: t1}, {Key: "b"}}, objs)
	assert.Equal(t, []string{"", "next"}, f.tokens)
}

func TestS3Store_Get(t *testing.T) {
	f := &fakeS3{}
	s := NewS3Store(f)

	b, err := s.Get(context.Background(), "sub", "mobile/1.json")
	require.NoError(t, err)
	assert.Equal(t, "content of mobile/1.json", string(b))

	f.getErr = &types.NoSuchKey{}
	_, err = s.Get(context.Background(), "sub", "missing")
	assert.ErrorIs(t, err, common.ErrorNotFound)

	f.getErr = errors.New("denied")
	_, err = s.Get(context.Background(), "sub", "x")
	assert.ErrorContains(t, err, "denied")
	assert.False(t, errors.Is(err, common.ErrorNotFound))
}

func TestS3Store_Delete(t *testing.T) {
	f := &fakeS3{}
	require.NoError(t, NewS3Store(f).Delete(context.Background(), "dist", "old.zip"))
	assert.Equal(t, []string{"dist/old.zip"}, f.deleted)
}

func TestNewS3StoreFromConfig_PathStyleForCustomEndpoint(t *testing.T) {
	orig := newS3ClientFromConfig
	t.Cleanup(func() { newS3ClientFromConfig = orig })

	var opts s3.Options
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		for _, fn := range optFns {
			fn(&opts)
		}
		return nil
	}

	NewS3StoreFromConfig(aws.Config{}, "http://127.0.0.1:9000/")

	assert.Equal(t, "http://127.0.0.1:9000/", aws.ToString(opts.BaseEndpoint))
	assert.True(t, opts.UsePathStyle)
}
