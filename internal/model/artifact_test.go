package model

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDownloader struct {
	body  []byte
	err   error
	calls int
	input *s3.GetObjectInput
}

func (d *fakeDownloader) Download(ctx context.Context, w io.WriterAt, input *s3.GetObjectInput, options ...func(*manager.Downloader)) (int64, error) {
	d.calls++
	d.input = input
	if d.err != nil {
		return 0, d.err
	}
	n, err := w.WriteAt(d.body, 0)
	return int64(n), err
}

func newFakeS3Source(d *fakeDownloader, cacheDir string) *S3Source {
	return &S3Source{
		downloader: d,
		bucket:     "models",
		key:        "smartseva/hierarchical_main_severity_model.onnx",
		cacheDir:   cacheDir,
	}
}

func TestLocalSource(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "model.onnx")
	require.NoError(t, os.WriteFile(path, []byte("onnx"), 0644))

	got, err := LocalSource{Path: path}.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, path, got)

	_, err = LocalSource{Path: filepath.Join(dir, "missing.onnx")}.Fetch(context.Background())
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = LocalSource{Path: dir}.Fetch(context.Background())
	assert.ErrorContains(t, err, "is a directory")
}

func TestS3SourceDownloadsOnce(t *testing.T) {
	cacheDir := filepath.Join(t.TempDir(), "cache")
	d := &fakeDownloader{body: []byte("onnx-bytes")}
	src := newFakeS3Source(d, cacheDir)

	path, err := src.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cacheDir, "hierarchical_main_severity_model.onnx"), path)
	assert.Equal(t, "models", aws.ToString(d.input.Bucket))
	assert.Equal(t, "smartseva/hierarchical_main_severity_model.onnx", aws.ToString(d.input.Key))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "onnx-bytes", string(data))

	again, err := src.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, path, again)
	assert.Equal(t, 1, d.calls)

	// A new source over the same cache dir behaves like a restarted process.
	fresh := &fakeDownloader{body: []byte("other")}
	_, err = newFakeS3Source(fresh, cacheDir).Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, fresh.calls)
}

func TestS3SourceFailureLeavesNoFiles(t *testing.T) {
	cacheDir := t.TempDir()
	src := newFakeS3Source(&fakeDownloader{err: errors.New("access denied")}, cacheDir)

	_, err := src.Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "s3://models/smartseva/hierarchical_main_severity_model.onnx")

	entries, err := os.ReadDir(cacheDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestS3SourceRejectsEmptyObject(t *testing.T) {
	cacheDir := t.TempDir()
	src := newFakeS3Source(&fakeDownloader{body: nil}, cacheDir)

	_, err := src.Fetch(context.Background())
	assert.ErrorContains(t, err, "empty")

	_, err = os.Stat(src.CachePath())
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestS3SourceString(t *testing.T) {
	src := NewS3Source(NewS3Client(S3Config{Region: "us-east-1", Endpoint: "http://127.0.0.1:9000"}), "models", "a/b.onnx", "/tmp/cache")

	assert.Equal(t, "s3://models/a/b.onnx", src.String())
	assert.Equal(t, filepath.Join("/tmp/cache", "b.onnx"), src.CachePath())
}
