package model

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const downloadPartSize = 10 * 1024 * 1024

// Source resolves the model artifact to a file on local disk.
type Source interface {
	Fetch(ctx context.Context) (string, error)
	String() string
}

type LocalSource struct {
	Path string
}

func (s LocalSource) Fetch(ctx context.Context) (string, error) {
	info, err := os.Stat(s.Path)
	if err != nil {
		return "", fmt.Errorf("model file not found: %w", err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("model path %s is a directory", s.Path)
	}
	return s.Path, nil
}

func (s LocalSource) String() string {
	return s.Path
}

type S3Config struct {
	// "http://127.0.0.1:9000" for minio; empty for AWS.
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
}

func NewS3Client(cfg S3Config) *s3.Client {
	return s3.NewFromConfig(aws.Config{Region: cfg.Region}, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
		if cfg.AccessKey != "" {
			o.Credentials = credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")
		} else {
			o.Credentials = aws.AnonymousCredentials{}
		}
	})
}

type downloader interface {
	Download(ctx context.Context, w io.WriterAt, input *s3.GetObjectInput, options ...func(*manager.Downloader)) (int64, error)
}

// S3Source downloads the model object once into cacheDir. Later fetches,
// including those from a restarted process, reuse the cached file.
type S3Source struct {
	downloader downloader
	bucket     string
	key        string
	cacheDir   string
}

func NewS3Source(client *s3.Client, bucket, key, cacheDir string) *S3Source {
	d := manager.NewDownloader(client, func(d *manager.Downloader) {
		d.PartSize = downloadPartSize
	})
	return &S3Source{
		downloader: d,
		bucket:     bucket,
		key:        key,
		cacheDir:   cacheDir,
	}
}

func (s *S3Source) CachePath() string {
	return filepath.Join(s.cacheDir, filepath.Base(s.key))
}

func (s *S3Source) String() string {
	return fmt.Sprintf("s3://%s/%s", s.bucket, s.key)
}

func (s *S3Source) Fetch(ctx context.Context) (string, error) {
	path := s.CachePath()
	if info, err := os.Stat(path); err == nil && info.Size() > 0 {
		return path, nil
	}

	if err := os.MkdirAll(s.cacheDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create model cache dir: %w", err)
	}

	tmp, err := os.CreateTemp(s.cacheDir, ".download-*")
	if err != nil {
		return "", fmt.Errorf("failed to create download file: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := s.downloader.Download(ctx, tmp, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return "", fmt.Errorf("failed to download %s: %w", s, err)
	}
	if n == 0 {
		return "", errors.New("downloaded model object is empty")
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("failed to move model into cache: %w", err)
	}
	return path, nil
}
