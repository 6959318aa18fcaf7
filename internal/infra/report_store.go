package infra

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/Skarath13/cards/internal/config"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
)

// ReportStore keeps end-of-day report files.
type ReportStore interface {
	// Put stores body under key and returns where it landed.
	Put(ctx context.Context, key string, body []byte, contentType string) (string, error)
	Get(ctx context.Context, key string) ([]byte, error)
}

// NewReportStore picks the backend from REPORT_STORAGE.
func NewReportStore(cfg *config.Config) (ReportStore, error) {
	switch cfg.ReportStorage {
	case "local", "":
		store, err := NewLocalReportStore(cfg.ReportPath)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "s3":
		s3Config := &aws.Config{
			Credentials:      credentials.NewStaticCredentials(cfg.S3KeyID, cfg.S3AppKey, ""),
			Region:           aws.String(cfg.S3Region),
			S3ForcePathStyle: aws.Bool(true),
		}
		if cfg.S3Endpoint != "" {
			s3Config.Endpoint = aws.String(cfg.S3Endpoint)
		}
		sess, err := session.NewSession(s3Config)
		if err != nil {
			return nil, fmt.Errorf("report store: s3 session: %w", err)
		}
		return NewS3ReportStore(s3.New(sess), cfg.S3Bucket), nil
	default:
		return nil, fmt.Errorf("report store: unsupported REPORT_STORAGE %q", cfg.ReportStorage)
	}
}

// ── Local directory ───────────────────────────────────────────────────────────

type LocalReportStore struct {
	root string
}

func NewLocalReportStore(root string) (*LocalReportStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("report store: create %s: %w", root, err)
	}
	return &LocalReportStore{root: root}, nil
}

func (l *LocalReportStore) Put(_ context.Context, key string, body []byte, _ string) (string, error) {
	path := filepath.Join(l.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func (l *LocalReportStore) Get(_ context.Context, key string) ([]byte, error) {
	return os.ReadFile(filepath.Join(l.root, filepath.FromSlash(key)))
}

// ── S3-compatible bucket ──────────────────────────────────────────────────────

type S3ReportStore struct {
	api    s3iface.S3API
	bucket string
}

func NewS3ReportStore(api s3iface.S3API, bucket string) *S3ReportStore {
	return &S3ReportStore{api: api, bucket: bucket}
}

func (s *S3ReportStore) Put(ctx context.Context, key string, body []byte, contentType string) (string, error) {
	_, err := s.api.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("report store: put %s: %w", key, err)
	}
	return "s3://" + s.bucket + "/" + key, nil
}

func (s *S3ReportStore) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := s.api.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("report store: get %s: %w", key, err)
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}
