package s3

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"

	"github.com/kirillkom/legal-intake/internal/infrastructure/resilience"
)

const keyPrefix = "quarantine"

// QuarantineMirror copies quarantined uploads to a private bucket for the
// security team. Objects are server-side encrypted and never public.
type QuarantineMirror struct {
	client   s3iface.S3API
	bucket   string
	executor *resilience.Executor
	logger   *slog.Logger
}

type Config struct {
	Bucket   string
	Region   string
	Endpoint string
}

// New uses the default AWS credential chain.
func New(cfg Config, executor *resilience.Executor, logger *slog.Logger) (*QuarantineMirror, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("quarantine bucket is required")
	}
	awsCfg := &aws.Config{Region: aws.String(cfg.Region)}
	if cfg.Endpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.Endpoint)
		awsCfg.S3ForcePathStyle = aws.Bool(true)
	}
	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("create aws session: %w", err)
	}
	return NewWithClient(s3.New(sess), cfg.Bucket, executor, logger), nil
}

func NewWithClient(client s3iface.S3API, bucket string, executor *resilience.Executor, logger *slog.Logger) *QuarantineMirror {
	if logger == nil {
		logger = slog.Default()
	}
	if executor == nil {
		executor = resilience.NewExecutor(resilience.DefaultConfig(), resilience.WithLogger(logger))
	}
	return &QuarantineMirror{client: client, bucket: bucket, executor: executor, logger: logger}
}

// Mirror uploads data under a key derived from the local quarantine path.
func (m *QuarantineMirror) Mirror(ctx context.Context, localPath string, data []byte) error {
	key := objectKey(localPath)
	sum := sha256.Sum256(data)
	err := m.executor.Execute(ctx, "s3.mirror_quarantine", func(ctx context.Context) error {
		_, err := m.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
			Bucket:               aws.String(m.bucket),
			Key:                  aws.String(key),
			Body:                 bytes.NewReader(data),
			ContentType:          aws.String("application/octet-stream"),
			ServerSideEncryption: aws.String(s3.ServerSideEncryptionAes256),
			Metadata: map[string]*string{
				"sha256": aws.String(hex.EncodeToString(sum[:])),
			},
		})
		return err
	}, nil)
	if err != nil {
		return fmt.Errorf("mirror quarantine %s: %w", key, err)
	}
	m.logger.Info("quarantine mirrored", "bucket", m.bucket, "key", key, "size", len(data))
	return nil
}

// objectKey keeps the year/month partition and file name of the local path.
func objectKey(localPath string) string {
	parts := strings.Split(filepath.ToSlash(filepath.Clean(localPath)), "/")
	if len(parts) > 3 {
		parts = parts[len(parts)-3:]
	}
	return keyPrefix + "/" + strings.Join(parts, "/")
}
