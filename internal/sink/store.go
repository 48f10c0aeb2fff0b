package sink

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	appconfig "feedflow/config"
	"feedflow/internal/metadata"
	"feedflow/models"
)

// LocalStore keeps objects under a directory and records each one in the
// table's manifest log.
type LocalStore struct {
	dir string
	gen *metadata.Generator
}

func NewLocalStore(dir string, schema *models.Schema) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	gen, err := metadata.NewGenerator(dir, schema)
	if err != nil {
		return nil, err
	}
	if err := gen.WriteCatalogEntry(filepath.Join(dir, "catalog"), string(schema.Destination)); err != nil {
		return nil, fmt.Errorf("catalog entry: %w", err)
	}
	return &LocalStore{dir: dir, gen: gen}, nil
}

func (l *LocalStore) Location() string { return l.dir }

// Put writes to a temp file and renames it into place, so readers never see
// a partial object. An existing object is left untouched but is still
// committed to the manifest, which repairs a write whose manifest step
// failed. created reports whether a new snapshot was added.
func (l *LocalStore) Put(_ context.Context, info ObjectInfo, data []byte) (bool, error) {
	target := filepath.Join(l.dir, filepath.FromSlash(info.Key))
	size := int64(len(data))
	if st, err := os.Stat(target); err == nil {
		size = st.Size()
	} else if err := writeObject(target, data); err != nil {
		return false, err
	}

	return l.gen.AddFile(metadata.DataFile{
		Path:        target,
		FileSize:    size,
		RecordCount: int64(info.Records),
		Partition:   map[string]any{"date": info.Date},
		Timestamp:   info.CreatedAt,
	})
}

func writeObject(target string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(target), ".part-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return nil
}

func (l *LocalStore) Close() error { return nil }

// S3Store uploads objects with a single PutObject, which S3 applies
// atomically.
type S3Store struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Store keys every object under prefix.
func NewS3Store(ctx context.Context, cfg appconfig.S3Config, prefix string) (*S3Store, error) {
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("s3 bucket not configured")
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.PathStyle
	})
	return &S3Store{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}, nil
}

func (s *S3Store) Location() string { return "s3://" + s.bucket + "/" + s.prefix }

// Put skips the upload when HeadObject finds the key already present.
func (s *S3Store) Put(ctx context.Context, info ObjectInfo, data []byte) (bool, error) {
	key := path.Join(s.prefix, info.Key)
	if _, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}); err == nil {
		return false, nil
	}
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/vnd.apache.parquet"),
	})
	if err != nil {
		return false, fmt.Errorf("put s3://%s/%s: %w", s.bucket, key, err)
	}
	return true, nil
}

func (s *S3Store) Close() error { return nil }
