package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/minio/minio-go/v7/pkg/encrypt"
)

// Префикс ключей архива заказов.
const orderKeyPrefix = "orders/"

// Config — конфигурация S3-совместимого архива.
// Значения берутся из переменных окружения.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// ConfigFromEnv читает конфигурацию из окружения.
func ConfigFromEnv() Config {
	cfg := Config{
		Endpoint:  os.Getenv("ARCHIVE_ENDPOINT"),
		AccessKey: os.Getenv("ARCHIVE_ACCESS_KEY"),
		SecretKey: os.Getenv("ARCHIVE_SECRET_KEY"),
		Bucket:    os.Getenv("ARCHIVE_BUCKET"),
		UseSSL:    os.Getenv("ARCHIVE_USE_SSL") == "true",
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:9000"
	}
	if cfg.AccessKey == "" {
		cfg.AccessKey = "gridflow"
	}
	if cfg.SecretKey == "" {
		cfg.SecretKey = "gridflow"
	}
	if cfg.Bucket == "" {
		cfg.Bucket = "gridflow-archive"
	}
	return cfg
}

// Store — архив обработанных заказов поверх S3-совместимого хранилища.
type Store struct {
	client *minio.Client
	bucket string
}

// NewStore создаёт клиент архива и проверяет доступность bucket.
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("new minio client: %w", err)
	}

	s := &Store{client: client, bucket: cfg.Bucket}
	if err := s.ensureBucket(ctx); err != nil {
		return nil, fmt.Errorf("ensure bucket %s: %w", cfg.Bucket, err)
	}
	return s, nil
}

// ensureBucket создаёт bucket, если его ещё нет.
func (s *Store) ensureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{})
}

// PutJSON сериализует значение и кладёт его в архив под указанным ключом.
func (s *Store) PutJSON(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal archive object: %w", err)
	}

	_, err = s.client.PutObject(ctx, s.bucket, key,
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{
			ContentType:          "application/json",
			ServerSideEncryption: encrypt.NewSSE(),
		},
	)
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

// OrderKey возвращает ключ архива для заказа, обработанного в момент t.
func OrderKey(t time.Time) string {
	return fmt.Sprintf("%sorder_%s.json", orderKeyPrefix, t.UTC().Format(time.RFC3339Nano))
}
