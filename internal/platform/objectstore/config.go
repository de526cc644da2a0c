package objectstore

import (
	"errors"
	"fmt"
	"strings"

	"github.com/animus-labs/stamps/internal/platform/env"
)

type Config struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	Region        string
	UseSSL        bool
	BucketReports string
}

func ConfigFromEnv() (Config, error) {
	useSSL, err := env.Bool("STAMPS_MINIO_USE_SSL", false)
	if err != nil {
		return Config{}, err
	}
	cfg := Config{
		Endpoint:      env.String("STAMPS_MINIO_ENDPOINT", "localhost:9000"),
		AccessKey:     env.String("STAMPS_MINIO_ACCESS_KEY", "stamps"),
		SecretKey:     env.String("STAMPS_MINIO_SECRET_KEY", "stampsminio"),
		Region:        env.String("STAMPS_MINIO_REGION", "us-east-1"),
		UseSSL:        useSSL,
		BucketReports: env.String("STAMPS_MINIO_BUCKET_REPORTS", "stamp-reports"),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Endpoint) == "" {
		return errors.New("endpoint is required")
	}
	if strings.Contains(c.Endpoint, "://") {
		return fmt.Errorf("endpoint must not include scheme: %q", c.Endpoint)
	}
	if strings.TrimSpace(c.AccessKey) == "" {
		return errors.New("access key is required")
	}
	if strings.TrimSpace(c.SecretKey) == "" {
		return errors.New("secret key is required")
	}
	if strings.TrimSpace(c.Region) == "" {
		return errors.New("region is required")
	}
	if strings.TrimSpace(c.BucketReports) == "" {
		return errors.New("reports bucket is required")
	}
	return nil
}
