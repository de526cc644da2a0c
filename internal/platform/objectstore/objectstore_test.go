package objectstore

import "testing"

func TestConfigValidate(t *testing.T) {
	valid := Config{
		Endpoint:      "localhost:9000",
		AccessKey:     "a",
		SecretKey:     "b",
		Region:        "us-east-1",
		BucketReports: "stamp-reports",
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("Validate() err=%v", err)
	}

	invalid := valid
	invalid.Endpoint = "http://localhost:9000"
	if err := invalid.Validate(); err == nil {
		t.Fatalf("Validate() expected error for scheme in endpoint")
	}

	invalid = valid
	invalid.BucketReports = " "
	if err := invalid.Validate(); err == nil {
		t.Fatalf("Validate() expected error for blank bucket")
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("STAMPS_MINIO_ENDPOINT", "minio:9000")
	t.Setenv("STAMPS_MINIO_BUCKET_REPORTS", "reports")
	t.Setenv("STAMPS_MINIO_USE_SSL", "true")
	cfg, err := ConfigFromEnv()
	if err != nil {
		t.Fatalf("ConfigFromEnv() err=%v", err)
	}
	if cfg.Endpoint != "minio:9000" || cfg.BucketReports != "reports" || !cfg.UseSSL {
		t.Fatalf("unexpected config: %+v", cfg)
	}

	t.Setenv("STAMPS_MINIO_ENDPOINT", "")
	if _, err := ConfigFromEnv(); err == nil {
		t.Fatalf("expected blank endpoint error")
	}
	t.Setenv("STAMPS_MINIO_ENDPOINT", "minio:9000")

	t.Setenv("STAMPS_MINIO_USE_SSL", "maybe")
	if _, err := ConfigFromEnv(); err == nil {
		t.Fatalf("expected invalid bool error")
	}
}
