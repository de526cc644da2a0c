package reports

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/animus-labs/stamps/internal/domain"
	"github.com/animus-labs/stamps/internal/platform/auditlog"
	"github.com/animus-labs/stamps/internal/platform/objectstore"
	"github.com/animus-labs/stamps/internal/service/validation"
	"github.com/animus-labs/stamps/internal/stats"
)

type fakeStore struct {
	objects map[string][]byte
	deleted []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: map[string][]byte{}}
}

func (f *fakeStore) Put(ctx context.Context, bucket, key string, body io.Reader, size int64, contentType string) error {
	b, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	if int64(len(b)) != size {
		return errors.New("size mismatch")
	}
	f.objects[bucket+"/"+key] = b
	return nil
}

func (f *fakeStore) Get(ctx context.Context, bucket, key string) (io.ReadCloser, objectstore.ObjectInfo, error) {
	b, ok := f.objects[bucket+"/"+key]
	if !ok {
		return nil, objectstore.ObjectInfo{}, objectstore.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(b)), objectstore.ObjectInfo{Key: key, Size: int64(len(b))}, nil
}

func (f *fakeStore) Stat(ctx context.Context, bucket, key string) (objectstore.ObjectInfo, error) {
	b, ok := f.objects[bucket+"/"+key]
	if !ok {
		return objectstore.ObjectInfo{}, objectstore.ErrNotFound
	}
	return objectstore.ObjectInfo{Key: key, Size: int64(len(b))}, nil
}

func (f *fakeStore) Delete(ctx context.Context, bucket, key string) error {
	delete(f.objects, bucket+"/"+key)
	f.deleted = append(f.deleted, key)
	return nil
}

func sampleStats() validation.StampStats {
	return validation.StampStats{
		StampID:    "vs-1",
		TypeID:     "boolean",
		Compliance: stats.Aggregate([]float64{100, 50}, func(v float64) (float64, bool) { return v, true }),
		Statuses:   map[domain.StatusID]int{domain.StatusPassed: 1, domain.StatusWarning: 1},
	}
}

func TestPublish(t *testing.T) {
	store := newFakeStore()
	var audited []auditlog.Event
	p := NewPublisher(store, "reports", func(ctx context.Context, event auditlog.Event) error {
		audited = append(audited, event)
		return nil
	})
	p.now = func() time.Time { return time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC) }
	p.newID = func() string { return "id1" }

	ctx := auditlog.WithOrigin(context.Background(), auditlog.Origin{RequestID: "req-1"})
	report, err := p.Publish(ctx, sampleStats(), "alice")
	if err != nil {
		t.Fatalf("Publish() err=%v", err)
	}
	if report.Name != "20240506T070809Z-id1.json" || report.Key != "validation-stamps/vs-1/stats/20240506T070809Z-id1.json" {
		t.Fatalf("unexpected key %q", report.Key)
	}
	body := store.objects["reports/"+report.Key]
	sum := sha256.Sum256(body)
	if hex.EncodeToString(sum[:]) != report.SHA256 || int64(len(body)) != report.SizeBytes {
		t.Fatalf("report digest or size mismatch")
	}
	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err != nil || doc["generated_by"] != "alice" {
		t.Fatalf("unexpected document %s err=%v", body, err)
	}
	if len(audited) != 1 || audited[0].Action != auditlog.ActionStatsReportPublish || audited[0].RequestID != "req-1" {
		t.Fatalf("unexpected audit events %+v", audited)
	}

	got, err := p.Fetch(ctx, "vs-1", report.Name, strings.ToUpper(report.SHA256))
	if err != nil || !bytes.Equal(got, body) {
		t.Fatalf("Fetch() err=%v", err)
	}
}

func TestFetchErrors(t *testing.T) {
	store := newFakeStore()
	p := NewPublisher(store, "reports", nil)
	report, err := p.Publish(context.Background(), sampleStats(), "alice")
	if err != nil {
		t.Fatalf("Publish() err=%v", err)
	}
	ctx := context.Background()
	if _, err := p.Fetch(ctx, "vs-1", report.Name, "deadbeef"); !errors.Is(err, ErrDigestMismatch) {
		t.Fatalf("expected ErrDigestMismatch, got %v", err)
	}
	if _, err := p.Fetch(ctx, "vs-2", report.Name, ""); !errors.Is(err, ErrReportNotFound) {
		t.Fatalf("expected ErrReportNotFound for other stamp, got %v", err)
	}
	for _, name := range []string{"", ".json", "../x.json", "a/b.json", "report.txt"} {
		if _, err := p.Fetch(ctx, "vs-1", name, ""); !errors.Is(err, ErrReportNotFound) {
			t.Fatalf("Fetch(%q) expected ErrReportNotFound, got %v", name, err)
		}
	}
}

func TestPublishRemovesReportWhenAuditFails(t *testing.T) {
	store := newFakeStore()
	p := NewPublisher(store, "reports", func(ctx context.Context, event auditlog.Event) error {
		return errors.New("db down")
	})
	if _, err := p.Publish(context.Background(), sampleStats(), "alice"); err == nil {
		t.Fatalf("expected audit error")
	}
	if len(store.objects) != 0 || len(store.deleted) != 1 {
		t.Fatalf("expected report to be removed, objects=%d deleted=%v", len(store.objects), store.deleted)
	}
}

func TestNewPublisherRequiresStore(t *testing.T) {
	if NewPublisher(nil, "reports", nil) != nil {
		t.Fatalf("expected nil publisher without store")
	}
	if NewPublisher(newFakeStore(), " ", nil) != nil {
		t.Fatalf("expected nil publisher without bucket")
	}
}
