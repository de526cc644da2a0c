// Package reports publishes stamp statistics snapshots to object storage.
package reports

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/animus-labs/stamps/internal/platform/auditlog"
	"github.com/animus-labs/stamps/internal/platform/objectstore"
	"github.com/animus-labs/stamps/internal/service/validation"
)

const putTimeout = 15 * time.Second

var (
	// ErrReportNotFound is returned for unknown or malformed report names.
	ErrReportNotFound = errors.New("report not found")
	// ErrDigestMismatch is returned when a fetched report does not match the expected sha256.
	ErrDigestMismatch = errors.New("report digest mismatch")
)

// AuditFunc records a publish. A failing audit removes the report again.
type AuditFunc func(ctx context.Context, event auditlog.Event) error

type Publisher struct {
	store  objectstore.Store
	bucket string
	audit  AuditFunc
	now    func() time.Time
	newID  func() string
}

func NewPublisher(store objectstore.Store, bucket string, audit AuditFunc) *Publisher {
	if store == nil || strings.TrimSpace(bucket) == "" {
		return nil
	}
	return &Publisher{
		store:  store,
		bucket: bucket,
		audit:  audit,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
	}
}

type Report struct {
	Name        string    `json:"name"`
	Bucket      string    `json:"bucket"`
	Key         string    `json:"key"`
	SHA256      string    `json:"sha256"`
	SizeBytes   int64     `json:"size_bytes"`
	GeneratedAt time.Time `json:"generated_at"`
}

type document struct {
	StampID     string                `json:"stamp_id"`
	GeneratedAt time.Time             `json:"generated_at"`
	GeneratedBy string                `json:"generated_by"`
	Stats       validation.StampStats `json:"stats"`
}

func (p *Publisher) Publish(ctx context.Context, stats validation.StampStats, actor string) (Report, error) {
	now := p.now()
	body, err := json.Marshal(document{
		StampID:     stats.StampID,
		GeneratedAt: now,
		GeneratedBy: actor,
		Stats:       stats,
	})
	if err != nil {
		return Report{}, fmt.Errorf("marshal report: %w", err)
	}
	sum := sha256.Sum256(body)
	name := fmt.Sprintf("%s-%s.json", now.Format("20060102T150405Z"), p.newID())
	report := Report{
		Name:        name,
		Bucket:      p.bucket,
		Key:         reportKey(stats.StampID, name),
		SHA256:      hex.EncodeToString(sum[:]),
		SizeBytes:   int64(len(body)),
		GeneratedAt: now,
	}

	putCtx, cancel := context.WithTimeout(ctx, putTimeout)
	err = p.store.Put(putCtx, p.bucket, report.Key, bytes.NewReader(body), report.SizeBytes, "application/json")
	cancel()
	if err != nil {
		return Report{}, fmt.Errorf("put report: %w", err)
	}

	if p.audit != nil {
		err := p.audit(ctx, auditlog.OriginFromContext(ctx).Apply(auditlog.Event{
			OccurredAt:   now,
			Actor:        actor,
			Action:       auditlog.ActionStatsReportPublish,
			ResourceType: auditlog.ResourceStamp,
			ResourceID:   stats.StampID,
			Payload: map[string]any{
				"bucket": report.Bucket,
				"key":    report.Key,
				"sha256": report.SHA256,
			},
		}))
		if err != nil {
			_ = p.store.Delete(context.WithoutCancel(ctx), p.bucket, report.Key)
			return Report{}, fmt.Errorf("audit report: %w", err)
		}
	}
	return report, nil
}

// Fetch reads a published report of a stamp back. When wantSHA256 is set the
// body must match it.
func (p *Publisher) Fetch(ctx context.Context, stampID, name, wantSHA256 string) ([]byte, error) {
	if !validReportName(name) || strings.TrimSpace(stampID) == "" || strings.Contains(stampID, "/") {
		return nil, fmt.Errorf("%q: %w", name, ErrReportNotFound)
	}
	key := reportKey(stampID, name)
	rc, _, err := p.store.Get(ctx, p.bucket, key)
	if err != nil {
		if errors.Is(err, objectstore.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", key, ErrReportNotFound)
		}
		return nil, fmt.Errorf("get report: %w", err)
	}
	defer rc.Close()
	body, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read report: %w", err)
	}
	sum := sha256.Sum256(body)
	if wantSHA256 != "" && hex.EncodeToString(sum[:]) != strings.ToLower(strings.TrimSpace(wantSHA256)) {
		return nil, fmt.Errorf("%s: %w", key, ErrDigestMismatch)
	}
	return body, nil
}

func reportKey(stampID, name string) string {
	return fmt.Sprintf("validation-stamps/%s/stats/%s", stampID, name)
}

func validReportName(name string) bool {
	return strings.HasSuffix(name, ".json") && len(name) > len(".json") &&
		!strings.ContainsAny(name, "/\\") && !strings.Contains(name, "..")
}
