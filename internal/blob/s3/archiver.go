package s3blob

import (
	"context"
	"fmt"
	"path"
	"time"

	"github.com/TwiZzy841/solana-ai-trading-bot/internal/domain"
)

// ReportArchiver files exported reports under
// {prefix}/{yyyy}/{mm}/{dd}/{name}, tagged with the trading mode they cover.
type ReportArchiver struct {
	store  domain.ObjectStore
	prefix string
	now    func() time.Time
}

// NewReportArchiver returns an archiver writing to store. An empty prefix
// becomes "reports".
func NewReportArchiver(store domain.ObjectStore, prefix string) *ReportArchiver {
	if prefix == "" {
		prefix = "reports"
	}
	return &ReportArchiver{store: store, prefix: prefix, now: time.Now}
}

// Key returns where a report called name uploaded now would land.
func (a *ReportArchiver) Key(name string) string {
	return path.Join(a.prefix, a.now().UTC().Format("2006/01/02"), name)
}

// Upload stores data and returns its key. mode is recorded in the object
// metadata and may be empty.
func (a *ReportArchiver) Upload(ctx context.Context, name, contentType string, mode domain.TradeMode, data []byte) (string, error) {
	obj := domain.ReportObject{
		Key:         a.Key(name),
		ContentType: contentType,
		Body:        data,
		Metadata:    map[string]string{"generator": "solbot"},
	}
	if mode != "" {
		obj.Metadata["trade-mode"] = string(mode)
	}
	if err := a.store.PutObject(ctx, obj); err != nil {
		return "", fmt.Errorf("s3blob: archive %s: %w", name, err)
	}
	return obj.Key, nil
}
