package domain

import "context"

// ReportObject is one exported report file bound for object storage.
type ReportObject struct {
	Key         string
	ContentType string
	Body        []byte
	// Metadata is stored as user-defined object metadata.
	Metadata map[string]string
}

// ObjectStore persists report objects. Implementations choose between a
// single request and a multipart upload.
type ObjectStore interface {
	PutObject(ctx context.Context, obj ReportObject) error
}
