// Package blob defines the byte-storage contract used for raw messages and
// attachment payloads. Keys are opaque paths chosen by the caller.
package blob

import (
	"context"
	"errors"
	"io"
	"strings"
)

// ErrNotFound is returned by Get when no object exists under the key.
var ErrNotFound = errors.New("blob: not found")

// PutOptions carries the content metadata stored alongside an object.
type PutOptions struct {
	ContentType        string
	ContentDisposition string
	Metadata           map[string]string
}

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	ContentType        string
	ContentDisposition string
	Size               int64
}

// Store is a path-addressed byte store.
type Store interface {
	Put(ctx context.Context, key string, body io.Reader, opts PutOptions) error
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)
}

// AttachmentDisposition builds a content-disposition header value for a
// download. Embedded double quotes in the filename are replaced with single
// quotes so the quoted value stays intact.
func AttachmentDisposition(filename string) string {
	if filename == "" {
		return "attachment"
	}
	return `attachment; filename="` + strings.ReplaceAll(filename, `"`, "'") + `"`
}
