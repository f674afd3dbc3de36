// Package storage stores event flyers on local disk or S3.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
)

const (
	// DefaultMaxFlyerSize is the default upload limit for flyers (10MB).
	DefaultMaxFlyerSize = 10 * 1024 * 1024
	// FolderFlyers is the key prefix for flyer objects.
	FolderFlyers = "flyers"
)

// ErrUnsupportedType is returned for files that are not images or PDFs.
var ErrUnsupportedType = errors.New("unsupported file type; allowed: jpg, png, webp, gif, pdf")

// Allowed flyer MIME types and extensions.
var (
	AllowedFlyerTypes = map[string]string{
		"image/jpeg":      ".jpg",
		"image/jpg":       ".jpg",
		"image/png":       ".png",
		"image/webp":      ".webp",
		"image/gif":       ".gif",
		"application/pdf": ".pdf",
	}
	AllowedFlyerExtensions = map[string]string{
		".jpg":  "image/jpeg",
		".jpeg": "image/jpeg",
		".png":  "image/png",
		".webp": "image/webp",
		".gif":  "image/gif",
		".pdf":  "application/pdf",
	}
)

// Blobs stores flyer files. Put returns the path clients use to fetch the object,
// which is also what Delete accepts.
type Blobs interface {
	Put(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error)
	Delete(ctx context.Context, path string) error
}

// ValidateFlyerType returns true if the content type or extension is an allowed flyer type.
func ValidateFlyerType(contentType, filename string) bool {
	ct := strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	if _, ok := AllowedFlyerTypes[ct]; ok {
		return true
	}
	_, ok := AllowedFlyerExtensions[strings.ToLower(path.Ext(filename))]
	return ok
}

// ContentTypeForFilename returns the MIME type for a flyer filename extension.
func ContentTypeForFilename(filename string) string {
	if ct, ok := AllowedFlyerExtensions[strings.ToLower(path.Ext(filename))]; ok {
		return ct
	}
	return "application/octet-stream"
}

// FlyerKey returns the object key for a flyer: flyers/event-{id}-{uuid}{ext}, or
// flyers/{uuid}{ext} when the upload is not yet bound to an event.
func FlyerKey(eventID int64, filename, contentType string) string {
	ext := strings.ToLower(path.Ext(filename))
	if _, ok := AllowedFlyerExtensions[ext]; !ok {
		ext = AllowedFlyerTypes[strings.ToLower(contentType)]
	}
	name := uuid.New().String() + ext
	if eventID > 0 {
		name = fmt.Sprintf("event-%d-%s", eventID, name)
	}
	return path.Join(FolderFlyers, name)
}
