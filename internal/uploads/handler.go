// Package uploads accepts event flyer uploads and hands them to blob storage.
package uploads

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/eventforms/backend/internal/models"
	"github.com/eventforms/backend/internal/store"
	"github.com/eventforms/backend/pkg/apperr"
	"github.com/eventforms/backend/pkg/response"
	"github.com/eventforms/backend/pkg/storage"
)

// FormField is the multipart field carrying the flyer.
const FormField = "flyer"

const (
	// multipart framing allowance on top of the file limit
	formOverhead   = 1 << 20
	storageTimeout = 10 * time.Second
)

// Handler handles flyer uploads.
type Handler struct {
	blobs   storage.Blobs
	store   store.Store
	maxSize int64
	logger  *zap.Logger
}

// NewHandler creates an uploads handler. maxSize <= 0 uses storage.DefaultMaxFlyerSize.
func NewHandler(blobs storage.Blobs, st store.Store, maxSize int64, logger *zap.Logger) *Handler {
	if maxSize <= 0 {
		maxSize = storage.DefaultMaxFlyerSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{blobs: blobs, store: st, maxSize: maxSize, logger: logger}
}

// Upload handles POST /uploads: stores the flyer and returns its path for a later
// event create or update.
func (h *Handler) Upload(c *gin.Context) {
	path, ok := h.put(c, 0)
	if !ok {
		return
	}
	response.Created(c, gin.H{"flyerPath": path})
}

// UploadForEvent handles POST /events/:id/flyer: stores the flyer and sets it on the
// event. The previous flyer, if any, is removed.
func (h *Handler) UploadForEvent(c *gin.Context) {
	eventID, ok := response.ParamID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	ev, err := h.store.GetEvent(ctx, eventID)
	if err != nil {
		response.Fail(c, h.logger, notFound(err))
		return
	}
	path, ok := h.put(c, eventID)
	if !ok {
		return
	}
	if _, err := h.store.UpdateEvent(ctx, eventID, models.EventPatch{FlyerPath: models.Some(path)}); err != nil {
		h.discard(path)
		response.Fail(c, h.logger, notFound(err))
		return
	}
	if ev.FlyerPath != "" && ev.FlyerPath != path {
		h.discard(ev.FlyerPath)
	}
	h.logger.Info("flyer uploaded", zap.Int64("event_id", eventID), zap.String("flyer_path", path))
	response.OK(c, gin.H{"eventId": eventID, "flyerPath": path})
}

// put validates the multipart file and writes it to blob storage. On failure the
// response has been written.
func (h *Handler) put(c *gin.Context, eventID int64) (string, bool) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxSize+formOverhead)
	file, err := c.FormFile(FormField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Invalid(c, "file too large", map[string]string{FormField: "exceeds the upload limit"})
			return "", false
		}
		response.Invalid(c, "no file uploaded", map[string]string{FormField: "is required"})
		return "", false
	}
	if file.Size > h.maxSize {
		response.Invalid(c, "file too large", map[string]string{FormField: "exceeds the upload limit"})
		return "", false
	}
	headerType := strings.ToLower(strings.TrimSpace(file.Header.Get("Content-Type")))
	if !storage.ValidateFlyerType(headerType, file.Filename) {
		response.Invalid(c, storage.ErrUnsupportedType.Error(), map[string]string{FormField: "unsupported file type"})
		return "", false
	}
	contentType := storage.ContentTypeForFilename(file.Filename)
	if _, ok := storage.AllowedFlyerTypes[headerType]; ok {
		contentType = headerType
	}

	rc, err := file.Open()
	if err != nil {
		h.logger.Error("open uploaded file failed", zap.Error(err))
		response.Internal(c, "failed to read file")
		return "", false
	}
	defer rc.Close()

	key := storage.FlyerKey(eventID, file.Filename, contentType)
	path, err := h.blobs.Put(c.Request.Context(), key, contentType, rc, file.Size)
	if err != nil {
		h.logger.Error("store flyer failed", zap.Error(err), zap.String("key", key))
		response.Internal(c, "failed to store file")
		return "", false
	}
	return path, true
}

func (h *Handler) discard(path string) {
	ctx, cancel := context.WithTimeout(context.Background(), storageTimeout)
	defer cancel()
	if err := h.blobs.Delete(ctx, path); err != nil {
		h.logger.Warn("remove flyer failed", zap.Error(err), zap.String("flyer_path", path))
	}
}

func notFound(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return apperr.NotFound("event")
	}
	return err
}
