// Package events serves the event catalogue: listing with derived admission fields,
// admin CRUD, manual ordering and CSV export.
package events

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/eventforms/backend/internal/admission"
	"github.com/eventforms/backend/internal/export"
	"github.com/eventforms/backend/internal/middleware"
	"github.com/eventforms/backend/internal/models"
	"github.com/eventforms/backend/internal/store"
	"github.com/eventforms/backend/pkg/apperr"
	"github.com/eventforms/backend/pkg/response"
	"github.com/eventforms/backend/pkg/storage"
)

const blobDeleteTimeout = 10 * time.Second

// Handler handles event HTTP endpoints.
type Handler struct {
	store  store.Store
	eval   *admission.Evaluator
	blobs  storage.Blobs
	logger *zap.Logger
}

// NewHandler creates an events handler. blobs may be nil, in which case flyers are not
// removed when their event is deleted.
func NewHandler(st store.Store, eval *admission.Evaluator, blobs storage.Blobs, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: st, eval: eval, blobs: blobs, logger: logger}
}

// List handles GET /events?when=&sort=.
func (h *Handler) List(c *gin.Context) {
	admin := middleware.IsAdmin(c)
	when, err := ParseWhen(c.Query("when"), admin)
	if err != nil {
		response.Invalid(c, "invalid request", map[string]string{"when": err.Error()})
		return
	}
	key, err := ParseSort(c.Query("sort"))
	if err != nil {
		response.Invalid(c, "invalid request", map[string]string{"sort": err.Error()})
		return
	}
	list, err := h.store.ListEvents(c.Request.Context(), when.Statuses(admin))
	if err != nil {
		response.Fail(c, h.logger, err)
		return
	}
	response.OK(c, Build(list, when, key, h.eval.Now()))
}

// Get handles GET /events/:id. Non-admins only see open and closed events.
func (h *Handler) Get(c *gin.Context) {
	id, ok := response.ParamID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	ev, err := h.store.GetEvent(ctx, id)
	if err == nil && !middleware.IsAdmin(c) && !ev.Status.PubliclyVisible() {
		err = store.ErrNotFound
	}
	if err != nil {
		response.Fail(c, h.logger, eventErr(err))
		return
	}
	count, err := h.store.CountResponses(ctx, id)
	if err != nil {
		response.Fail(c, h.logger, err)
		return
	}
	response.OK(c, NewItem(models.EventSummary{Event: *ev, ResponsesCount: count}, h.eval.Now()))
}

// Create handles POST /events.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}
	ev, err := req.Event()
	if err != nil {
		response.Fail(c, h.logger, err)
		return
	}
	if err := h.store.CreateEvent(c.Request.Context(), ev); err != nil {
		response.Fail(c, h.logger, err)
		return
	}
	h.logger.Info("event created", zap.Int64("event_id", ev.ID), zap.String("status", string(ev.Status)))
	response.Created(c, ev)
}

// Update handles PUT /events/:id.
func (h *Handler) Update(c *gin.Context) {
	id, ok := response.ParamID(c, "id")
	if !ok {
		return
	}
	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}
	patch, err := req.Patch()
	if err != nil {
		response.Fail(c, h.logger, err)
		return
	}
	ev, err := h.store.UpdateEvent(c.Request.Context(), id, patch)
	if err != nil {
		response.Fail(c, h.logger, eventErr(err))
		return
	}
	h.logger.Info("event updated", zap.Int64("event_id", id))
	response.OK(c, ev)
}

// Delete handles DELETE /events/:id. The flyer is removed after the rows are gone;
// failing to remove it is only logged.
func (h *Handler) Delete(c *gin.Context) {
	id, ok := response.ParamID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	ev, err := h.store.GetEvent(ctx, id)
	if err != nil {
		response.Fail(c, h.logger, eventErr(err))
		return
	}
	if err := h.store.DeleteEvent(ctx, id); err != nil {
		response.Fail(c, h.logger, eventErr(err))
		return
	}
	h.logger.Info("event deleted", zap.Int64("event_id", id))
	if h.blobs != nil && ev.FlyerPath != "" {
		h.removeFlyer(ev.FlyerPath, id)
	}
	response.OK(c, gin.H{"eventId": id})
}

func (h *Handler) removeFlyer(path string, eventID int64) {
	ctx, cancel := context.WithTimeout(context.Background(), blobDeleteTimeout)
	defer cancel()
	if err := h.blobs.Delete(ctx, path); err != nil {
		h.logger.Warn("flyer cleanup failed", zap.Error(err), zap.Int64("event_id", eventID), zap.String("flyer_path", path))
	}
}

// Reorder handles PUT /events/reorder.
func (h *Handler) Reorder(c *gin.Context) {
	var req ReorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}
	err := h.store.ReorderEvents(c.Request.Context(), req.Order)
	var invalid *store.InvalidOrderError
	if errors.As(err, &invalid) {
		fields := map[string]string{}
		if len(invalid.Duplicates) > 0 {
			fields["order"] = "duplicate ids: " + joinIDs(invalid.Duplicates)
		} else if len(invalid.Unknown) > 0 {
			fields["order"] = "unknown ids: " + joinIDs(invalid.Unknown)
		} else {
			fields["order"] = "must be a non-empty array of event ids"
		}
		response.Invalid(c, invalid.Error(), fields)
		return
	}
	if err != nil {
		response.Fail(c, h.logger, err)
		return
	}
	h.logger.Info("events reordered", zap.Int("count", len(req.Order)))
	response.OK(c, gin.H{"order": req.Order})
}

// Export handles GET /events/export: every event, newest first.
func (h *Handler) Export(c *gin.Context) {
	list, err := h.store.ListEvents(c.Request.Context(), models.AllStatuses)
	if err != nil {
		response.Fail(c, h.logger, err)
		return
	}
	events := make([]models.Event, len(list))
	for i, s := range list {
		events[i] = s.Event
	}
	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].CreatedAt.Equal(events[j].CreatedAt) {
			return events[i].CreatedAt.After(events[j].CreatedAt)
		}
		return events[i].ID > events[j].ID
	})
	var buf bytes.Buffer
	if err := export.Events(&buf, events); err != nil {
		response.Fail(c, h.logger, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="events.csv"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

func eventErr(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return apperr.NotFound("event")
	}
	return err
}

func joinIDs(ids []int64) string {
	b := make([]byte, 0, len(ids)*4)
	for i, id := range ids {
		if i > 0 {
			b = append(b, ", "...)
		}
		b = strconv.AppendInt(b, id, 10)
	}
	return string(b)
}
