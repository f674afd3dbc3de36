// Package questions serves the custom registration questions of an event and the
// options of choice-type questions.
package questions

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/eventforms/backend/internal/models"
	"github.com/eventforms/backend/internal/store"
	"github.com/eventforms/backend/pkg/apperr"
	"github.com/eventforms/backend/pkg/response"
)

const maxLabelLen = 255

// CreateRequest is the body for POST /events/:id/questions. Options may be supplied
// inline for choice-type questions.
type CreateRequest struct {
	QuestionText string   `json:"questionText" binding:"required,max=500"`
	QuestionType string   `json:"questionType" binding:"required"`
	IsRequired   bool     `json:"isRequired"`
	SortOrder    int      `json:"sortOrder" binding:"min=0"`
	Options      []string `json:"options"`
}

// UpdateRequest is the body for PUT /events/:id/questions/:questionId.
type UpdateRequest struct {
	QuestionText models.Optional[string] `json:"questionText"`
	QuestionType models.Optional[string] `json:"questionType"`
	IsRequired   models.Optional[bool]   `json:"isRequired"`
	SortOrder    models.Optional[int]    `json:"sortOrder"`
}

// OptionRequest is the body for creating an option.
type OptionRequest struct {
	Label     string `json:"label" binding:"required,max=255"`
	SortOrder int    `json:"sortOrder" binding:"min=0"`
}

// OptionUpdateRequest is the body for PUT .../options/:optionId.
type OptionUpdateRequest struct {
	Label     *string `json:"label" binding:"omitempty,max=255"`
	SortOrder *int    `json:"sortOrder" binding:"omitempty,min=0"`
}

// QuestionWithOptions is a question as returned to clients.
type QuestionWithOptions struct {
	models.Question
	Options []models.Option `json:"options"`
}

// Handler handles question and option HTTP endpoints.
type Handler struct {
	store  store.Store
	logger *zap.Logger
}

// NewHandler creates a questions handler.
func NewHandler(st store.Store, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: st, logger: logger}
}

// List handles GET /events/:id/questions. Options are included for choice types.
func (h *Handler) List(c *gin.Context) {
	eventID, ok := response.ParamID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if _, err := h.store.GetEvent(ctx, eventID); err != nil {
		response.Fail(c, h.logger, notFound(err, "event"))
		return
	}
	list, err := h.store.ListQuestions(ctx, eventID)
	if err != nil {
		response.Fail(c, h.logger, err)
		return
	}
	out := make([]QuestionWithOptions, 0, len(list))
	for _, q := range list {
		item := QuestionWithOptions{Question: q, Options: []models.Option{}}
		if q.QuestionType.SupportsOptions() {
			if item.Options, err = h.store.ListOptions(ctx, q.ID); err != nil {
				response.Fail(c, h.logger, err)
				return
			}
		}
		out = append(out, item)
	}
	response.OK(c, out)
}

// Create handles POST /events/:id/questions.
func (h *Handler) Create(c *gin.Context) {
	eventID, ok := response.ParamID(c, "id")
	if !ok {
		return
	}
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}
	qt, err := models.ParseQuestionType(req.QuestionType)
	if err != nil {
		response.Invalid(c, "invalid request", map[string]string{"questionType": err.Error()})
		return
	}
	if len(req.Options) > 0 && !qt.SupportsOptions() {
		response.Fail(c, h.logger, store.ErrOptionsNotSupported)
		return
	}
	fields := map[string]string{}
	text := strings.TrimSpace(req.QuestionText)
	if text == "" {
		fields["questionText"] = "cannot be empty"
	}
	options := make([]*models.Option, 0, len(req.Options))
	for i, label := range req.Options {
		label = strings.TrimSpace(label)
		switch {
		case label == "":
			fields[fmt.Sprintf("options[%d]", i)] = "cannot be empty"
		case len(label) > maxLabelLen:
			fields[fmt.Sprintf("options[%d]", i)] = fmt.Sprintf("must be at most %d characters", maxLabelLen)
		}
		options = append(options, &models.Option{Label: label, SortOrder: i + 1})
	}
	if len(fields) > 0 {
		response.Invalid(c, "invalid request", fields)
		return
	}

	q := &models.Question{
		EventID:      eventID,
		QuestionText: text,
		QuestionType: qt,
		IsRequired:   req.IsRequired,
		SortOrder:    req.SortOrder,
	}
	if err := h.store.CreateQuestion(c.Request.Context(), q, options...); err != nil {
		response.Fail(c, h.logger, notFound(err, "event"))
		return
	}
	out := QuestionWithOptions{Question: *q, Options: make([]models.Option, 0, len(options))}
	for _, opt := range options {
		out.Options = append(out.Options, *opt)
	}
	h.logger.Info("question created", zap.Int64("event_id", eventID), zap.Int64("question_id", q.ID))
	response.Created(c, out)
}

// Update handles PUT /events/:id/questions/:questionId. Changing a choice question to a
// free-text type is rejected while it still has options.
func (h *Handler) Update(c *gin.Context) {
	eventID, ok := response.ParamID(c, "id")
	if !ok {
		return
	}
	questionID, ok := response.ParamID(c, "questionId")
	if !ok {
		return
	}
	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	patch := models.QuestionPatch{IsRequired: req.IsRequired, SortOrder: req.SortOrder}
	fields := map[string]string{}
	if req.QuestionText.Set {
		text := strings.TrimSpace(req.QuestionText.Value)
		if text == "" {
			fields["questionText"] = "cannot be empty"
		}
		patch.QuestionText = models.Some(text)
	}
	if req.QuestionType.Set {
		qt, err := models.ParseQuestionType(req.QuestionType.Value)
		if err != nil {
			fields["questionType"] = err.Error()
		}
		patch.QuestionType = models.Some(qt)
	}
	if req.IsRequired.Null || req.SortOrder.Null {
		fields["request"] = "isRequired and sortOrder cannot be null"
	}
	if len(fields) > 0 {
		response.Invalid(c, "invalid request", fields)
		return
	}
	if patch.Empty() {
		response.BadRequest(c, "no valid fields provided for update")
		return
	}

	ctx := c.Request.Context()
	if patch.QuestionType.Set && !patch.QuestionType.Value.SupportsOptions() {
		opts, err := h.store.ListOptions(ctx, questionID)
		if err != nil {
			response.Fail(c, h.logger, err)
			return
		}
		if len(opts) > 0 {
			response.Invalid(c, "invalid request", map[string]string{"questionType": "remove the options before switching to a free-text type"})
			return
		}
	}
	q, err := h.store.UpdateQuestion(ctx, eventID, questionID, patch)
	if err != nil {
		response.Fail(c, h.logger, notFound(err, "question"))
		return
	}
	response.OK(c, q)
}

// Delete handles DELETE /events/:id/questions/:questionId.
func (h *Handler) Delete(c *gin.Context) {
	eventID, ok := response.ParamID(c, "id")
	if !ok {
		return
	}
	questionID, ok := response.ParamID(c, "questionId")
	if !ok {
		return
	}
	if err := h.store.DeleteQuestion(c.Request.Context(), eventID, questionID); err != nil {
		response.Fail(c, h.logger, notFound(err, "question"))
		return
	}
	h.logger.Info("question deleted", zap.Int64("event_id", eventID), zap.Int64("question_id", questionID))
	response.OK(c, gin.H{"questionId": questionID})
}

// question resolves the :questionId path parameter within the :id event.
func (h *Handler) question(c *gin.Context) (*models.Question, bool) {
	eventID, ok := response.ParamID(c, "id")
	if !ok {
		return nil, false
	}
	questionID, ok := response.ParamID(c, "questionId")
	if !ok {
		return nil, false
	}
	q, err := h.store.GetQuestion(c.Request.Context(), eventID, questionID)
	if err != nil {
		response.Fail(c, h.logger, notFound(err, "question"))
		return nil, false
	}
	return q, true
}

// ListOptions handles GET /events/:id/questions/:questionId/options.
func (h *Handler) ListOptions(c *gin.Context) {
	q, ok := h.question(c)
	if !ok {
		return
	}
	opts, err := h.store.ListOptions(c.Request.Context(), q.ID)
	if err != nil {
		response.Fail(c, h.logger, err)
		return
	}
	response.OK(c, opts)
}

// CreateOption handles POST /events/:id/questions/:questionId/options.
func (h *Handler) CreateOption(c *gin.Context) {
	q, ok := h.question(c)
	if !ok {
		return
	}
	var req OptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}
	label := strings.TrimSpace(req.Label)
	if label == "" {
		response.Invalid(c, "invalid request", map[string]string{"label": "cannot be empty"})
		return
	}
	opt := &models.Option{QuestionID: q.ID, Label: label, SortOrder: req.SortOrder}
	if err := h.store.CreateOption(c.Request.Context(), opt); err != nil {
		response.Fail(c, h.logger, notFound(err, "question"))
		return
	}
	response.Created(c, opt)
}

// UpdateOption handles PUT /events/:id/questions/:questionId/options/:optionId.
func (h *Handler) UpdateOption(c *gin.Context) {
	q, ok := h.question(c)
	if !ok {
		return
	}
	optionID, ok := response.ParamID(c, "optionId")
	if !ok {
		return
	}
	var req OptionUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}
	if req.Label == nil && req.SortOrder == nil {
		response.BadRequest(c, "no valid fields provided for update")
		return
	}
	if req.Label != nil {
		label := strings.TrimSpace(*req.Label)
		if label == "" {
			response.Invalid(c, "invalid request", map[string]string{"label": "cannot be empty"})
			return
		}
		req.Label = &label
	}
	opt, err := h.store.UpdateOption(c.Request.Context(), q.ID, optionID, req.Label, req.SortOrder)
	if err != nil {
		response.Fail(c, h.logger, notFound(err, "option"))
		return
	}
	response.OK(c, opt)
}

// DeleteOption handles DELETE /events/:id/questions/:questionId/options/:optionId.
func (h *Handler) DeleteOption(c *gin.Context) {
	q, ok := h.question(c)
	if !ok {
		return
	}
	optionID, ok := response.ParamID(c, "optionId")
	if !ok {
		return
	}
	if err := h.store.DeleteOption(c.Request.Context(), q.ID, optionID); err != nil {
		response.Fail(c, h.logger, notFound(err, "option"))
		return
	}
	response.OK(c, gin.H{"id": optionID})
}

func notFound(err error, entity string) error {
	if errors.Is(err, store.ErrNotFound) {
		return apperr.NotFound(entity)
	}
	return err
}
