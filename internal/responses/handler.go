// Package responses serves public registration submissions, self-service edits by
// edit token, and the admin response ledger.
package responses

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/eventforms/backend/internal/export"
	"github.com/eventforms/backend/internal/lifecycle"
	"github.com/eventforms/backend/internal/middleware"
	"github.com/eventforms/backend/internal/models"
	"github.com/eventforms/backend/internal/store"
	"github.com/eventforms/backend/pkg/apperr"
	"github.com/eventforms/backend/pkg/response"
)

// EditTokenHeader carries the edit token on self-service requests.
const EditTokenHeader = "X-Edit-Token"

// ParticipantInput is the contact block of a submission. Apartment is optional.
type ParticipantInput struct {
	FirstName  string `json:"firstName" binding:"required,max=100"`
	LastName   string `json:"lastName" binding:"required,max=100"`
	Email      string `json:"email" binding:"required,email,max=255"`
	Phone      string `json:"phone" binding:"required,max=50"`
	HomeNumber string `json:"homeNumber" binding:"required,max=50"`
	Street     string `json:"street" binding:"required,max=255"`
	Apartment  string `json:"apartment" binding:"max=50"`
	City       string `json:"city" binding:"required,max=100"`
	State      string `json:"state" binding:"required,max=100"`
	Zipcode    string `json:"zipcode" binding:"required,max=20"`
}

// AnswerInput is one answer of a submission.
type AnswerInput struct {
	QuestionID int64  `json:"questionId" binding:"required,min=1"`
	AnswerText string `json:"answerText" binding:"max=5000"`
}

// SubmitRequest is the body for POST /events/:id/responses.
type SubmitRequest struct {
	Participant ParticipantInput `json:"participant"`
	Answers     []AnswerInput    `json:"answers" binding:"dive"`
}

// UpdateRequest is the body for PUT /events/:id/responses/:responseId. The answers
// replace the stored ones; participant is optional.
type UpdateRequest struct {
	Participant *ParticipantInput `json:"participant"`
	Answers     []AnswerInput     `json:"answers" binding:"required,dive"`
	EditToken   string            `json:"editToken"`
}

// model trims the input and reports fields that are blank once trimmed.
func (p ParticipantInput) model() (models.Participant, map[string]string) {
	m := models.Participant{
		FirstName: p.FirstName, LastName: p.LastName, Email: p.Email, Phone: p.Phone,
		HomeNumber: p.HomeNumber, Street: p.Street, Apartment: p.Apartment,
		City: p.City, State: p.State, Zipcode: p.Zipcode,
	}
	m.Normalize()
	fields := map[string]string{}
	for name, v := range map[string]string{
		"firstName": m.FirstName, "lastName": m.LastName, "email": m.Email, "phone": m.Phone,
		"homeNumber": m.HomeNumber, "street": m.Street, "city": m.City, "state": m.State, "zipcode": m.Zipcode,
	} {
		if v == "" {
			fields["participant."+name] = "is required"
		}
	}
	return m, fields
}

func answers(in []AnswerInput) []models.Answer {
	out := make([]models.Answer, len(in))
	for i, a := range in {
		out[i] = models.Answer{QuestionID: a.QuestionID, AnswerText: a.AnswerText}
	}
	return out
}

// Handler handles response HTTP endpoints.
type Handler struct {
	gateway *lifecycle.Gateway
	store   store.Store
	logger  *zap.Logger
}

// NewHandler creates a responses handler.
func NewHandler(gw *lifecycle.Gateway, st store.Store, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{gateway: gw, store: st, logger: logger}
}

// Submit handles POST /events/:id/responses (public).
func (h *Handler) Submit(c *gin.Context) {
	eventID, ok := response.ParamID(c, "id")
	if !ok {
		return
	}
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}
	participant, fields := req.Participant.model()
	if len(fields) > 0 {
		response.Invalid(c, "missing required participant fields", fields)
		return
	}
	receipt, err := h.gateway.Submit(c.Request.Context(), eventID, lifecycle.Submission{
		Participant: participant,
		Answers:     answers(req.Answers),
	})
	if err != nil {
		response.Fail(c, h.logger, err)
		return
	}
	response.Created(c, receipt)
}

// actor resolves the caller: admin from the auth middleware, otherwise the edit token
// from the header, the editToken query parameter, or the body (in that order).
func actor(c *gin.Context, bodyToken string) lifecycle.Actor {
	token := c.GetHeader(EditTokenHeader)
	if token == "" {
		token = c.Query("editToken")
	}
	if token == "" {
		token = bodyToken
	}
	return lifecycle.Actor{Admin: middleware.IsAdmin(c), EditToken: strings.TrimSpace(token)}
}

func ids(c *gin.Context) (eventID, responseID int64, ok bool) {
	if eventID, ok = response.ParamID(c, "id"); !ok {
		return 0, 0, false
	}
	if responseID, ok = response.ParamID(c, "responseId"); !ok {
		return 0, 0, false
	}
	return eventID, responseID, true
}

// Get handles GET /events/:id/responses/:responseId (admin or edit token).
func (h *Handler) Get(c *gin.Context) {
	eventID, responseID, ok := ids(c)
	if !ok {
		return
	}
	detail, err := h.gateway.GetResponse(c.Request.Context(), eventID, responseID, actor(c, ""))
	if err != nil {
		response.Fail(c, h.logger, err)
		return
	}
	response.OK(c, detail)
}

// Update handles PUT /events/:id/responses/:responseId (admin or edit token).
func (h *Handler) Update(c *gin.Context) {
	eventID, responseID, ok := ids(c)
	if !ok {
		return
	}
	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}
	var participant *models.Participant
	if req.Participant != nil {
		p, fields := req.Participant.model()
		if len(fields) > 0 {
			response.Invalid(c, "missing required participant fields", fields)
			return
		}
		participant = &p
	}
	detail, err := h.gateway.UpdateResponse(c.Request.Context(), eventID, responseID, actor(c, req.EditToken), participant, answers(req.Answers))
	if err != nil {
		response.Fail(c, h.logger, err)
		return
	}
	response.OK(c, detail)
}

// Delete handles DELETE /events/:id/responses/:responseId (admin or edit token).
func (h *Handler) Delete(c *gin.Context) {
	eventID, responseID, ok := ids(c)
	if !ok {
		return
	}
	if err := h.gateway.DeleteResponse(c.Request.Context(), eventID, responseID, actor(c, "")); err != nil {
		response.Fail(c, h.logger, err)
		return
	}
	response.OK(c, gin.H{"submissionId": responseID})
}

// List handles GET /events/:id/responses (admin): every response with participant and answers.
func (h *Handler) List(c *gin.Context) {
	eventID, ok := response.ParamID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if _, err := h.store.GetEvent(ctx, eventID); err != nil {
		response.Fail(c, h.logger, eventErr(err))
		return
	}
	list, err := h.store.ListResponses(ctx, eventID)
	if err != nil {
		response.Fail(c, h.logger, err)
		return
	}
	response.OK(c, list)
}

// Export handles GET /events/:id/responses/export (admin).
func (h *Handler) Export(c *gin.Context) {
	eventID, ok := response.ParamID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if _, err := h.store.GetEvent(ctx, eventID); err != nil {
		response.Fail(c, h.logger, eventErr(err))
		return
	}
	questions, err := h.store.ListQuestions(ctx, eventID)
	if err != nil {
		response.Fail(c, h.logger, err)
		return
	}
	list, err := h.store.ListResponses(ctx, eventID)
	if err != nil {
		response.Fail(c, h.logger, err)
		return
	}
	var buf bytes.Buffer
	if err := export.Responses(&buf, questions, list); err != nil {
		response.Fail(c, h.logger, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="event-%d-responses.csv"`, eventID))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

func eventErr(err error) error {
	if apperr.Is(err, apperr.KindNotFound) {
		return apperr.NotFound("event")
	}
	return err
}
