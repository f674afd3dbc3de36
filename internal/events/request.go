package events

import (
	"strings"
	"time"

	"github.com/eventforms/backend/internal/models"
	"github.com/eventforms/backend/pkg/apperr"
)

// CreateRequest is the body for POST /events. Status may be given directly or through
// the legacy isPublished/open pair; status wins when both are present.
type CreateRequest struct {
	Name              string            `json:"name" binding:"required,max=255"`
	Date              models.Date       `json:"date"`
	Time              *models.TimeOfDay `json:"time"`
	EndTime           *models.TimeOfDay `json:"endTime"`
	Location          string            `json:"location" binding:"max=255"`
	Description       string            `json:"description"`
	FlyerPath         string            `json:"flyerPath"`
	Status            string            `json:"status"`
	IsPublished       string            `json:"isPublished"`
	Open              *bool             `json:"open"`
	AllowResponseEdit *bool             `json:"allowResponseEdit"`
	CapacityLimit     *int              `json:"capacityLimit" binding:"omitempty,min=0"`
	CloseOn           *time.Time        `json:"closeOn"`
	EmailConfirmation bool              `json:"emailConfirmation"`
}

// Event converts the request into a new event. Omitted status means private and
// omitted allowResponseEdit means editable.
func (r CreateRequest) Event() (*models.Event, error) {
	fields := map[string]string{}
	if r.Date.IsZero() {
		fields["date"] = "is required"
	}
	status, err := resolveStatus(r.Status, r.IsPublished, r.Open)
	if err != nil {
		fields["status"] = err.Error()
	}
	if len(fields) > 0 {
		return nil, apperr.Validation("invalid request", fields)
	}
	ev := &models.Event{
		Name:              strings.TrimSpace(r.Name),
		Date:              r.Date,
		Time:              r.Time,
		EndTime:           r.EndTime,
		Location:          strings.TrimSpace(r.Location),
		Description:       r.Description,
		FlyerPath:         r.FlyerPath,
		Status:            status,
		AllowResponseEdit: true,
		CapacityLimit:     r.CapacityLimit,
		CloseOn:           r.CloseOn,
		EmailConfirmation: r.EmailConfirmation,
	}
	if r.AllowResponseEdit != nil {
		ev.AllowResponseEdit = *r.AllowResponseEdit
	}
	return ev, nil
}

func resolveStatus(status, isPublished string, open *bool) (models.Status, error) {
	switch {
	case strings.TrimSpace(status) != "":
		return models.ParseStatus(status)
	case strings.TrimSpace(isPublished) != "":
		return models.StatusFromLegacy(isPublished, open)
	}
	return models.StatusPrivate, nil
}

// UpdateRequest is the body for PUT /events/:id. Only keys present in the document are
// written; nullable columns are cleared with an explicit null.
type UpdateRequest struct {
	Name              models.Optional[string]           `json:"name"`
	Date              models.Optional[models.Date]      `json:"date"`
	Time              models.Optional[models.TimeOfDay] `json:"time"`
	EndTime           models.Optional[models.TimeOfDay] `json:"endTime"`
	Location          models.Optional[string]           `json:"location"`
	Description       models.Optional[string]           `json:"description"`
	FlyerPath         models.Optional[string]           `json:"flyerPath"`
	Status            models.Optional[string]           `json:"status"`
	IsPublished       models.Optional[string]           `json:"isPublished"`
	Open              models.Optional[bool]             `json:"open"`
	AllowResponseEdit models.Optional[bool]             `json:"allowResponseEdit"`
	CapacityLimit     models.Optional[int]              `json:"capacityLimit"`
	CloseOn           models.Optional[time.Time]        `json:"closeOn"`
	EmailConfirmation models.Optional[bool]             `json:"emailConfirmation"`
	SortOrder         models.Optional[int]              `json:"sortOrder"`
}

// Patch validates the request and converts it into an event patch.
func (r UpdateRequest) Patch() (models.EventPatch, error) {
	fields := map[string]string{}
	p := models.EventPatch{
		Time:              r.Time,
		EndTime:           r.EndTime,
		Location:          trimmed(r.Location),
		Description:       r.Description,
		FlyerPath:         r.FlyerPath,
		CapacityLimit:     r.CapacityLimit,
		CloseOn:           r.CloseOn,
		AllowResponseEdit: notNull(r.AllowResponseEdit),
		EmailConfirmation: notNull(r.EmailConfirmation),
		SortOrder:         notNull(r.SortOrder),
	}

	if r.Name.Set {
		name := strings.TrimSpace(r.Name.Value)
		if name == "" {
			fields["name"] = "cannot be empty"
		}
		p.Name = models.Some(name)
	}
	if r.Date.Set {
		if r.Date.Null || r.Date.Value.IsZero() {
			fields["date"] = "cannot be empty"
		}
		p.Date = r.Date
	}
	if r.CapacityLimit.Set && !r.CapacityLimit.Null && r.CapacityLimit.Value < 0 {
		fields["capacityLimit"] = "must be at least 0"
	}

	switch {
	case r.Status.Set:
		st, err := models.ParseStatus(r.Status.Value)
		if err != nil {
			fields["status"] = err.Error()
		}
		p.Status = models.Some(st)
	case r.IsPublished.Set:
		var open *bool
		if r.Open.Set && !r.Open.Null {
			open = &r.Open.Value
		}
		st, err := models.StatusFromLegacy(r.IsPublished.Value, open)
		if err != nil {
			fields["isPublished"] = err.Error()
		}
		p.Status = models.Some(st)
	}

	if len(fields) > 0 {
		return models.EventPatch{}, apperr.Validation("invalid request", fields)
	}
	if p.Empty() {
		return p, apperr.Validation("no valid fields provided for update", nil)
	}
	return p, nil
}

func trimmed(o models.Optional[string]) models.Optional[string] {
	o.Value = strings.TrimSpace(o.Value)
	return o
}

// notNull treats an explicit null on a non-nullable column as absent.
func notNull[T any](o models.Optional[T]) models.Optional[T] {
	if o.Null {
		return models.Optional[T]{}
	}
	return o
}

// ReorderRequest is the body for PUT /events/reorder.
type ReorderRequest struct {
	Order []int64 `json:"order" binding:"required"`
}
