package models

import (
	"time"
)

// Event is an admin-managed event that accepts public registration responses.
type Event struct {
	ID                int64      `json:"eventId"`
	Name              string     `json:"name"`
	Date              Date       `json:"date"`
	Time              *TimeOfDay `json:"time"`
	EndTime           *TimeOfDay `json:"endTime"`
	Location          string     `json:"location"`
	Description       string     `json:"description"`
	FlyerPath         string     `json:"flyerPath"`
	Status            Status     `json:"status"`
	AllowResponseEdit bool       `json:"allowResponseEdit"`
	CapacityLimit     *int       `json:"capacityLimit"`
	CloseOn           *time.Time `json:"closeOn"`
	EmailConfirmation bool       `json:"emailConfirmation"`
	SortOrder         int        `json:"sortOrder"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

// EventSummary is an event together with its live response count.
type EventSummary struct {
	Event
	ResponsesCount int `json:"responsesCount"`
}

// EventPatch is a partial update. Only fields with Set=true are written.
type EventPatch struct {
	Name              Optional[string]
	Date              Optional[Date]
	Time              Optional[TimeOfDay]
	EndTime           Optional[TimeOfDay]
	Location          Optional[string]
	Description       Optional[string]
	FlyerPath         Optional[string]
	Status            Optional[Status]
	AllowResponseEdit Optional[bool]
	CapacityLimit     Optional[int]
	CloseOn           Optional[time.Time]
	EmailConfirmation Optional[bool]
	SortOrder         Optional[int]
}

// Empty reports whether the patch changes nothing.
func (p EventPatch) Empty() bool {
	return !(p.Name.Set || p.Date.Set || p.Time.Set || p.EndTime.Set || p.Location.Set ||
		p.Description.Set || p.FlyerPath.Set || p.Status.Set || p.AllowResponseEdit.Set ||
		p.CapacityLimit.Set || p.CloseOn.Set || p.EmailConfirmation.Set || p.SortOrder.Set)
}

// Apply writes the set fields of p onto ev.
func (p EventPatch) Apply(ev *Event) {
	if p.Name.Set {
		ev.Name = p.Name.Value
	}
	if p.Date.Set {
		ev.Date = p.Date.Value
	}
	if p.Time.Set {
		ev.Time = p.Time.Ptr()
	}
	if p.EndTime.Set {
		ev.EndTime = p.EndTime.Ptr()
	}
	if p.Location.Set {
		ev.Location = p.Location.Value
	}
	if p.Description.Set {
		ev.Description = p.Description.Value
	}
	if p.FlyerPath.Set {
		ev.FlyerPath = p.FlyerPath.Value
	}
	if p.Status.Set && !p.Status.Null {
		ev.Status = p.Status.Value
	}
	if p.AllowResponseEdit.Set {
		ev.AllowResponseEdit = p.AllowResponseEdit.Value
	}
	if p.CapacityLimit.Set {
		ev.CapacityLimit = p.CapacityLimit.Ptr()
	}
	if p.CloseOn.Set {
		ev.CloseOn = p.CloseOn.Ptr()
	}
	if p.EmailConfirmation.Set {
		ev.EmailConfirmation = p.EmailConfirmation.Value
	}
	if p.SortOrder.Set {
		ev.SortOrder = p.SortOrder.Value
	}
}
