package events

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/eventforms/backend/internal/admission"
	"github.com/eventforms/backend/internal/lifecycle"
	"github.com/eventforms/backend/internal/models"
)

// When is the temporal/status filter of the event list.
type When string

const (
	WhenAll      When = "all"
	WhenUpcoming When = "upcoming"
	WhenPast     When = "past"
	WhenActive   When = "active"
	WhenArchived When = "archived"
)

// ParseWhen validates a when filter. Empty defaults to all for admins and upcoming
// for everyone else.
func ParseWhen(s string, admin bool) (When, error) {
	switch w := When(strings.ToLower(strings.TrimSpace(s))); w {
	case "":
		if admin {
			return WhenAll, nil
		}
		return WhenUpcoming, nil
	case WhenAll, WhenUpcoming, WhenPast, WhenActive, WhenArchived:
		return w, nil
	}
	return "", fmt.Errorf("invalid when %q", s)
}

// SortKey orders the event list.
type SortKey string

const (
	SortEventDate SortKey = "eventdate"
	SortAlpha     SortKey = "alpha"
	SortCreated   SortKey = "created"
	SortCustom    SortKey = "custom"
)

// ParseSort validates a sort key (case-insensitive). Empty means eventDate.
func ParseSort(s string) (SortKey, error) {
	switch k := SortKey(strings.ToLower(strings.TrimSpace(s))); k {
	case "":
		return SortEventDate, nil
	case SortEventDate, SortAlpha, SortCreated, SortCustom:
		return k, nil
	}
	return "", fmt.Errorf("invalid sort %q", s)
}

// Statuses returns the statuses a list query has to load: the caller's visible set,
// narrowed by status-based filters.
func (w When) Statuses(admin bool) []models.Status {
	visible := models.PublicStatuses
	if admin {
		visible = models.AllStatuses
	}
	var keep func(models.Status) bool
	switch w {
	case WhenArchived:
		keep = func(s models.Status) bool { return s == models.StatusArchived }
	case WhenActive:
		keep = func(s models.Status) bool { return s != models.StatusArchived }
	default:
		return visible
	}
	out := make([]models.Status, 0, len(visible))
	for _, s := range visible {
		if keep(s) {
			out = append(out, s)
		}
	}
	return out
}

// Item is an event list entry with its derived admission fields.
type Item struct {
	models.EventSummary
	admission.Snapshot
	DisplayStatus models.Status       `json:"displayStatus"`
	EditState     lifecycle.EditState `json:"editState"`
}

// NewItem derives the list fields of ev at now.
func NewItem(ev models.EventSummary, now time.Time) Item {
	return Item{
		EventSummary:  ev,
		Snapshot:      admission.Describe(&ev.Event, now, ev.ResponsesCount),
		DisplayStatus: ev.Status,
		EditState:     lifecycle.EditStateOf(&ev.Event),
	}
}

// Build filters events by w and orders them by key, evaluated at a single instant.
func Build(events []models.EventSummary, w When, key SortKey, now time.Time) []Item {
	items := make([]Item, 0, len(events))
	for _, ev := range events {
		switch w {
		case WhenUpcoming:
			if admission.Ended(&ev.Event, now) {
				continue
			}
		case WhenPast:
			if !admission.Ended(&ev.Event, now) {
				continue
			}
		}
		items = append(items, NewItem(ev, now))
	}
	sort.SliceStable(items, less(items, key))
	return items
}

func less(items []Item, key SortKey) func(i, j int) bool {
	switch key {
	case SortAlpha:
		return func(i, j int) bool {
			a, b := strings.ToLower(items[i].Name), strings.ToLower(items[j].Name)
			if a != b {
				return a < b
			}
			return items[i].ID < items[j].ID
		}
	case SortCreated:
		return func(i, j int) bool { return items[i].ID > items[j].ID }
	case SortCustom:
		return func(i, j int) bool {
			if items[i].SortOrder != items[j].SortOrder {
				return items[i].SortOrder < items[j].SortOrder
			}
			return items[i].ID < items[j].ID
		}
	}
	// Schedule order; events without a start time come first on their day.
	return func(i, j int) bool {
		a, b := items[i].Event, items[j].Event
		if c := a.Date.Compare(b.Date); c != 0 {
			return c < 0
		}
		ta, tb := startOf(a), startOf(b)
		if ta != tb {
			return ta < tb
		}
		return a.ID < b.ID
	}
}

func startOf(ev models.Event) models.TimeOfDay {
	if ev.Time == nil {
		return -1
	}
	return *ev.Time
}
