package models

import (
	"fmt"
	"strings"
)

// Status is the lifecycle status of an event. It governs both visibility and admission.
type Status string

const (
	StatusPrivate  Status = "private"
	StatusOpen     Status = "open"
	StatusClosed   Status = "closed"
	StatusArchived Status = "archived"
)

// AllStatuses lists every valid status (admin visibility).
var AllStatuses = []Status{StatusPrivate, StatusOpen, StatusClosed, StatusArchived}

// PublicStatuses lists the statuses visible to non-admin callers.
var PublicStatuses = []Status{StatusOpen, StatusClosed}

// ParseStatus returns the status for s (case-insensitive). Unknown values are an error.
func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusPrivate, StatusOpen, StatusClosed, StatusArchived:
		return st, nil
	}
	return "", fmt.Errorf("invalid status %q", s)
}

// Valid reports whether s is one of the four statuses.
func (s Status) Valid() bool {
	_, err := ParseStatus(string(s))
	return err == nil
}

// PubliclyVisible reports whether non-admin callers may see an event with this status.
func (s Status) PubliclyVisible() bool {
	return s == StatusOpen || s == StatusClosed
}

// Legacy publication values ("isPublished") used by older clients.
const (
	LegacyDraft  = "draft"
	LegacyPublic = "public"
)

// StatusFromLegacy maps the legacy isPublished/open pair onto a Status.
// draft → private; public → open, or closed when open is explicitly false.
func StatusFromLegacy(isPublished string, open *bool) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(isPublished)) {
	case LegacyDraft:
		return StatusPrivate, nil
	case LegacyPublic:
		if open != nil && !*open {
			return StatusClosed, nil
		}
		return StatusOpen, nil
	}
	return "", fmt.Errorf("invalid isPublished %q", isPublished)
}
