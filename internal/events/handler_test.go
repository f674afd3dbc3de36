package events

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eventforms/backend/internal/admission"
	"github.com/eventforms/backend/internal/auth"
	"github.com/eventforms/backend/internal/middleware"
	"github.com/eventforms/backend/internal/models"
	"github.com/eventforms/backend/internal/store/memory"
)

var now = time.Date(2026, 10, 19, 14, 0, 0, 0, time.UTC)

type harness struct {
	store  *memory.Store
	clock  *admission.ManualClock
	router *gin.Engine
	token  string
	blobs  *blobRecorder
}

type blobRecorder struct {
	deleted []string
}

func (b *blobRecorder) Put(_ context.Context, key, _ string, _ io.Reader, _ int64) (string, error) {
	return "/uploads/" + key, nil
}

func (b *blobRecorder) Delete(_ context.Context, path string) error {
	b.deleted = append(b.deleted, path)
	return nil
}

func itoa(id int64) string { return strconv.FormatInt(id, 10) }

func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)
	jwtService := auth.NewJWTService("test-secret", 1)
	token, err := jwtService.Generate("admin")
	require.NoError(t, err)

	hs := &harness{
		store: memory.New(""),
		clock: admission.NewManualClock(now),
		token: token,
		blobs: &blobRecorder{},
	}
	h := NewHandler(hs.store, admission.NewEvaluator(hs.clock, time.UTC), hs.blobs, zap.NewNop())

	r := gin.New()
	api := r.Group("/api", middleware.ResolveAdmin(jwtService, false))
	api.GET("/events", h.List)
	api.GET("/events/:id", h.Get)
	admin := api.Group("", middleware.RequireAdmin())
	admin.POST("/events", h.Create)
	admin.PUT("/events/reorder", h.Reorder)
	admin.GET("/events/export", h.Export)
	admin.PUT("/events/:id", h.Update)
	admin.DELETE("/events/:id", h.Delete)
	hs.router = r
	return hs
}

func (hs *harness) do(t *testing.T, method, path string, body any, admin bool) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if admin {
		req.Header.Set("Authorization", "Bearer "+hs.token)
	}
	w := httptest.NewRecorder()
	hs.router.ServeHTTP(w, req)
	return w
}

func (hs *harness) seed(t *testing.T, name string, mutate func(*models.Event)) *models.Event {
	t.Helper()
	ev := &models.Event{
		Name:              name,
		Date:              models.Date{Year: 2026, Month: 10, Day: 25},
		Status:            models.StatusOpen,
		AllowResponseEdit: true,
	}
	if mutate != nil {
		mutate(ev)
	}
	require.NoError(t, hs.store.CreateEvent(context.Background(), ev))
	return ev
}

type envelope struct {
	Success bool              `json:"success"`
	Data    json.RawMessage   `json:"data"`
	Error   string            `json:"error"`
	Fields  map[string]string `json:"fields"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

type listItem struct {
	EventID        int64  `json:"eventId"`
	Name           string `json:"name"`
	Status         string `json:"status"`
	DisplayStatus  string `json:"displayStatus"`
	ResponsesCount int    `json:"responsesCount"`
	CapacityFull   bool   `json:"capacityFull"`
	CloseOnPassed  bool   `json:"closeOnPassed"`
	IsPast         bool   `json:"isPast"`
	Submittable    bool   `json:"submittable"`
	EditState      string `json:"editState"`
	SortOrder      int    `json:"sortOrder"`
}

func (hs *harness) list(t *testing.T, query string, admin bool) []listItem {
	t.Helper()
	w := hs.do(t, http.MethodGet, "/api/events"+query, nil, admin)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var items []listItem
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &items))
	return items
}

func names(items []listItem) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Name
	}
	return out
}

func TestCreateDefaultsToPrivateAndVisibility(t *testing.T) {
	hs := newHarness(t)

	w := hs.do(t, http.MethodPost, "/api/events", gin.H{"name": "Gala", "date": "2026-11-02"}, true)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created models.Event
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &created))
	assert.Equal(t, models.StatusPrivate, created.Status)
	assert.True(t, created.AllowResponseEdit)
	assert.Equal(t, 1, created.SortOrder)

	assert.Empty(t, hs.list(t, "", false), "private events are hidden from the public")
	admin := hs.list(t, "", true)
	require.Len(t, admin, 1)
	assert.Equal(t, "private", admin[0].DisplayStatus)
	assert.False(t, admin[0].Submittable)

	w = hs.do(t, http.MethodGet, "/api/events/"+itoa(created.ID), nil, false)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = hs.do(t, http.MethodGet, "/api/events/"+itoa(created.ID), nil, true)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCreateRequiresAdmin(t *testing.T) {
	hs := newHarness(t)
	w := hs.do(t, http.MethodPost, "/api/events", gin.H{"name": "Gala", "date": "2026-11-02"}, false)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestCreateValidation(t *testing.T) {
	hs := newHarness(t)

	w := hs.do(t, http.MethodPost, "/api/events", gin.H{"date": "2026-11-02"}, true)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode(t, w).Fields, "name")

	w = hs.do(t, http.MethodPost, "/api/events", gin.H{"name": "Gala"}, true)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode(t, w).Fields, "date")

	w = hs.do(t, http.MethodPost, "/api/events", gin.H{"name": "Gala", "date": "2026-11-02", "status": "published"}, true)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode(t, w).Fields, "status")
}

func TestCreateFromLegacyPublication(t *testing.T) {
	hs := newHarness(t)
	w := hs.do(t, http.MethodPost, "/api/events", gin.H{
		"name": "Legacy", "date": "2026-11-02", "isPublished": "public", "open": false,
	}, true)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created models.Event
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &created))
	assert.Equal(t, models.StatusClosed, created.Status)
}

func TestUpdate(t *testing.T) {
	hs := newHarness(t)
	ev := hs.seed(t, "Gala", func(e *models.Event) {
		limit := 5
		e.CapacityLimit = &limit
	})

	t.Run("invalid status", func(t *testing.T) {
		w := hs.do(t, http.MethodPut, "/api/events/"+itoa(ev.ID), gin.H{"status": "live"}, true)
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, decode(t, w).Fields, "status")
		got, err := hs.store.GetEvent(context.Background(), ev.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusOpen, got.Status)
	})

	t.Run("empty body", func(t *testing.T) {
		w := hs.do(t, http.MethodPut, "/api/events/"+itoa(ev.ID), gin.H{}, true)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("partial update clears nullable fields", func(t *testing.T) {
		w := hs.do(t, http.MethodPut, "/api/events/"+itoa(ev.ID), map[string]any{
			"status": "closed", "capacityLimit": nil, "location": "Hall B",
		}, true)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		got, err := hs.store.GetEvent(context.Background(), ev.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusClosed, got.Status)
		assert.Nil(t, got.CapacityLimit)
		assert.Equal(t, "Hall B", got.Location)
		assert.Equal(t, "Gala", got.Name)
	})

	t.Run("unknown event", func(t *testing.T) {
		w := hs.do(t, http.MethodPut, "/api/events/999", gin.H{"name": "x"}, true)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("non-integer id", func(t *testing.T) {
		w := hs.do(t, http.MethodPut, "/api/events/abc", gin.H{"name": "x"}, true)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestListDerivedFields(t *testing.T) {
	hs := newHarness(t)
	past := now.Add(-time.Hour)
	hs.seed(t, "Closing", func(e *models.Event) { e.CloseOn = &past })
	hs.seed(t, "Full", func(e *models.Event) {
		limit := 0
		e.CapacityLimit = &limit
	})
	hs.seed(t, "Locked", func(e *models.Event) { e.AllowResponseEdit = false })

	byName := map[string]listItem{}
	for _, it := range hs.list(t, "?when=all", true) {
		byName[it.Name] = it
	}
	assert.True(t, byName["Closing"].CloseOnPassed)
	assert.False(t, byName["Closing"].Submittable)
	assert.True(t, byName["Full"].CapacityFull)
	assert.False(t, byName["Full"].Submittable)
	assert.True(t, byName["Locked"].Submittable)
	assert.Equal(t, "LOCKED", byName["Locked"].EditState)
	assert.Equal(t, "EDITABLE", byName["Closing"].EditState)
}

func TestListWhenFilters(t *testing.T) {
	hs := newHarness(t)
	hs.seed(t, "Tomorrow", func(e *models.Event) { e.Date = models.Date{Year: 2026, Month: 10, Day: 20} })
	hs.seed(t, "Yesterday", func(e *models.Event) { e.Date = models.Date{Year: 2026, Month: 10, Day: 18} })
	hs.seed(t, "This morning", func(e *models.Event) {
		e.Date = models.Date{Year: 2026, Month: 10, Day: 19}
		start := models.TimeOfDay(9 * 3600)
		e.Time = &start
	})
	hs.seed(t, "Tonight", func(e *models.Event) {
		e.Date = models.Date{Year: 2026, Month: 10, Day: 19}
		start := models.TimeOfDay(9 * 3600)
		end := models.TimeOfDay(20 * 3600)
		e.Time = &start
		e.EndTime = &end
	})
	hs.seed(t, "Archived", func(e *models.Event) { e.Status = models.StatusArchived })
	hs.seed(t, "Draft", func(e *models.Event) { e.Status = models.StatusPrivate })

	assert.ElementsMatch(t, []string{"Tomorrow", "Tonight"}, names(hs.list(t, "", false)),
		"public default is upcoming over open and closed events")
	assert.ElementsMatch(t, []string{"Yesterday", "This morning"}, names(hs.list(t, "?when=past", false)))
	assert.ElementsMatch(t, []string{"Archived"}, names(hs.list(t, "?when=archived", true)))
	assert.Empty(t, hs.list(t, "?when=archived", false))
	assert.ElementsMatch(t, []string{"Tomorrow", "Yesterday", "This morning", "Tonight", "Draft"},
		names(hs.list(t, "?when=active", true)))
	assert.Len(t, hs.list(t, "", true), 6, "admin default is all")

	for _, it := range hs.list(t, "?when=past", true) {
		if it.Name == "This morning" {
			assert.True(t, it.IsPast)
			assert.False(t, it.Submittable)
		}
	}
}

func TestListSort(t *testing.T) {
	hs := newHarness(t)
	hs.seed(t, "charlie", func(e *models.Event) { e.Date = models.Date{Year: 2026, Month: 11, Day: 3} })
	hs.seed(t, "Alpha", func(e *models.Event) { e.Date = models.Date{Year: 2026, Month: 12, Day: 1} })
	hs.seed(t, "bravo", func(e *models.Event) { e.Date = models.Date{Year: 2026, Month: 10, Day: 30} })

	assert.Equal(t, []string{"bravo", "charlie", "Alpha"}, names(hs.list(t, "?sort=eventDate", true)))
	assert.Equal(t, []string{"Alpha", "bravo", "charlie"}, names(hs.list(t, "?sort=alpha", true)))
	assert.Equal(t, []string{"bravo", "Alpha", "charlie"}, names(hs.list(t, "?sort=created", true)))
	assert.Equal(t, []string{"charlie", "Alpha", "bravo"}, names(hs.list(t, "?sort=custom", true)))
}

func TestListRejectsUnknownParams(t *testing.T) {
	hs := newHarness(t)
	w := hs.do(t, http.MethodGet, "/api/events?when=soon", nil, false)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode(t, w).Fields, "when")

	w = hs.do(t, http.MethodGet, "/api/events?sort=random", nil, false)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode(t, w).Fields, "sort")
}

func TestReorder(t *testing.T) {
	hs := newHarness(t)
	a := hs.seed(t, "A", nil)
	b := hs.seed(t, "B", nil)
	c := hs.seed(t, "C", nil)

	orders := func() []int {
		var out []int
		for _, id := range []int64{a.ID, b.ID, c.ID} {
			ev, err := hs.store.GetEvent(context.Background(), id)
			require.NoError(t, err)
			out = append(out, ev.SortOrder)
		}
		return out
	}

	cases := []struct {
		name  string
		order []int64
	}{
		{"duplicate id", []int64{c.ID, a.ID, c.ID}},
		{"unknown id", []int64{c.ID, 999, a.ID}},
		{"empty", []int64{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := hs.do(t, http.MethodPut, "/api/events/reorder", gin.H{"order": tc.order}, true)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			assert.Equal(t, []int{1, 2, 3}, orders())
		})
	}

	w := hs.do(t, http.MethodPut, "/api/events/reorder", gin.H{"order": []int64{c.ID, a.ID, b.ID}}, true)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, []int{2, 3, 1}, orders())
	assert.Equal(t, []string{"C", "A", "B"}, names(hs.list(t, "?sort=custom", true)))
}

func TestDeleteRemovesFlyer(t *testing.T) {
	hs := newHarness(t)
	ev := hs.seed(t, "Gala", func(e *models.Event) { e.FlyerPath = "/uploads/flyers/gala.png" })

	w := hs.do(t, http.MethodDelete, "/api/events/"+itoa(ev.ID), nil, true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"/uploads/flyers/gala.png"}, hs.blobs.deleted)

	w = hs.do(t, http.MethodDelete, "/api/events/"+itoa(ev.ID), nil, true)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestExport(t *testing.T) {
	hs := newHarness(t)
	hs.seed(t, "First", nil)
	hs.seed(t, "=Second", nil)

	w := hs.do(t, http.MethodGet, "/api/events/export", nil, true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/csv")
	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "eventId,name,date,time,endTime,location,description,status,createdAt", lines[0])
	assert.Contains(t, lines[1], "'=Second", "newest first, formula neutralised")
	assert.Contains(t, lines[2], "First")
}
