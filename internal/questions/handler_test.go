package questions

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eventforms/backend/internal/models"
	"github.com/eventforms/backend/internal/store/memory"
)

type envelope struct {
	Success bool              `json:"success"`
	Data    json.RawMessage   `json:"data"`
	Error   string            `json:"error"`
	Fields  map[string]string `json:"fields"`
}

func setup(t *testing.T) (*memory.Store, *gin.Engine, *models.Event) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	st := memory.New("")
	ev := &models.Event{Name: "Fair", Date: models.Date{Year: 2026, Month: 10, Day: 25}, Status: models.StatusOpen}
	require.NoError(t, st.CreateEvent(context.Background(), ev))

	h := NewHandler(st, zap.NewNop())
	r := gin.New()
	r.GET("/events/:id/questions", h.List)
	r.POST("/events/:id/questions", h.Create)
	r.PUT("/events/:id/questions/:questionId", h.Update)
	r.DELETE("/events/:id/questions/:questionId", h.Delete)
	r.GET("/events/:id/questions/:questionId/options", h.ListOptions)
	r.POST("/events/:id/questions/:questionId/options", h.CreateOption)
	r.PUT("/events/:id/questions/:questionId/options/:optionId", h.UpdateOption)
	r.DELETE("/events/:id/questions/:questionId/options/:optionId", h.DeleteOption)
	return st, r, ev
}

func call(t *testing.T, r *gin.Engine, method, path string, body any) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w.Code, env
}

func createQuestion(t *testing.T, r *gin.Engine, eventID int64, body gin.H) QuestionWithOptions {
	t.Helper()
	code, env := call(t, r, http.MethodPost, fmt.Sprintf("/events/%d/questions", eventID), body)
	require.Equal(t, http.StatusCreated, code, env.Error)
	var q QuestionWithOptions
	require.NoError(t, json.Unmarshal(env.Data, &q))
	return q
}

func TestOptionsOnlyForChoiceQuestions(t *testing.T) {
	_, r, ev := setup(t)
	free := createQuestion(t, r, ev.ID, gin.H{"questionText": "Dietary needs", "questionType": "textarea"})
	choice := createQuestion(t, r, ev.ID, gin.H{"questionText": "Shirt size", "questionType": "dropdown"})

	code, env := call(t, r, http.MethodPost, fmt.Sprintf("/events/%d/questions/%d/options", ev.ID, free.ID), gin.H{"label": "Vegan"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.False(t, env.Success)

	code, _ = call(t, r, http.MethodPost, fmt.Sprintf("/events/%d/questions/%d/options", ev.ID, choice.ID), gin.H{"label": "M", "sortOrder": 2})
	require.Equal(t, http.StatusCreated, code)
	code, _ = call(t, r, http.MethodPost, fmt.Sprintf("/events/%d/questions/%d/options", ev.ID, choice.ID), gin.H{"label": "S", "sortOrder": 1})
	require.Equal(t, http.StatusCreated, code)

	code, env = call(t, r, http.MethodGet, fmt.Sprintf("/events/%d/questions/%d/options", ev.ID, choice.ID), nil)
	require.Equal(t, http.StatusOK, code)
	var opts []models.Option
	require.NoError(t, json.Unmarshal(env.Data, &opts))
	require.Len(t, opts, 2)
	assert.Equal(t, "S", opts[0].Label)
	assert.Equal(t, "M", opts[1].Label)
}

func TestCreateWithInlineOptions(t *testing.T) {
	_, r, ev := setup(t)
	q := createQuestion(t, r, ev.ID, gin.H{
		"questionText": "Session", "questionType": "multiple-choice", "isRequired": true,
		"options": []string{"Morning", "Afternoon"},
	})
	require.Len(t, q.Options, 2)
	assert.Equal(t, 1, q.Options[0].SortOrder)
	assert.True(t, q.IsRequired)

	code, env := call(t, r, http.MethodPost, fmt.Sprintf("/events/%d/questions", ev.ID), gin.H{
		"questionText": "Name", "questionType": "text", "options": []string{"x"},
	})
	assert.Equal(t, http.StatusBadRequest, code, env.Error)
}

func TestCreateRejectsBlankOptionLabels(t *testing.T) {
	st, r, ev := setup(t)

	code, env := call(t, r, http.MethodPost, fmt.Sprintf("/events/%d/questions", ev.ID), gin.H{
		"questionText": "Session", "questionType": "dropdown", "options": []string{"Morning", "  "},
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, env.Fields, "options[1]")
	list, err := st.ListQuestions(context.Background(), ev.ID)
	require.NoError(t, err)
	assert.Empty(t, list, "nothing stored when an option is invalid")

	choice := createQuestion(t, r, ev.ID, gin.H{"questionText": "Size", "questionType": "dropdown"})
	code, env = call(t, r, http.MethodPost, fmt.Sprintf("/events/%d/questions/%d/options", ev.ID, choice.ID), gin.H{"label": "   "})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, env.Fields, "label")
	opts, err := st.ListOptions(context.Background(), choice.ID)
	require.NoError(t, err)
	assert.Empty(t, opts)
}

func TestCreateValidation(t *testing.T) {
	_, r, ev := setup(t)

	code, env := call(t, r, http.MethodPost, fmt.Sprintf("/events/%d/questions", ev.ID), gin.H{"questionText": "Q", "questionType": "slider"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, env.Fields, "questionType")

	code, env = call(t, r, http.MethodPost, fmt.Sprintf("/events/%d/questions", ev.ID), gin.H{"questionType": "text"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, env.Fields, "questionText")

	code, _ = call(t, r, http.MethodPost, "/events/999/questions", gin.H{"questionText": "Q", "questionType": "text"})
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = call(t, r, http.MethodPost, "/events/x/questions", gin.H{"questionText": "Q", "questionType": "text"})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestListIncludesOptions(t *testing.T) {
	_, r, ev := setup(t)
	createQuestion(t, r, ev.ID, gin.H{"questionText": "First", "questionType": "text"})
	createQuestion(t, r, ev.ID, gin.H{"questionText": "Second", "questionType": "checkbox", "options": []string{"A"}})

	code, env := call(t, r, http.MethodGet, fmt.Sprintf("/events/%d/questions", ev.ID), nil)
	require.Equal(t, http.StatusOK, code)
	var list []QuestionWithOptions
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list, 2)
	assert.Equal(t, "First", list[0].QuestionText)
	assert.Empty(t, list[0].Options)
	assert.Len(t, list[1].Options, 1)
}

func TestUpdateAndDelete(t *testing.T) {
	st, r, ev := setup(t)
	q := createQuestion(t, r, ev.ID, gin.H{"questionText": "Size", "questionType": "dropdown", "options": []string{"S"}})
	path := fmt.Sprintf("/events/%d/questions/%d", ev.ID, q.ID)

	code, _ := call(t, r, http.MethodPut, path, gin.H{"questionType": "text"})
	assert.Equal(t, http.StatusBadRequest, code, "free-text type while options exist")

	code, _ = call(t, r, http.MethodPut, path, gin.H{"questionText": "T-shirt size", "isRequired": true})
	require.Equal(t, http.StatusOK, code)
	got, err := st.GetQuestion(context.Background(), ev.ID, q.ID)
	require.NoError(t, err)
	assert.Equal(t, "T-shirt size", got.QuestionText)
	assert.True(t, got.IsRequired)

	code, _ = call(t, r, http.MethodPut, path, gin.H{})
	assert.Equal(t, http.StatusBadRequest, code)

	optPath := fmt.Sprintf("%s/options/%d", path, q.Options[0].ID)
	code, _ = call(t, r, http.MethodPut, optPath, gin.H{"label": "Small"})
	require.Equal(t, http.StatusOK, code)
	code, _ = call(t, r, http.MethodDelete, optPath, nil)
	require.Equal(t, http.StatusOK, code)
	code, _ = call(t, r, http.MethodDelete, optPath, nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = call(t, r, http.MethodDelete, path, nil)
	require.Equal(t, http.StatusOK, code)
	code, _ = call(t, r, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestQuestionBelongsToEvent(t *testing.T) {
	st, r, ev := setup(t)
	other := &models.Event{Name: "Other", Date: models.Date{Year: 2026, Month: 11, Day: 1}}
	require.NoError(t, st.CreateEvent(context.Background(), other))
	q := createQuestion(t, r, ev.ID, gin.H{"questionText": "Size", "questionType": "dropdown"})

	code, _ := call(t, r, http.MethodGet, fmt.Sprintf("/events/%d/questions/%d/options", other.ID, q.ID), nil)
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = call(t, r, http.MethodPut, fmt.Sprintf("/events/%d/questions/%d", other.ID, q.ID), gin.H{"isRequired": true})
	assert.Equal(t, http.StatusNotFound, code)
}
