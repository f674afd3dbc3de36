package uploads

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventforms/backend/internal/models"
	"github.com/eventforms/backend/internal/store/memory"
	"github.com/eventforms/backend/pkg/storage"
)

type envelope struct {
	Success bool              `json:"success"`
	Data    map[string]any    `json:"data"`
	Error   string            `json:"error"`
	Fields  map[string]string `json:"fields"`
}

func setup(t *testing.T, maxSize int64) (*storage.Local, *memory.Store, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	blobs, err := storage.NewLocal(t.TempDir(), "uploads", nil)
	require.NoError(t, err)
	st := memory.New("")
	h := NewHandler(blobs, st, maxSize, nil)
	r := gin.New()
	r.POST("/uploads", h.Upload)
	r.POST("/events/:id/flyer", h.UploadForEvent)
	return blobs, st, r
}

func multipartBody(t *testing.T, field, filename, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename))
	hdr.Set("Content-Type", contentType)
	part, err := mw.CreatePart(hdr)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func post(t *testing.T, r *gin.Engine, path, field, filename, contentType string, data []byte) (int, envelope) {
	t.Helper()
	body, ct := multipartBody(t, field, filename, contentType, data)
	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w.Code, env
}

func TestUpload(t *testing.T) {
	blobs, _, r := setup(t, 0)
	code, env := post(t, r, "/uploads", FormField, "poster.PNG", "image/png", []byte("png-bytes"))
	require.Equal(t, http.StatusCreated, code, env.Error)

	flyerPath, _ := env.Data["flyerPath"].(string)
	assert.True(t, strings.HasPrefix(flyerPath, "uploads/flyers/"), flyerPath)
	assert.True(t, strings.HasSuffix(flyerPath, ".png"), flyerPath)

	stored, err := os.ReadFile(filepath.Join(blobs.Dir(), strings.TrimPrefix(flyerPath, "uploads/")))
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(stored))
}

func TestUploadRejects(t *testing.T) {
	_, _, r := setup(t, 16)

	code, env := post(t, r, "/uploads", FormField, "notes.txt", "text/plain", []byte("hello"))
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, env.Fields, FormField)

	code, _ = post(t, r, "/uploads", "file", "poster.png", "image/png", []byte("png"))
	assert.Equal(t, http.StatusBadRequest, code, "wrong field name")

	code, env = post(t, r, "/uploads", FormField, "poster.png", "image/png", bytes.Repeat([]byte("x"), 32))
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "file too large", env.Error)
}

func TestUploadForEventReplacesFlyer(t *testing.T) {
	blobs, st, r := setup(t, 0)
	ev := &models.Event{Name: "Fair", Date: models.Date{Year: 2026, Month: 10, Day: 25}}
	require.NoError(t, st.CreateEvent(context.Background(), ev))
	path := fmt.Sprintf("/events/%d/flyer", ev.ID)

	code, env := post(t, r, path, FormField, "a.pdf", "application/pdf", []byte("first"))
	require.Equal(t, http.StatusOK, code, env.Error)
	first, _ := env.Data["flyerPath"].(string)
	assert.Contains(t, first, fmt.Sprintf("flyers/event-%d-", ev.ID))

	code, env = post(t, r, path, FormField, "b.jpg", "image/jpeg", []byte("second"))
	require.Equal(t, http.StatusOK, code, env.Error)
	second, _ := env.Data["flyerPath"].(string)

	got, err := st.GetEvent(context.Background(), ev.ID)
	require.NoError(t, err)
	assert.Equal(t, second, got.FlyerPath)

	_, err = os.Stat(filepath.Join(blobs.Dir(), strings.TrimPrefix(first, "uploads/")))
	assert.True(t, os.IsNotExist(err), "previous flyer removed")

	code, _ = post(t, r, "/events/999/flyer", FormField, "a.pdf", "application/pdf", []byte("x"))
	assert.Equal(t, http.StatusNotFound, code)
}
