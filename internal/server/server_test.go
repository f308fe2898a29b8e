package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"trazio/internal/config"
	"trazio/internal/models"
	"trazio/internal/storage"
	"trazio/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const cookieName = "trazio_sid"

type harness struct {
	backend *testutil.Backend
	db      *gorm.DB
	app     *fiber.App
}

func newHarness(t *testing.T, flags string) *harness {
	t.Helper()
	t.Setenv("APP_ENV", "test")
	b := testutil.NewBackend()
	t.Cleanup(b.Close)
	db := testutil.NewDB(t)

	cfg := &config.Config{
		Port:                 "0",
		Env:                  "test",
		APIBaseURL:           b.URL(),
		StorageDriver:        "sqlite",
		StorageDSN:           ":memory:",
		QueryStaleSeconds:    60,
		SessionCookieName:    cookieName,
		AllowedOrigins:       "http://localhost:5173",
		FeatureFlags:         flags,
		UploadMaxImageMB:     1,
		UploadMaxVideoMB:     2,
		UploadMaxDocumentMB:  1,
		RateLimitActionsPerM: 1000,
	}
	srv, err := NewServerWithDeps(cfg, db, nil)
	require.NoError(t, err)
	return &harness{backend: b, db: db, app: srv.NewApp()}
}

// signIn stores a token for u under a fresh session cookie.
func (h *harness) signIn(t *testing.T, u models.User) string {
	t.Helper()
	id := uuid.NewString()
	require.NoError(t, storage.NewTokenStore(storage.NewLocalStorage(h.db), id).SetToken(context.Background(), h.backend.AddUser(u)))
	return id
}

// sessionCookie is the session id the browser keeps after resp.
func sessionCookie(resp *http.Response) string {
	id := ""
	for _, c := range resp.Cookies() {
		if c.Name == cookieName {
			id = c.Value
		}
	}
	return id
}

type reply struct {
	Data     json.RawMessage `json:"data"`
	Toast    *struct{ Kind, Message string }
	Redirect string `json:"redirect"`
}

func (h *harness) do(t *testing.T, method, path, cookie string, body any) (*http.Response, reply) {
	t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return h.send(t, req, cookie)
}

func (h *harness) send(t *testing.T, req *http.Request, cookie string) (*http.Response, reply) {
	t.Helper()
	if cookie != "" {
		req.AddCookie(&http.Cookie{Name: cookieName, Value: cookie})
	}
	resp, err := h.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out reply
	raw, _ := io.ReadAll(resp.Body)
	_ = json.Unmarshal(raw, &out)
	return resp, out
}

func TestHealth(t *testing.T) {
	h := newHarness(t, "")

	resp, _ := h.do(t, http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err := h.app.Test(httptest.NewRequest(http.MethodGet, "/health/ready", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body struct {
		Status string
		Checks map[string]string
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "healthy", body.Status)
	assert.Equal(t, "disabled", body.Checks["redis"])
}

func TestPages_AnonymousIsSentToLogin(t *testing.T) {
	h := newHarness(t, "")

	resp, out := h.do(t, http.MethodGet, "/pages/feed", "", nil)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/pages/login", resp.Header.Get(fiber.HeaderLocation))
	assert.Equal(t, "/login", out.Redirect)
	require.NotEmpty(t, resp.Cookies())
	assert.Equal(t, cookieName, resp.Cookies()[0].Name)

	resp, _ = h.do(t, http.MethodGet, "/pages/nowhere", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestLoginThenFeed(t *testing.T) {
	h := newHarness(t, "")
	u := testutil.NewUser(models.RoleStudent, true)
	h.backend.AddUser(u)
	h.backend.AddPost(testutil.NewPost(u))

	cookie := uuid.NewString()
	resp, out := h.do(t, http.MethodPost, "/api/auth/login", cookie, map[string]string{"email": u.Email, "password": testutil.Password})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "/feed", out.Redirect)

	// Signing in moves the browser to a new session; the old id stays anonymous.
	signedIn := sessionCookie(resp)
	require.NotEmpty(t, signedIn)
	assert.NotEqual(t, cookie, signedIn)
	resp, _ = h.do(t, http.MethodGet, "/pages/feed", cookie, nil)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	cookie = signedIn

	resp, out = h.do(t, http.MethodGet, "/pages/feed", cookie, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var feed struct {
		Posts []struct {
			ID        string
			CanDelete bool `json:"canDelete"`
		}
	}
	require.NoError(t, json.Unmarshal(out.Data, &feed))
	require.Len(t, feed.Posts, 1)
	assert.True(t, feed.Posts[0].CanDelete)

	resp, out = h.do(t, http.MethodGet, "/pages/login", cookie, nil)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/feed", out.Redirect)

	resp, out = h.do(t, http.MethodPost, "/api/auth/logout", cookie, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "/login", out.Redirect)
}

func TestLogin_BadCredentialsIsAToast(t *testing.T) {
	h := newHarness(t, "")
	u := testutil.NewUser(models.RoleStudent, true)
	h.backend.AddUser(u)

	resp, out := h.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": u.Email, "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.NotNil(t, out.Toast)
	assert.Equal(t, "Credenciales inválidas", out.Toast.Message)
	assert.Empty(t, out.Redirect)
}

func TestActions_RequireSignedInUser(t *testing.T) {
	h := newHarness(t, "")
	resp, out := h.do(t, http.MethodPost, "/api/posts/abc/like", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "/login", out.Redirect)
}

func TestToggleLike(t *testing.T) {
	h := newHarness(t, "")
	author := testutil.NewUser(models.RoleStudent, true)
	post := testutil.NewPost(author)
	h.backend.AddPost(post)
	cookie := h.signIn(t, testutil.NewUser(models.RoleStudent, true))

	resp, out := h.do(t, http.MethodPost, "/api/posts/"+post.ID+"/like", cookie, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"on":true,"count":1}`, string(out.Data))

	h.backend.Fail("DELETE /posts/"+post.ID+"/like", testutil.Failure{Status: http.StatusConflict, Message: "No se pudo quitar"})
	resp, out = h.do(t, http.MethodPost, "/api/posts/"+post.ID+"/like", cookie, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	require.NotNil(t, out.Toast)
	assert.Equal(t, "No se pudo quitar", out.Toast.Message)
	assert.JSONEq(t, `{"on":true,"count":1}`, string(out.Data))
}

func TestDeleteComment_NonAuthorKeepsPage(t *testing.T) {
	h := newHarness(t, "")
	author := testutil.NewUser(models.RoleStudent, true)
	post := testutil.NewPost(author)
	h.backend.AddPost(post)
	comment := testutil.NewComment(post.ID, author)
	h.backend.AddComment(comment)
	cookie := h.signIn(t, testutil.NewUser(models.RoleStudent, true))

	resp, _ := h.do(t, http.MethodGet, "/pages/posts/"+post.ID, cookie, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, out := h.do(t, http.MethodDelete, "/api/posts/"+post.ID+"/comments/"+comment.ID, cookie, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	require.NotNil(t, out.Toast)
	assert.Equal(t, "error", out.Toast.Kind)
	assert.Equal(t, "Solo el autor puede eliminar el comentario", out.Toast.Message)
	assert.Empty(t, out.Redirect)

	resp, out = h.do(t, http.MethodGet, "/pages/posts/"+post.ID, cookie, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var page struct {
		Comments []struct {
			ID        string `json:"id"`
			CanDelete bool   `json:"canDelete"`
		} `json:"comments"`
	}
	require.NoError(t, json.Unmarshal(out.Data, &page))
	require.Len(t, page.Comments, 1)
	assert.Equal(t, comment.ID, page.Comments[0].ID)
	assert.False(t, page.Comments[0].CanDelete)
}

func TestExpiredTokenMidSession(t *testing.T) {
	h := newHarness(t, "")
	cookie := h.signIn(t, testutil.NewUser(models.RoleStudent, true))

	resp, _ := h.do(t, http.MethodGet, "/pages/feed", cookie, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	h.backend.Fail("POST /posts", testutil.Failure{Status: http.StatusUnauthorized, Message: "Token inválido o expirado"})
	resp, out := h.do(t, http.MethodPost, "/api/posts", cookie, map[string]string{"content": "hola", "type": "general"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "/login", out.Redirect)

	resp, out = h.do(t, http.MethodGet, "/pages/feed", cookie, nil)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/login", out.Redirect)
}

func TestIncompleteProfileOnboarding(t *testing.T) {
	h := newHarness(t, "")
	cookie := h.signIn(t, testutil.NewUser(models.RoleStudent, false))

	resp, out := h.do(t, http.MethodGet, "/pages/exams", cookie, nil)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/onboarding", out.Redirect)

	resp, out = h.do(t, http.MethodGet, "/pages/onboarding", cookie, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var page struct {
		Step struct{ ID string }
	}
	require.NoError(t, json.Unmarshal(out.Data, &page))
	assert.Equal(t, "role", page.Step.ID)

	resp, out = h.do(t, http.MethodPost, "/api/onboarding/next", cookie, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.NotNil(t, out.Toast)

	resp, _ = h.do(t, http.MethodPost, "/api/onboarding/next", cookie, map[string]string{"role": "student"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestExamsCRUD(t *testing.T) {
	h := newHarness(t, "")
	cookie := h.signIn(t, testutil.NewUser(models.RoleStudent, true))

	resp, out := h.do(t, http.MethodPost, "/api/exams", cookie, map[string]any{
		"subjectId":   "s1",
		"title":       "Final de física",
		"date":        "2030-06-01T09:00:00Z",
		"attachments": []any{},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "Examen creado", out.Toast.Message)
	var exam models.Exam
	require.NoError(t, json.Unmarshal(out.Data, &exam))

	resp, out = h.do(t, http.MethodGet, "/pages/exams", cookie, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list []models.Exam
	require.NoError(t, json.Unmarshal(out.Data, &list))
	require.Len(t, list, 1)
	assert.Equal(t, exam.ID, list[0].ID)

	resp, _ = h.do(t, http.MethodDelete, "/api/exams/"+exam.ID, cookie, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestUpload(t *testing.T) {
	h := newHarness(t, "video_uploads=off")
	cookie := h.signIn(t, testutil.NewUser(models.RoleStudent, true))

	multipartReq := func(kind, name string, content []byte) *http.Request {
		var buf bytes.Buffer
		w := multipart.NewWriter(&buf)
		part, err := w.CreateFormFile("file", name)
		require.NoError(t, err)
		_, _ = part.Write(content)
		require.NoError(t, w.Close())
		req := httptest.NewRequest(http.MethodPost, "/api/uploads/"+kind, &buf)
		req.Header.Set("Content-Type", w.FormDataContentType())
		return req
	}

	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	resp, out := h.send(t, multipartReq("image", "foto.png", png), cookie)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Contains(t, string(out.Data), "foto.png")

	resp, _ = h.send(t, multipartReq("video", "clip.mp4", []byte("x")), cookie)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, out = h.send(t, multipartReq("image", "notas.txt", []byte("solo texto")), cookie)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.NotNil(t, out.Toast)

	resp, _ = h.send(t, multipartReq("audio", "a.mp3", png), cookie)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, 1, h.backend.Uploads())
}

func TestFeatureFlags(t *testing.T) {
	h := newHarness(t, "highlights=role:teacher,video_uploads=off")
	cookie := h.signIn(t, testutil.NewUser(models.RoleTeacher, true))

	resp, err := h.app.Test(func() *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/api/features", nil)
		req.AddCookie(&http.Cookie{Name: cookieName, Value: cookie})
		return req
	}(), -1)
	require.NoError(t, err)
	var body struct {
		Raw       map[string]string
		Evaluated map[string]bool
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "role:teacher", body.Raw["highlights"])
	assert.True(t, body.Evaluated["highlights"])
	assert.False(t, body.Evaluated["video_uploads"])
}
