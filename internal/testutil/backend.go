package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"trazio/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/golang-jwt/jwt/v5"
)

var signingKey = []byte("trazio-test-key")

// Password is accepted for every seeded account.
const Password = "correct-horse"

// Failure is a canned error answer.
type Failure struct {
	Status  int
	Message string
}

// Backend is an in-memory TRAZIO REST API served by httptest.
type Backend struct {
	Server *httptest.Server

	mu        sync.Mutex
	users     map[string]*models.User
	byEmail   map[string]string
	posts     []*models.Post
	likes     map[string]map[string]bool
	marks     map[string]map[string]models.Highlight
	comments  map[string][]models.Comment
	exams     map[string]models.Exam
	subjects  []models.Subject
	failures  map[string]Failure
	blockers  map[string]chan struct{}
	requests  map[string]int
	uploads   int
	onboarded []models.OnboardingDraft
}

// NewBackend starts a fake backend. Close it with b.Server.Close.
func NewBackend() *Backend {
	b := &Backend{
		users:    make(map[string]*models.User),
		byEmail:  make(map[string]string),
		likes:    make(map[string]map[string]bool),
		marks:    make(map[string]map[string]models.Highlight),
		comments: make(map[string][]models.Comment),
		exams:    make(map[string]models.Exam),
		subjects: []models.Subject{NewSubject(), NewSubject()},
		failures: make(map[string]Failure),
		blockers: make(map[string]chan struct{}),
		requests: make(map[string]int),
	}
	b.Server = httptest.NewServer(b.routes())
	return b
}

// URL is the API base URL.
func (b *Backend) URL() string {
	return b.Server.URL
}

// Close stops the server.
func (b *Backend) Close() {
	b.Server.Close()
}

// AddUser seeds an account and returns a valid token for it.
func (b *Backend) AddUser(u models.User) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.users[u.ID] = &u
	b.byEmail[strings.ToLower(u.Email)] = u.ID
	return Token(u.ID, time.Hour)
}

// AddPost seeds a post.
func (b *Backend) AddPost(p models.Post) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.posts = append([]*models.Post{&p}, b.posts...)
}

// AddComment seeds a comment.
func (b *Backend) AddComment(c models.Comment) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.comments[c.PostID] = append(b.comments[c.PostID], c)
}

// Fail makes every request to "METHOD /path" answer f until cleared with Recover.
func (b *Backend) Fail(route string, f Failure) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[route] = f
}

// Recover clears a failure set with Fail.
func (b *Backend) Recover(route string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.failures, route)
}

// Block holds requests to route until the returned function is called.
func (b *Backend) Block(route string) (release func()) {
	ch := make(chan struct{})
	b.mu.Lock()
	b.blockers[route] = ch
	b.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.blockers, route)
			b.mu.Unlock()
			close(ch)
		})
	}
}

// Requests counts requests made to "METHOD /path".
func (b *Backend) Requests(route string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.requests[route]
}

// Uploads counts accepted uploads.
func (b *Backend) Uploads() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.uploads
}

// Onboarded returns the drafts submitted to /onboarding/complete.
func (b *Backend) Onboarded() []models.OnboardingDraft {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.onboarded)
}

// Liked reports whether userID likes postID in backend state.
func (b *Backend) Liked(postID, userID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.likes[postID][userID]
}

// Token signs a JWT for userID that expires after ttl (negative for expired).
func Token(userID string, ttl time.Duration) string {
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(signingKey)
	if err != nil {
		panic(err)
	}
	return tok
}

type handler func(w http.ResponseWriter, r *http.Request, me *models.User)

func (b *Backend) routes() http.Handler {
	mux := http.NewServeMux()
	public := map[string]bool{"POST /auth/login": true, "POST /auth/register": true}

	handle := func(pattern string, h handler) {
		mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
			route := r.Method + " " + r.URL.Path
			b.mu.Lock()
			b.requests[route]++
			failure, failing := b.failures[route]
			blocker := b.blockers[route]
			b.mu.Unlock()

			if blocker != nil {
				select {
				case <-blocker:
				case <-r.Context().Done():
					return
				}
			}
			if failing {
				writeError(w, failure.Status, failure.Message)
				return
			}

			var me *models.User
			if !public[pattern] {
				me = b.authenticate(r)
				if me == nil {
					writeError(w, http.StatusUnauthorized, "Token inválido o expirado")
					return
				}
			}
			h(w, r, me)
		})
	}

	handle("POST /auth/login", b.login)
	handle("POST /auth/register", b.register)
	handle("GET /auth/me", func(w http.ResponseWriter, _ *http.Request, me *models.User) { writeJSON(w, http.StatusOK, me) })
	handle("GET /posts", b.feed)
	handle("POST /posts", b.createPost)
	handle("GET /posts/{id}", b.getPost)
	handle("DELETE /posts/{id}", b.deletePost)
	handle("GET /users/{id}/posts", b.postsByUser)
	handle("POST /posts/{id}/like", b.setLike(true))
	handle("DELETE /posts/{id}/like", b.setLike(false))
	handle("POST /posts/{id}/highlight", b.setHighlight(true))
	handle("DELETE /posts/{id}/highlight", b.setHighlight(false))
	// One pattern for every two-segment read under /posts: ServeMux would
	// reject /posts/hashtag/{tag} beside /posts/{id}/comments as ambiguous.
	handle("GET /posts/{id}/{rest}", b.postReads)
	handle("POST /posts/{id}/comments", b.createComment)
	handle("DELETE /comments/{id}", b.deleteComment)
	handle("GET /exams", b.listExams)
	handle("POST /exams", b.createExam)
	handle("GET /exams/{id}", b.getExam)
	handle("DELETE /exams/{id}", b.deleteExam)
	handle("GET /users/{id}", b.getUser)
	handle("PUT /users/profile", b.updateProfile)
	handle("POST /upload/{kind}", b.upload)
	handle("DELETE /upload/{id}", func(w http.ResponseWriter, _ *http.Request, _ *models.User) { w.WriteHeader(http.StatusNoContent) })
	handle("GET /subjects", func(w http.ResponseWriter, _ *http.Request, _ *models.User) {
		b.mu.Lock()
		defer b.mu.Unlock()
		writeJSON(w, http.StatusOK, b.subjects)
	})
	handle("POST /onboarding/complete", b.completeOnboarding)
	return mux
}

func (b *Backend) authenticate(r *http.Request) *models.User {
	raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return nil
	}
	claims := &jwt.RegisteredClaims{}
	if _, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) { return signingKey, nil }); err != nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.users[claims.Subject]
}

func (b *Backend) login(w http.ResponseWriter, r *http.Request, _ *models.User) {
	var in struct{ Email, Password string }
	_ = json.NewDecoder(r.Body).Decode(&in)
	b.mu.Lock()
	id, ok := b.byEmail[strings.ToLower(in.Email)]
	u := b.users[id]
	b.mu.Unlock()
	if !ok || in.Password != Password {
		writeError(w, http.StatusUnauthorized, "Credenciales inválidas")
		return
	}
	writeJSON(w, http.StatusOK, models.AuthResponse{Token: Token(id, time.Hour), User: *u})
}

func (b *Backend) register(w http.ResponseWriter, r *http.Request, _ *models.User) {
	var in struct{ Name, Email, Password string }
	_ = json.NewDecoder(r.Body).Decode(&in)
	b.mu.Lock()
	_, taken := b.byEmail[strings.ToLower(in.Email)]
	b.mu.Unlock()
	if taken {
		writeError(w, http.StatusConflict, "El correo ya está registrado")
		return
	}
	u := models.User{ID: gofakeit.UUID(), Name: in.Name, Email: in.Email, Role: models.RoleStudent}
	tok := b.AddUser(u)
	writeJSON(w, http.StatusCreated, models.AuthResponse{Token: tok, User: u})
}

func (b *Backend) view(p *models.Post, me *models.User) models.Post {
	out := *p
	out.LikesCount = len(b.likes[p.ID])
	out.HighlightsCount = len(b.marks[p.ID])
	out.CommentsCount = len(b.comments[p.ID])
	out.HasLiked = b.likes[p.ID][me.ID]
	_, out.HasHighlighted = b.marks[p.ID][me.ID]
	return out
}

func (b *Backend) views(me *models.User, keep func(*models.Post) bool) []models.Post {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := []models.Post{}
	for _, p := range b.posts {
		if keep(p) {
			out = append(out, b.view(p, me))
		}
	}
	return out
}

const pageSize = 10

func (b *Backend) feed(w http.ResponseWriter, r *http.Request, me *models.User) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	all := b.views(me, func(*models.Post) bool { return true })
	start := min((page-1)*pageSize, len(all))
	end := min(start+pageSize, len(all))
	writeJSON(w, http.StatusOK, models.FeedPage{Posts: all[start:end], Page: page, HasMore: end < len(all)})
}

func (b *Backend) findPost(id string) (*models.Post, int) {
	for i, p := range b.posts {
		if p.ID == id {
			return p, i
		}
	}
	return nil, -1
}

func (b *Backend) getPost(w http.ResponseWriter, r *http.Request, me *models.User) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, _ := b.findPost(r.PathValue("id"))
	if p == nil {
		writeError(w, http.StatusNotFound, "Publicación no encontrada")
		return
	}
	writeJSON(w, http.StatusOK, b.view(p, me))
}

func (b *Backend) createPost(w http.ResponseWriter, r *http.Request, me *models.User) {
	var in struct {
		Content    string             `json:"content"`
		Type       models.PostType    `json:"type"`
		Hashtags   []string           `json:"hashtags"`
		Attachment *models.Attachment `json:"attachment"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "JSON inválido")
		return
	}
	p := models.Post{
		ID:         gofakeit.UUID(),
		Author:     me.Summary(),
		Content:    in.Content,
		Type:       in.Type,
		Hashtags:   in.Hashtags,
		Attachment: in.Attachment,
		CreatedAt:  time.Now().UTC(),
	}
	b.AddPost(p)
	writeJSON(w, http.StatusCreated, p)
}

func (b *Backend) deletePost(w http.ResponseWriter, r *http.Request, me *models.User) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, i := b.findPost(r.PathValue("id"))
	switch {
	case p == nil:
		writeError(w, http.StatusNotFound, "Publicación no encontrada")
	case p.Author.ID != me.ID:
		writeError(w, http.StatusForbidden, "Solo el autor puede eliminar la publicación")
	default:
		b.posts = slices.Delete(b.posts, i, i+1)
		w.WriteHeader(http.StatusNoContent)
	}
}

func (b *Backend) postReads(w http.ResponseWriter, r *http.Request, me *models.User) {
	switch {
	case r.PathValue("id") == "hashtag":
		r.SetPathValue("tag", r.PathValue("rest"))
		b.postsByHashtag(w, r, me)
	case r.PathValue("rest") == "highlights":
		b.highlights(w, r, me)
	case r.PathValue("rest") == "comments":
		b.listComments(w, r, me)
	default:
		writeError(w, http.StatusNotFound, "Ruta no encontrada")
	}
}

func (b *Backend) postsByHashtag(w http.ResponseWriter, r *http.Request, me *models.User) {
	tag := strings.ToLower(r.PathValue("tag"))
	writeJSON(w, http.StatusOK, b.views(me, func(p *models.Post) bool {
		return slices.ContainsFunc(p.Hashtags, func(h string) bool { return strings.ToLower(h) == tag })
	}))
}

func (b *Backend) postsByUser(w http.ResponseWriter, r *http.Request, me *models.User) {
	id := r.PathValue("id")
	writeJSON(w, http.StatusOK, b.views(me, func(p *models.Post) bool { return p.Author.ID == id }))
}

func (b *Backend) setLike(on bool) handler {
	return func(w http.ResponseWriter, r *http.Request, me *models.User) {
		b.mu.Lock()
		defer b.mu.Unlock()
		id := r.PathValue("id")
		if p, _ := b.findPost(id); p == nil {
			writeError(w, http.StatusNotFound, "Publicación no encontrada")
			return
		}
		if b.likes[id] == nil {
			b.likes[id] = make(map[string]bool)
		}
		if on == b.likes[id][me.ID] {
			writeError(w, http.StatusConflict, "Estado de me gusta inconsistente")
			return
		}
		if on {
			b.likes[id][me.ID] = true
		} else {
			delete(b.likes[id], me.ID)
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (b *Backend) setHighlight(on bool) handler {
	return func(w http.ResponseWriter, r *http.Request, me *models.User) {
		var in struct {
			Comment string `json:"comment"`
		}
		_ = json.NewDecoder(r.Body).Decode(&in)
		b.mu.Lock()
		defer b.mu.Unlock()
		id := r.PathValue("id")
		p, _ := b.findPost(id)
		switch {
		case p == nil:
			writeError(w, http.StatusNotFound, "Publicación no encontrada")
			return
		case me.Role != models.RoleTeacher || p.Author.ID == me.ID:
			writeError(w, http.StatusForbidden, "Solo los docentes pueden destacar publicaciones de otros")
			return
		}
		if b.marks[id] == nil {
			b.marks[id] = make(map[string]models.Highlight)
		}
		if on {
			b.marks[id][me.ID] = models.Highlight{PostID: id, TeacherID: me.ID, Teacher: me.Summary(), Comment: in.Comment, CreatedAt: time.Now().UTC()}
		} else {
			delete(b.marks[id], me.ID)
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (b *Backend) highlights(w http.ResponseWriter, r *http.Request, _ *models.User) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := []models.Highlight{}
	for _, h := range b.marks[r.PathValue("id")] {
		out = append(out, h)
	}
	writeJSON(w, http.StatusOK, out)
}

func (b *Backend) listComments(w http.ResponseWriter, r *http.Request, _ *models.User) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := append([]models.Comment{}, b.comments[r.PathValue("id")]...)
	writeJSON(w, http.StatusOK, out)
}

func (b *Backend) createComment(w http.ResponseWriter, r *http.Request, me *models.User) {
	var in struct {
		Content string `json:"content"`
	}
	_ = json.NewDecoder(r.Body).Decode(&in)
	c := models.Comment{ID: gofakeit.UUID(), PostID: r.PathValue("id"), Author: me.Summary(), Content: in.Content, CreatedAt: time.Now().UTC()}
	b.AddComment(c)
	writeJSON(w, http.StatusCreated, c)
}

func (b *Backend) deleteComment(w http.ResponseWriter, r *http.Request, me *models.User) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := r.PathValue("id")
	for postID, list := range b.comments {
		for i, c := range list {
			if c.ID != id {
				continue
			}
			if c.Author.ID != me.ID {
				writeError(w, http.StatusForbidden, "Solo el autor puede eliminar el comentario")
				return
			}
			b.comments[postID] = slices.Delete(list, i, i+1)
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	writeError(w, http.StatusNotFound, "Comentario no encontrado")
}

func (b *Backend) listExams(w http.ResponseWriter, _ *http.Request, me *models.User) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := []models.Exam{}
	for _, e := range b.exams {
		if e.Owner == me.ID {
			out = append(out, e)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (b *Backend) createExam(w http.ResponseWriter, r *http.Request, me *models.User) {
	var in struct {
		SubjectID   string              `json:"subjectId"`
		Title       string              `json:"title"`
		Date        time.Time           `json:"date"`
		Status      models.ExamStatus   `json:"status"`
		Attachments []models.Attachment `json:"attachments"`
	}
	_ = json.NewDecoder(r.Body).Decode(&in)
	if in.Status == "" {
		in.Status = models.ExamScheduled
	}
	e := models.Exam{ID: gofakeit.UUID(), Owner: me.ID, Subject: models.Subject{ID: in.SubjectID}, Title: in.Title, Date: in.Date, Status: in.Status, Attachments: in.Attachments}
	b.mu.Lock()
	b.exams[e.ID] = e
	b.mu.Unlock()
	writeJSON(w, http.StatusCreated, e)
}

func (b *Backend) getExam(w http.ResponseWriter, r *http.Request, _ *models.User) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.exams[r.PathValue("id")]
	if !ok {
		writeError(w, http.StatusNotFound, "Examen no encontrado")
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (b *Backend) deleteExam(w http.ResponseWriter, r *http.Request, _ *models.User) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.exams, r.PathValue("id"))
	w.WriteHeader(http.StatusNoContent)
}

func (b *Backend) getUser(w http.ResponseWriter, r *http.Request, _ *models.User) {
	b.mu.Lock()
	defer b.mu.Unlock()
	u, ok := b.users[r.PathValue("id")]
	if !ok {
		writeError(w, http.StatusNotFound, "Usuario no encontrado")
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (b *Backend) updateProfile(w http.ResponseWriter, r *http.Request, me *models.User) {
	var in struct {
		Name string `json:"name"`
		Bio  string `json:"bio"`
	}
	_ = json.NewDecoder(r.Body).Decode(&in)
	b.mu.Lock()
	defer b.mu.Unlock()
	u := b.users[me.ID]
	u.Name, u.Bio = in.Name, in.Bio
	writeJSON(w, http.StatusOK, u)
}

func (b *Backend) upload(w http.ResponseWriter, r *http.Request, _ *models.User) {
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Archivo requerido")
		return
	}
	defer file.Close()
	n, _ := io.Copy(io.Discard, file)
	b.mu.Lock()
	b.uploads++
	b.mu.Unlock()
	id := gofakeit.UUID()
	writeJSON(w, http.StatusCreated, models.UploadResult{
		URL:          fmt.Sprintf("https://cdn.trazio.test/%s/%s", r.PathValue("kind"), id),
		PublicID:     id,
		ResourceType: r.PathValue("kind"),
		Bytes:        n,
		OriginalName: header.Filename,
	})
}

func (b *Backend) completeOnboarding(w http.ResponseWriter, r *http.Request, me *models.User) {
	var d models.OnboardingDraft
	_ = json.NewDecoder(r.Body).Decode(&d)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onboarded = append(b.onboarded, d)
	u := b.users[me.ID]
	u.Role = d.Role
	u.Name = strings.TrimSpace(d.FirstName + " " + d.LastName)
	u.Username = d.Username
	u.ProfileCompleted = true
	writeJSON(w, http.StatusOK, u)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}
