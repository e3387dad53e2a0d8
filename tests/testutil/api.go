package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	gosync "sync"
	"testing"
	"time"

	"github.com/nhle/bugtracker/internal/model"
)

// FakeAPI is an in-memory stand-in for the bug-tracking REST API.
type FakeAPI struct {
	Server *httptest.Server

	// FailUploads makes uploads of the named files answer 500.
	FailUploads map[string]bool

	// RegisterIssuesToken makes registration log the new user in.
	RegisterIssuesToken bool

	mu      gosync.Mutex
	users   map[string]fakeUser
	tokens  map[string]model.User
	bugs    []model.Bug
	nextID  int
	uploads int
}

type fakeUser struct {
	password string
	user     model.User
}

// NewFakeAPI starts a fake API and stops it when the test ends.
func NewFakeAPI(t *testing.T) *FakeAPI {
	t.Helper()

	f := &FakeAPI{
		FailUploads: make(map[string]bool),
		users:       make(map[string]fakeUser),
		tokens:      make(map[string]model.User),
		nextID:      1,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login", f.login)
	mux.HandleFunc("POST /api/users/register", f.register)
	mux.HandleFunc("GET /api/bugs", f.authed(f.listBugs))
	mux.HandleFunc("POST /api/bugs", f.authed(f.createBug))
	mux.HandleFunc("POST /api/bugs/upload", f.authed(f.upload))
	mux.HandleFunc("GET /api/bugs/{id}", f.authed(f.getBug))
	mux.HandleFunc("PATCH /api/bugs/{id}", f.authed(f.updateBug))
	mux.HandleFunc("PATCH /api/bugs/{id}/status", f.authed(f.updateStatus))

	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Server.Close)
	return f
}

// BaseURL is the API root, e.g. http://127.0.0.1:1234/api.
func (f *FakeAPI) BaseURL() string {
	return f.Server.URL + "/api"
}

// AddUser registers an account that can log in.
func (f *FakeAPI) AddUser(u model.User, password string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u.ID == "" {
		u.ID = strconv.Itoa(len(f.users) + 100)
	}
	f.users[u.Email] = fakeUser{password: password, user: u}
}

// AddBug seeds a bug and returns its id.
func (f *FakeAPI) AddBug(b model.Bug) model.BugID {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b.ID == "" {
		b.ID = model.BugID(strconv.Itoa(f.nextID))
		f.nextID++
	}
	f.bugs = append(f.bugs, b)
	return b.ID
}

// Bug returns the stored copy of a bug.
func (f *FakeAPI) Bug(id model.BugID) (model.Bug, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.indexOf(id)
	if i < 0 {
		return model.Bug{}, false
	}
	return f.bugs[i], true
}

// BugCount returns the number of stored bugs.
func (f *FakeAPI) BugCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.bugs)
}

// UploadCount returns how many upload requests reached the server.
func (f *FakeAPI) UploadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.uploads
}

func (f *FakeAPI) authed(next func(http.ResponseWriter, *http.Request, model.User)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		f.mu.Lock()
		user, ok := f.tokens[token]
		f.mu.Unlock()
		if token == "" || !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "Unauthorized"})
			return
		}
		next(w, r, user)
	}
}

func (f *FakeAPI) login(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": "invalid body"})
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	acct, ok := f.users[body.Email]
	if !ok || acct.password != body.Password {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "Invalid credentials"})
		return
	}

	token := fmt.Sprintf("token-%s-%d", acct.user.ID, len(f.tokens))
	f.tokens[token] = acct.user
	writeJSON(w, http.StatusOK, map[string]any{
		"data": map[string]any{"token": token, "user": acct.user},
	})
}

func (f *FakeAPI) register(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name     string     `json:"name"`
		Email    string     `json:"email"`
		Password string     `json:"password"`
		Role     model.Role `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": "invalid body"})
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, exists := f.users[body.Email]; exists {
		writeJSON(w, http.StatusConflict, map[string]any{"message": "Email already registered"})
		return
	}

	u := model.User{ID: strconv.Itoa(len(f.users) + 100), Name: body.Name, Email: body.Email, Role: body.Role}
	f.users[body.Email] = fakeUser{password: body.Password, user: u}

	data := map[string]any{"user": u}
	if f.RegisterIssuesToken {
		token := "token-reg-" + u.ID
		f.tokens[token] = u
		data["token"] = token
	}
	writeJSON(w, http.StatusCreated, map[string]any{"data": data})
}

func (f *FakeAPI) listBugs(w http.ResponseWriter, _ *http.Request, _ model.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"data": f.bugs})
}

func (f *FakeAPI) getBug(w http.ResponseWriter, r *http.Request, _ model.User) {
	f.mu.Lock()
	defer f.mu.Unlock()

	i := f.indexOf(model.BugID(r.PathValue("id")))
	if i < 0 {
		writeJSON(w, http.StatusNotFound, map[string]any{"message": "Bug not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": f.bugs[i]})
}

type bugBody struct {
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Status      model.Status `json:"status"`
	CreatedBy   string       `json:"created_by"`
	Screenshots []string     `json:"screenshots"`
}

func (f *FakeAPI) createBug(w http.ResponseWriter, r *http.Request, user model.User) {
	var body bugBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Title == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": "Title is required"})
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	b := model.Bug{
		ID:          model.BugID(strconv.Itoa(f.nextID)),
		Title:       body.Title,
		Description: body.Description,
		Status:      body.Status,
		CreatedBy:   body.CreatedBy,
		CreatorName: user.Name,
		CreatedAt:   time.Now().UTC().Truncate(time.Second),
	}
	for _, u := range body.Screenshots {
		b.Screenshots = append(b.Screenshots, model.Screenshot{URL: u})
	}
	f.nextID++
	f.bugs = append(f.bugs, b)

	writeJSON(w, http.StatusCreated, map[string]any{"data": map[string]any{"id": b.ID}})
}

func (f *FakeAPI) updateBug(w http.ResponseWriter, r *http.Request, _ model.User) {
	var body bugBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": "invalid body"})
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	i := f.indexOf(model.BugID(r.PathValue("id")))
	if i < 0 {
		writeJSON(w, http.StatusNotFound, map[string]any{"message": "Bug not found"})
		return
	}

	b := &f.bugs[i]
	b.Title = body.Title
	b.Description = body.Description
	b.Status = body.Status
	b.Screenshots = nil
	for _, u := range body.Screenshots {
		b.Screenshots = append(b.Screenshots, model.Screenshot{URL: u})
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": *b})
}

// updateStatus refuses reopening into in_progress straight from closed, so
// tests can observe a server-side rejection.
func (f *FakeAPI) updateStatus(w http.ResponseWriter, r *http.Request, _ model.User) {
	var body struct {
		Status model.Status `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": "invalid body"})
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	i := f.indexOf(model.BugID(r.PathValue("id")))
	if i < 0 {
		writeJSON(w, http.StatusNotFound, map[string]any{"message": "Bug not found"})
		return
	}
	if f.bugs[i].Status == model.StatusClosed && body.Status == model.StatusInProgress {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": "Invalid status transition"})
		return
	}

	f.bugs[i].Status = body.Status
	writeJSON(w, http.StatusOK, map[string]any{"data": f.bugs[i]})
}

func (f *FakeAPI) upload(w http.ResponseWriter, r *http.Request, _ model.User) {
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": "invalid form"})
		return
	}
	file, hdr, err := r.FormFile("screenshot")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": "screenshot is required"})
		return
	}
	file.Close()

	bugID := model.BugID(r.FormValue("bug_id"))

	f.mu.Lock()
	defer f.mu.Unlock()

	f.uploads++
	if f.FailUploads[hdr.Filename] {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"message": "storage unavailable"})
		return
	}
	i := f.indexOf(bugID)
	if i < 0 {
		writeJSON(w, http.StatusNotFound, map[string]any{"message": "Bug not found"})
		return
	}

	url := fmt.Sprintf("https://cdn.example.com/bugs/%s/%s", bugID, hdr.Filename)
	f.bugs[i].Screenshots = append(f.bugs[i].Screenshots, model.Screenshot{URL: url})
	writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{"url": url}})
}

func (f *FakeAPI) indexOf(id model.BugID) int {
	for i, b := range f.bugs {
		if b.ID == id {
			return i
		}
	}
	return -1
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
