package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/bugtracker/internal/model"
)

type staticToken struct {
	token atomic.Value
}

func newStaticToken(tok string) *staticToken {
	s := &staticToken{}
	s.token.Store(tok)
	return s
}

func (s *staticToken) Token() string {
	return s.token.Load().(string)
}

func newTestClient(t *testing.T, handler http.HandlerFunc, tokens TokenSource) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return New(server.URL+"/api/", tokens, WithHTTPClient(server.Client()))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestListBugsUnwrapsEnvelope(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/bugs", r.URL.Path)
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, map[string]any{
			"data": []map[string]any{
				{"id": 1, "title": "A", "status": "open", "created_at": "2024-03-05T10:00:00Z"},
				{"id": 2, "title": "B", "status": "closed", "created_at": "2024-03-04T10:00:00Z"},
			},
		})
	}, newStaticToken("tok-1"))

	bugs, err := client.ListBugs(context.Background())
	require.NoError(t, err)
	require.Len(t, bugs, 2)
	assert.Equal(t, model.BugID("1"), bugs[0].ID)
	assert.Equal(t, model.StatusClosed, bugs[1].Status)
}

func TestListBugsAcceptsBareArray(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []map[string]any{{"id": "x", "title": "A"}})
	}, newStaticToken("t"))

	bugs, err := client.ListBugs(context.Background())
	require.NoError(t, err)
	require.Len(t, bugs, 1)
	assert.Equal(t, model.BugID("x"), bugs[0].ID)
}

func TestListBugsEmptyData(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"data": nil})
	}, newStaticToken("t"))

	bugs, err := client.ListBugs(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, bugs)
	assert.Empty(t, bugs)
}

func TestTokenReadOnEveryRequest(t *testing.T) {
	var (
		mu   sync.Mutex
		seen []string
	)
	tokens := newStaticToken("first")
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen = append(seen, r.Header.Get("Authorization"))
		mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{"data": []any{}})
	}, tokens)

	_, err := client.ListBugs(context.Background())
	require.NoError(t, err)

	tokens.token.Store("second")
	_, err = client.ListBugs(context.Background())
	require.NoError(t, err)

	tokens.token.Store("")
	_, err = client.ListBugs(context.Background())
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"Bearer first", "Bearer second", ""}, seen)
}

func TestStatusErrorUsesServerMessage(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]any{"message": "Bug not found"})
	}, newStaticToken("t"))

	_, err := client.GetBug(context.Background(), "99")
	require.Error(t, err)

	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, KindStatus, apiErr.Kind)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, "Bug not found", err.Error())
	assert.Equal(t, "get bug", apiErr.Op)
}

func TestStatusErrorFallsBackPerOperation(t *testing.T) {
	tests := []struct {
		name string
		call func(c *Client) error
		want string
	}{
		{
			name: "list",
			call: func(c *Client) error { _, err := c.ListBugs(context.Background()); return err },
			want: "error loading bugs",
		},
		{
			name: "get",
			call: func(c *Client) error { _, err := c.GetBug(context.Background(), "1"); return err },
			want: "error loading bug",
		},
		{
			name: "create",
			call: func(c *Client) error {
				_, err := c.CreateBug(context.Background(), CreateBugRequest{Title: "t"})
				return err
			},
			want: "error creating bug",
		},
		{
			name: "update",
			call: func(c *Client) error {
				_, err := c.UpdateBug(context.Background(), "1", UpdateBugRequest{Title: "t", Status: model.StatusOpen})
				return err
			},
			want: "error updating bug",
		},
		{
			name: "status",
			call: func(c *Client) error {
				return c.UpdateBugStatus(context.Background(), "1", model.StatusClosed)
			},
			want: "error updating status",
		},
		{
			name: "upload",
			call: func(c *Client) error {
				_, err := c.UploadScreenshot(context.Background(), "1", File{Name: "a.png", MIMEType: "image/png", Data: []byte{1}})
				return err
			},
			want: "error uploading image",
		},
		{
			name: "login",
			call: func(c *Client) error {
				_, err := c.Login(context.Background(), LoginRequest{Email: "a@b.io", Password: "x"})
				return err
			},
			want: "login failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = io.WriteString(w, "<html>oops</html>")
			}, newStaticToken("t"))

			err := tt.call(client)
			require.Error(t, err)
			assert.Equal(t, tt.want, err.Error())
			assert.Equal(t, http.StatusInternalServerError, StatusCode(err))
		})
	}
}

func TestUnauthorized(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "Token invalid"})
	}, newStaticToken(""))

	_, err := client.ListBugs(context.Background())
	require.Error(t, err)
	assert.True(t, IsUnauthorized(err))
	assert.Equal(t, "Token invalid", Message(err))
}

func TestConnectionError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := New(url, newStaticToken("t"))
	_, err := client.ListBugs(context.Background())
	require.Error(t, err)
	assert.True(t, IsConnection(err))
	assert.Equal(t, "connection error", err.Error())
}

func TestCreateBugSendsDefaults(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/bugs", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Login broken", body["title"])
		assert.Equal(t, "open", body["status"])
		assert.Equal(t, "7", body["created_by"])
		assert.Equal(t, []any{}, body["screenshots"])

		writeJSON(w, http.StatusCreated, map[string]any{"data": map[string]any{"id": 31}})
	}, newStaticToken("t"))

	bug, err := client.CreateBug(context.Background(), CreateBugRequest{
		Title:     "  Login broken ",
		CreatedBy: "7",
	})
	require.NoError(t, err)
	assert.Equal(t, model.BugID("31"), bug.ID)
}

func TestCreateBugWithoutIDFails(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusCreated, map[string]any{"data": map[string]any{"title": "x"}})
	}, newStaticToken("t"))

	_, err := client.CreateBug(context.Background(), CreateBugRequest{Title: "x"})
	require.Error(t, err)
	assert.Equal(t, "no bug id received from server", err.Error())
}

func TestValidationPreventsRequest(t *testing.T) {
	var hits atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}, newStaticToken("t"))
	ctx := context.Background()

	_, err := client.CreateBug(ctx, CreateBugRequest{Title: "   "})
	require.Error(t, err)
	assert.True(t, IsValidation(err))
	assert.Equal(t, "title is required", err.Error())

	err = client.UpdateBugStatus(ctx, "1", model.Status("done"))
	assert.True(t, IsValidation(err))

	_, err = client.Login(ctx, LoginRequest{Email: "not-an-email", Password: "x"})
	assert.True(t, IsValidation(err))
	assert.Equal(t, "email must be a valid email address", err.Error())

	_, err = client.Register(ctx, RegisterRequest{Name: "A", Email: "a@b.io", Password: "p", Role: "root"})
	assert.True(t, IsValidation(err))
	assert.Equal(t, "role must be one of: tester, developer, admin", err.Error())

	_, err = client.UploadScreenshot(ctx, "1", File{Name: "empty.png"})
	assert.True(t, IsValidation(err))

	assert.Zero(t, hits.Load())
}

func TestUpdateBugStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/api/bugs/5/status", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]string{"status": "in_progress"}, body)

		writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{"id": 5, "status": "in_progress"}})
	}, newStaticToken("t"))

	require.NoError(t, client.UpdateBugStatus(context.Background(), "5", model.StatusInProgress))
}

func TestUpdateBugKeepsFields(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/api/bugs/5", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "reopened", body["status"])
		assert.Equal(t, []any{"https://cdn/x.png"}, body["screenshots"])

		w.WriteHeader(http.StatusNoContent)
	}, newStaticToken("t"))

	bug, err := client.UpdateBug(context.Background(), "5", UpdateBugRequest{
		Title:       "new title",
		Status:      model.StatusReopened,
		Screenshots: []string{"https://cdn/x.png"},
	})
	require.NoError(t, err)
	assert.Equal(t, model.BugID("5"), bug.ID)
}

func TestUploadScreenshotMultipart(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/bugs/upload", r.URL.Path)
		assert.Equal(t, "Bearer t", r.Header.Get("Authorization"))

		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "12", r.FormValue("bug_id"))

		f, hdr, err := r.FormFile("screenshot")
		require.NoError(t, err)
		defer f.Close()
		assert.Equal(t, "shot.png", hdr.Filename)
		assert.Equal(t, "image/png", hdr.Header.Get("Content-Type"))

		data, err := io.ReadAll(f)
		require.NoError(t, err)
		assert.Equal(t, []byte("pngdata"), data)

		writeJSON(w, http.StatusOK, map[string]any{"url": "https://cdn.example.com/shot.png"})
	}, newStaticToken("t"))

	url, err := client.UploadScreenshot(context.Background(), "12", File{
		Name:     "shot.png",
		MIMEType: "image/png",
		Data:     []byte("pngdata"),
	})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/shot.png", url)
}

func TestUploadScreenshotURLInsideData(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{"url": "https://cdn/y.png"}})
	}, newStaticToken("t"))

	url, err := client.UploadScreenshot(context.Background(), "1", File{Name: "y.png", MIMEType: "image/png", Data: []byte{1}})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn/y.png", url)
}

func TestLogin(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/auth/login", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))

		var body LoginRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "ana@example.com", body.Email)

		writeJSON(w, http.StatusOK, map[string]any{
			"data": map[string]any{
				"token": "jwt-abc",
				"user":  map[string]any{"id": 7, "name": "Ana", "email": "ana@example.com", "role": "tester"},
			},
		})
	}, newStaticToken("stale"))

	res, err := client.Login(context.Background(), LoginRequest{Email: " ana@example.com ", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "jwt-abc", res.Token)
	require.NotNil(t, res.User)
	assert.Equal(t, "7", res.User.ID)
}

func TestLoginWithoutTokenFails(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{"user": map[string]any{"id": 1}}})
	}, nil)

	_, err := client.Login(context.Background(), LoginRequest{Email: "a@b.io", Password: "x"})
	require.Error(t, err)
	assert.Equal(t, "no token received from server", err.Error())
}

func TestRegisterDefaultsRole(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/users/register", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "tester", body["role"])
		assert.Equal(t, "Ana", body["name"])

		writeJSON(w, http.StatusCreated, map[string]any{"data": map[string]any{"user": map[string]any{"id": 2}}})
	}, nil)

	res, err := client.Register(context.Background(), RegisterRequest{Name: "Ana", Email: "a@b.io", Password: "pw"})
	require.NoError(t, err)
	assert.Empty(t, res.Token)
	require.NotNil(t, res.User)
	assert.Equal(t, "2", res.User.ID)
}

func TestRegisterConflictMessage(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusConflict, map[string]any{"success": false, "error": "email already registered"})
	}, nil)

	_, err := client.Register(context.Background(), RegisterRequest{Name: "A", Email: "a@b.io", Password: "pw", Role: model.RoleAdmin})
	require.Error(t, err)
	assert.Equal(t, "email already registered", err.Error())
}

func TestPing(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/api/bugs":
			writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "Unauthorized"})
		default:
			http.NotFound(w, r)
		}
	}, newStaticToken("secret"))
	require.NoError(t, c.Ping(context.Background()))

	elsewhere := New(c.BaseURL()+"/v2", nil, WithHTTPClient(c.httpClient))
	err := elsewhere.Ping(context.Background())
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, StatusCode(err))
}
