package bitbucket_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/DevTable/BitBucket-api/pkg/domain/model"
	"github.com/DevTable/BitBucket-api/pkg/infra/bitbucket"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
)

type recordedRequest struct {
	Method string
	Path   string
	Form   map[string]string
	Authed bool
}

type requestLog struct {
	mu       sync.Mutex
	requests []recordedRequest
}

func (l *requestLog) add(req recordedRequest) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.requests = append(l.requests, req)
}

func (l *requestLog) all() []recordedRequest {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]recordedRequest(nil), l.requests...)
}

func (l *requestLog) last() recordedRequest {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.requests[len(l.requests)-1]
}

// newFakeAPI serves routes keyed by "METHOD /path" below /1.0/
func newFakeAPI(t *testing.T, routes map[string]func(w http.ResponseWriter, r *http.Request)) (*httptest.Server, *requestLog) {
	t.Helper()
	log := &requestLog{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		form := make(map[string]string)
		for k := range r.PostForm {
			form[k] = r.PostForm.Get(k)
		}
		_, _, authed := r.BasicAuth()
		log.add(recordedRequest{
			Method: r.Method,
			Path:   r.URL.EscapedPath(),
			Form:   form,
			Authed: authed,
		})

		handler, ok := routes[r.Method+" "+r.URL.EscapedPath()]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		handler(w, r)
	}))
	t.Cleanup(server.Close)

	return server, log
}

func writeJSON(body any) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(body)
	}
}

func newTestClient(server *httptest.Server) *bitbucket.Client {
	return bitbucket.NewClient(
		model.Credentials{Username: "alice", Password: "secret"},
		bitbucket.WithBaseURL(server.URL+"/1.0"),
		bitbucket.WithRepoSlug("default-repo"),
	)
}

func TestClient_GetTree(t *testing.T) {
	server, requests := newFakeAPI(t, map[string]func(http.ResponseWriter, *http.Request){
		"GET /1.0/repositories/alice/proj/src/master/": writeJSON(map[string]any{
			"node":        "abc",
			"path":        "/",
			"directories": []string{"sub"},
			"files":       []map[string]any{{"path": "a.txt", "size": 3}},
		}),
		"GET /1.0/repositories/alice/proj/src/master/sub/my%20dir": writeJSON(map[string]any{
			"directories": []string{},
			"files":       []map[string]any{{"path": "sub/my dir/b.txt"}},
		}),
	})
	client := newTestClient(server)
	ctx := context.Background()

	t.Run("root", func(t *testing.T) {
		node, err := client.GetTree(ctx, "proj", "/")
		gt.NoError(t, err).Required()
		gt.V(t, node.Directories).Equal([]string{"sub"})
		gt.A(t, node.Files).Length(1)
		gt.S(t, node.Files[0].Path).Equal("a.txt")
		gt.N(t, node.Files[0].Size).Equal(int64(3))
	})

	t.Run("nested directory is path escaped", func(t *testing.T) {
		node, err := client.GetTree(ctx, "proj", "sub/my dir")
		gt.NoError(t, err).Required()
		gt.S(t, node.Files[0].Path).Equal("sub/my dir/b.txt")
	})

	for _, req := range requests.all() {
		gt.B(t, req.Authed).True()
	}
}

func TestClient_GetTree_UnexpectedBody(t *testing.T) {
	server, _ := newFakeAPI(t, map[string]func(http.ResponseWriter, *http.Request){
		"GET /1.0/repositories/alice/proj/src/master/": writeJSON([]string{"not", "a", "mapping"}),
		"GET /1.0/repositories/alice/proj/src/master/html": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("<html>login</html>"))
		},
	})
	client := newTestClient(server)

	_, err := client.GetTree(context.Background(), "proj", "")
	gt.B(t, errors.Is(err, model.ErrUnexpectedBody)).True()

	_, err = client.GetTree(context.Background(), "proj", "html")
	gt.B(t, errors.Is(err, model.ErrUnexpectedBody)).True()
}

func TestClient_APIError(t *testing.T) {
	server, _ := newFakeAPI(t, map[string]func(http.ResponseWriter, *http.Request){
		"GET /1.0/repositories/alice/missing/": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte("Repository not found"))
		},
	})
	client := newTestClient(server)

	_, err := client.GetRepository(context.Background(), "missing")
	gt.Error(t, err)

	var apiErr *model.APIError
	gt.B(t, errors.As(err, &apiErr)).True()
	gt.N(t, apiErr.Status).Equal(http.StatusNotFound)
	gt.S(t, apiErr.Body).Equal("Repository not found")
	gt.B(t, goerr.HasTag(err, model.TagAPI)).True()
}

func TestClient_FetchRaw(t *testing.T) {
	server, _ := newFakeAPI(t, map[string]func(http.ResponseWriter, *http.Request){
		"GET /1.0/repositories/alice/default-repo/raw/master/docs/read%20me.md": func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, "# hello")
		},
	})
	client := newTestClient(server)

	var dst bytes.Buffer
	gt.NoError(t, client.FetchRaw(context.Background(), "", "docs/read me.md", &dst))
	gt.S(t, dst.String()).Equal("# hello")
}

func TestClient_RepositoryCRUD(t *testing.T) {
	repo := map[string]any{"slug": "proj", "name": "proj", "owner": "alice", "scm": "git", "is_private": true}
	server, requests := newFakeAPI(t, map[string]func(http.ResponseWriter, *http.Request){
		"GET /1.0/repositories/alice/proj/":    writeJSON(repo),
		"POST /1.0/repositories/":              writeJSON(repo),
		"PUT /1.0/repositories/alice/proj/":    writeJSON(repo),
		"DELETE /1.0/repositories/alice/proj/": func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) },
		"GET /1.0/users/alice/":                writeJSON(map[string]any{"repositories": []any{repo}}),
		"GET /1.0/users/bob/":                  writeJSON(map[string]any{"repositories": []any{}}),
	})
	client := newTestClient(server)
	ctx := context.Background()

	t.Run("get", func(t *testing.T) {
		got, err := client.GetRepository(ctx, "proj")
		gt.NoError(t, err).Required()
		gt.S(t, got.Slug).Equal("proj")
		gt.B(t, got.IsPrivate).True()
	})

	t.Run("create sends form defaults", func(t *testing.T) {
		_, err := client.CreateRepository(ctx, &model.CreateRepository{
			Name:    "proj",
			Private: true,
			Extra:   map[string]string{"description": "demo"},
		})
		gt.NoError(t, err).Required()

		last := requests.last()
		gt.S(t, last.Method).Equal(http.MethodPost)
		gt.V(t, last.Form).Equal(map[string]string{
			"name":        "proj",
			"scm":         "git",
			"is_private":  "true",
			"description": "demo",
		})
	})

	t.Run("update", func(t *testing.T) {
		_, err := client.UpdateRepository(ctx, "proj", map[string]string{"description": "new"})
		gt.NoError(t, err).Required()

		last := requests.last()
		gt.S(t, last.Method).Equal(http.MethodPut)
		gt.S(t, last.Form["description"]).Equal("new")
	})

	t.Run("delete", func(t *testing.T) {
		gt.NoError(t, client.DeleteRepository(ctx, "proj"))
	})

	t.Run("list own repositories", func(t *testing.T) {
		repos, err := client.ListRepositories(ctx, "", true)
		gt.NoError(t, err).Required()
		gt.A(t, repos).Length(1)

		last := requests.last()
		gt.B(t, last.Authed).True()
	})

	t.Run("list public repositories without credentials", func(t *testing.T) {
		repos, err := client.ListRepositories(ctx, "bob", false)
		gt.NoError(t, err).Required()
		gt.A(t, repos).Length(0)

		last := requests.last()
		gt.B(t, last.Authed).False()
	})
}
