package bitbucket

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/DevTable/BitBucket-api/pkg/domain/model"
	"github.com/m-mizutani/goerr/v2"
)

// DefaultBaseURL is the root of the 1.0 REST API
const DefaultBaseURL = "https://api.bitbucket.org/1.0/"

// URL actions
const (
	ActionCreateRepo = "CREATE_REPO"
	ActionGetRepo    = "GET_REPO"
	ActionUpdateRepo = "UPDATE_REPO"
	ActionDeleteRepo = "DELETE_REPO"
	ActionGetArchive = "GET_ARCHIVE"
	ActionGetUser    = "GET_USER"
)

// Archive formats of the GET_ARCHIVE action
const (
	FormatSource = "src"
	FormatRaw    = "raw"
)

var defaultTemplates = map[string]string{
	ActionCreateRepo: "repositories/",
	ActionGetRepo:    "repositories/{username}/{repo_slug}/",
	ActionUpdateRepo: "repositories/{username}/{repo_slug}/",
	ActionDeleteRepo: "repositories/{username}/{repo_slug}/",
	ActionGetArchive: "repositories/{username}/{repo_slug}/{format}/{ref}/",
	ActionGetUser:    "users/{username}/",
}

var paramPattern = regexp.MustCompile(`\{([a-z_]+)\}`)

// urlTable resolves actions to absolute URLs. It is built once per client
// and never modified afterwards.
type urlTable struct {
	base      string
	templates map[string]string
}

func newURLTable(base string) *urlTable {
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}

	templates := make(map[string]string, len(defaultTemplates))
	for action, tmpl := range defaultTemplates {
		templates[action] = tmpl
	}

	return &urlTable{base: base, templates: templates}
}

// URL returns the absolute URL of action with params substituted. Parameter
// values are path-escaped.
func (t *urlTable) URL(action string, params map[string]string) (string, error) {
	tmpl, ok := t.templates[action]
	if !ok {
		return "", goerr.Wrap(model.ErrUnknownAction, "cannot build URL", goerr.V("action", action))
	}

	var missing []string
	path := paramPattern.ReplaceAllStringFunc(tmpl, func(m string) string {
		name := m[1 : len(m)-1]
		v, ok := params[name]
		if !ok || v == "" {
			missing = append(missing, name)
			return m
		}
		return url.PathEscape(v)
	})
	if len(missing) > 0 {
		return "", goerr.Wrap(model.ErrMissingParameter, "cannot build URL",
			goerr.V("action", action),
			goerr.V("missing", missing),
		)
	}

	return t.base + path, nil
}

// escapePath escapes every segment of a slash separated repository path
func escapePath(p string) string {
	segments := strings.Split(p, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}
