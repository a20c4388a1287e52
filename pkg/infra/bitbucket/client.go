package bitbucket

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/DevTable/BitBucket-api/pkg/domain/model"
	"github.com/DevTable/BitBucket-api/pkg/domain/types"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
)

// maxErrorBody bounds how much of a failed response is kept in APIError
const maxErrorBody = 4 * 1024

// Client talks to the Bitbucket REST API with static basic credentials
type Client struct {
	httpClient *http.Client
	urls       *urlTable
	creds      model.Credentials
	repoSlug   string
	ref        string
}

type config struct {
	baseURL    string
	repoSlug   string
	ref        string
	timeout    time.Duration
	httpClient *http.Client
}

// Option is a functional option for Client configuration
type Option func(*config)

// WithBaseURL points the client at another API root, e.g. a test server
func WithBaseURL(baseURL string) Option {
	return func(c *config) {
		c.baseURL = baseURL
	}
}

// WithRepoSlug sets the slug used when an operation is given an empty one
func WithRepoSlug(slug string) Option {
	return func(c *config) {
		c.repoSlug = slug
	}
}

// WithRef sets the branch or revision archived
func WithRef(ref string) Option {
	return func(c *config) {
		c.ref = ref
	}
}

// WithTimeout sets the per-request timeout. Zero keeps the transport default.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// WithHTTPClient replaces the underlying HTTP client. Its redirect policy is
// overridden so that redirects are never followed.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *config) {
		c.httpClient = hc
	}
}

// NewClient creates a new Bitbucket client
func NewClient(creds model.Credentials, opts ...Option) *Client {
	cfg := &config{
		baseURL: DefaultBaseURL,
		ref:     types.DefaultRef,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	hc := &http.Client{}
	if cfg.httpClient != nil {
		copied := *cfg.httpClient
		hc = &copied
	}
	if cfg.timeout > 0 {
		hc.Timeout = cfg.timeout
	}
	hc.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	return &Client{
		httpClient: hc,
		urls:       newURLTable(cfg.baseURL),
		creds:      creds,
		repoSlug:   cfg.repoSlug,
		ref:        cfg.ref,
	}
}

func (c *Client) slug(repoSlug string) string {
	if repoSlug != "" {
		return repoSlug
	}
	return c.repoSlug
}

func (c *Client) repoURL(action, repoSlug string) (string, error) {
	return c.urls.URL(action, map[string]string{
		"username":  c.creds.Username,
		"repo_slug": c.slug(repoSlug),
	})
}

func (c *Client) archiveURL(repoSlug, format string) (string, error) {
	return c.urls.URL(ActionGetArchive, map[string]string{
		"username":  c.creds.Username,
		"repo_slug": c.slug(repoSlug),
		"format":    format,
		"ref":       c.ref,
	})
}

// GetTree lists the immediate files and subdirectories of dir
func (c *Client) GetTree(ctx context.Context, repoSlug, dir string) (*model.RemoteTreeNode, error) {
	base, err := c.archiveURL(repoSlug, FormatSource)
	if err != nil {
		return nil, err
	}
	dirURL := base + escapePath(strings.TrimLeft(dir, "/"))

	var raw json.RawMessage
	if err := c.dispatch(ctx, http.MethodGet, dirURL, nil, true, &raw); err != nil {
		return nil, err
	}

	if trimmed := bytes.TrimSpace(raw); len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, goerr.Wrap(model.ErrUnexpectedBody, "tree listing is not an object",
			goerr.V("url", dirURL),
		)
	}

	var node model.RemoteTreeNode
	if err := json.Unmarshal(raw, &node); err != nil {
		return nil, goerr.Wrap(model.ErrUnexpectedBody, "failed to decode tree listing",
			goerr.V("url", dirURL),
			goerr.V("cause", err.Error()),
		)
	}

	return &node, nil
}

// FetchRaw streams the raw content of filePath into dst
func (c *Client) FetchRaw(ctx context.Context, repoSlug, filePath string, dst io.Writer) error {
	base, err := c.archiveURL(repoSlug, FormatRaw)
	if err != nil {
		return err
	}
	return c.Fetch(ctx, base+escapePath(strings.TrimLeft(filePath, "/")), dst, nil)
}

// GetRepository returns a single repository
func (c *Client) GetRepository(ctx context.Context, repoSlug string) (*model.Repository, error) {
	u, err := c.repoURL(ActionGetRepo, repoSlug)
	if err != nil {
		return nil, err
	}

	var repo model.Repository
	if err := c.dispatch(ctx, http.MethodGet, u, nil, true, &repo); err != nil {
		return nil, err
	}
	return &repo, nil
}

// CreateRepository creates a repository on the authenticated account
func (c *Client) CreateRepository(ctx context.Context, req *model.CreateRepository) (*model.Repository, error) {
	u, err := c.urls.URL(ActionCreateRepo, nil)
	if err != nil {
		return nil, err
	}

	scm := req.SCM
	if scm == "" {
		scm = "git"
	}

	form := url.Values{}
	for k, v := range req.Extra {
		form.Set(k, v)
	}
	form.Set("name", req.Name)
	form.Set("scm", scm)
	form.Set("is_private", strconv.FormatBool(req.Private))

	var repo model.Repository
	if err := c.dispatch(ctx, http.MethodPost, u, form, true, &repo); err != nil {
		return nil, err
	}
	return &repo, nil
}

// UpdateRepository changes the given fields of a repository
func (c *Client) UpdateRepository(ctx context.Context, repoSlug string, fields map[string]string) (*model.Repository, error) {
	u, err := c.repoURL(ActionUpdateRepo, repoSlug)
	if err != nil {
		return nil, err
	}

	form := url.Values{}
	for k, v := range fields {
		form.Set(k, v)
	}

	var repo model.Repository
	if err := c.dispatch(ctx, http.MethodPut, u, form, true, &repo); err != nil {
		return nil, err
	}
	return &repo, nil
}

// DeleteRepository deletes a repository. There is no confirmation and no undo.
func (c *Client) DeleteRepository(ctx context.Context, repoSlug string) error {
	u, err := c.repoURL(ActionDeleteRepo, repoSlug)
	if err != nil {
		return err
	}
	return c.dispatch(ctx, http.MethodDelete, u, nil, true, nil)
}

// ListRepositories returns the repositories of username, or of the
// authenticated user when username is empty
func (c *Client) ListRepositories(ctx context.Context, username string, authenticated bool) ([]*model.Repository, error) {
	if username == "" {
		username = c.creds.Username
	}
	u, err := c.urls.URL(ActionGetUser, map[string]string{"username": username})
	if err != nil {
		return nil, err
	}

	var body model.UserRepositories
	if err := c.dispatch(ctx, http.MethodGet, u, nil, authenticated, &body); err != nil {
		return nil, err
	}
	return body.Repositories, nil
}

// dispatch sends a request and decodes a JSON response into out. out may be
// nil when the body is not needed.
func (c *Client) dispatch(ctx context.Context, method, rawURL string, form url.Values, authenticated bool, out any) error {
	logger := ctxlog.From(ctx)

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return goerr.Wrap(err, "failed to create request", goerr.V("method", method), goerr.V("url", rawURL))
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.Header.Set("Accept", "application/json")
	if authenticated {
		c.authorize(req)
	}

	logger.Debug("Dispatching request", "method", method, "url", rawURL)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return goerr.Wrap(err, "request failed", goerr.V("method", method), goerr.V("url", rawURL))
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return goerr.Wrap(&model.APIError{
			Method: method,
			URL:    rawURL,
			Status: resp.StatusCode,
			Body:   string(msg),
		}, "API returned an error",
			goerr.T(model.TagAPI),
			goerr.V("status", resp.StatusCode),
		)
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return goerr.Wrap(model.ErrUnexpectedBody, "failed to decode response",
			goerr.V("method", method),
			goerr.V("url", rawURL),
			goerr.V("cause", err.Error()),
		)
	}

	return nil
}

func (c *Client) authorize(req *http.Request) {
	if c.creds.IsZero() {
		return
	}
	req.SetBasicAuth(c.creds.Username, c.creds.Password)
}
