package model

// Repository is the repository resource returned by the API
type Repository struct {
	Slug        string `json:"slug"`
	Name        string `json:"name"`
	Owner       string `json:"owner"`
	SCM         string `json:"scm"`
	Description string `json:"description"`
	Language    string `json:"language"`
	Website     string `json:"website"`
	IsPrivate   bool   `json:"is_private"`
	IsFork      bool   `json:"is_fork"`
	HasIssues   bool   `json:"has_issues"`
	HasWiki     bool   `json:"has_wiki"`
	Size        int64  `json:"size"`
	CreatedOn   string `json:"created_on"`
	LastUpdated string `json:"last_updated"`
}

// CreateRepository holds the form fields of a create request
type CreateRepository struct {
	Name    string
	SCM     string // defaults to "git"
	Private bool
	Extra   map[string]string
}

// UserRepositories is the body of the user endpoint
type UserRepositories struct {
	Repositories []*Repository `json:"repositories"`
}

// Credentials authenticate API calls with basic auth
type Credentials struct {
	Username string
	Password string `masq:"secret"`
}

// IsZero reports whether no credentials were configured
func (c Credentials) IsZero() bool {
	return c.Username == "" && c.Password == ""
}
