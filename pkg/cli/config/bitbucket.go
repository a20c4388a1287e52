package config

import (
	"log/slog"
	"os"
	"time"

	"github.com/DevTable/BitBucket-api/pkg/domain/model"
	"github.com/DevTable/BitBucket-api/pkg/domain/types"
	"github.com/DevTable/BitBucket-api/pkg/infra/bitbucket"
	"github.com/m-mizutani/goerr/v2"
	"github.com/pelletier/go-toml/v2"
	"github.com/urfave/cli/v3"
)

// Bitbucket holds API connection configuration
type Bitbucket struct {
	Username string
	Password string `masq:"secret"`
	RepoSlug string
	BaseURL  string
	Ref      string
	Timeout  time.Duration
	Profile  string
}

// Profile is the optional TOML file supplying defaults for unset flags
type Profile struct {
	Username string `toml:"username"`
	Password string `toml:"password" masq:"secret"`
	RepoSlug string `toml:"repo_slug"`
	BaseURL  string `toml:"base_url"`
	Ref      string `toml:"ref"`
}

// Flags returns CLI flags for Bitbucket configuration
func (c *Bitbucket) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "username",
			Aliases:     []string{"u"},
			Usage:       "Bitbucket username",
			Destination: &c.Username,
			Sources:     cli.EnvVars("BBREPO_USERNAME"),
		},
		&cli.StringFlag{
			Name:        "password",
			Usage:       "Bitbucket password or app password",
			Destination: &c.Password,
			Sources:     cli.EnvVars("BBREPO_PASSWORD"),
		},
		&cli.StringFlag{
			Name:        "repo",
			Aliases:     []string{"r"},
			Usage:       "Default repository slug",
			Destination: &c.RepoSlug,
			Sources:     cli.EnvVars("BBREPO_REPO"),
		},
		&cli.StringFlag{
			Name:        "base-url",
			Usage:       "API base URL",
			Destination: &c.BaseURL,
			Sources:     cli.EnvVars("BBREPO_BASE_URL"),
		},
		&cli.StringFlag{
			Name:        "ref",
			Usage:       "Branch or revision to archive",
			Destination: &c.Ref,
			Sources:     cli.EnvVars("BBREPO_REF"),
		},
		&cli.DurationFlag{
			Name:        "timeout",
			Usage:       "Per-request timeout, 0 for none",
			Destination: &c.Timeout,
			Sources:     cli.EnvVars("BBREPO_TIMEOUT"),
		},
		&cli.StringFlag{
			Name:        "profile",
			Usage:       "TOML profile with default connection settings",
			Destination: &c.Profile,
			Sources:     cli.EnvVars("BBREPO_PROFILE"),
		},
	}
}

// LoadProfile fills unset fields from the profile file, if one is configured
func (c *Bitbucket) LoadProfile() error {
	if c.Profile == "" {
		return nil
	}

	data, err := os.ReadFile(c.Profile)
	if err != nil {
		return goerr.Wrap(err, "failed to read profile", goerr.V("path", c.Profile))
	}

	var p Profile
	if err := toml.Unmarshal(data, &p); err != nil {
		return goerr.Wrap(err, "failed to parse profile", goerr.V("path", c.Profile))
	}

	fill := func(dst *string, v string) {
		if *dst == "" {
			*dst = v
		}
	}
	fill(&c.Username, p.Username)
	fill(&c.Password, p.Password)
	fill(&c.RepoSlug, p.RepoSlug)
	fill(&c.BaseURL, p.BaseURL)
	fill(&c.Ref, p.Ref)

	return nil
}

// Credentials returns the configured credentials
func (c *Bitbucket) Credentials() model.Credentials {
	return model.Credentials{Username: c.Username, Password: c.Password}
}

// NewClient loads the profile and builds an API client
func (c *Bitbucket) NewClient() (*bitbucket.Client, error) {
	if err := c.LoadProfile(); err != nil {
		return nil, err
	}
	if c.Username == "" {
		return nil, goerr.New("username is required (--username, BBREPO_USERNAME or profile)")
	}

	opts := []bitbucket.Option{
		bitbucket.WithRepoSlug(c.RepoSlug),
		bitbucket.WithTimeout(c.Timeout),
	}
	if c.BaseURL != "" {
		opts = append(opts, bitbucket.WithBaseURL(c.BaseURL))
	}
	if c.Ref != "" {
		opts = append(opts, bitbucket.WithRef(c.Ref))
	} else {
		c.Ref = types.DefaultRef
	}

	return bitbucket.NewClient(c.Credentials(), opts...), nil
}

// LogValue keeps the password out of logs
func (c Bitbucket) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("username", c.Username),
		slog.String("repo", c.RepoSlug),
		slog.String("base_url", c.BaseURL),
		slog.String("ref", c.Ref),
	)
}
