package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/DevTable/BitBucket-api/pkg/cli/config"
	"github.com/m-mizutani/gt"
)

func writeProfile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "profile.toml")
	gt.NoError(t, os.WriteFile(path, []byte(content), 0o600)).Required()
	return path
}

func TestBitbucket_LoadProfile(t *testing.T) {
	path := writeProfile(t, `
username = "alice"
password = "secret"
repo_slug = "proj"
base_url = "http://localhost:9999/1.0/"
ref = "develop"
`)

	t.Run("profile fills unset fields", func(t *testing.T) {
		cfg := &config.Bitbucket{Profile: path}
		gt.NoError(t, cfg.LoadProfile()).Required()

		gt.S(t, cfg.Username).Equal("alice")
		gt.S(t, cfg.Password).Equal("secret")
		gt.S(t, cfg.RepoSlug).Equal("proj")
		gt.S(t, cfg.BaseURL).Equal("http://localhost:9999/1.0/")
		gt.S(t, cfg.Ref).Equal("develop")
	})

	t.Run("flags win over profile", func(t *testing.T) {
		cfg := &config.Bitbucket{Profile: path, Username: "bob", RepoSlug: "other"}
		gt.NoError(t, cfg.LoadProfile()).Required()

		gt.S(t, cfg.Username).Equal("bob")
		gt.S(t, cfg.RepoSlug).Equal("other")
		gt.S(t, cfg.Password).Equal("secret")
	})

	t.Run("no profile", func(t *testing.T) {
		cfg := &config.Bitbucket{Username: "bob"}
		gt.NoError(t, cfg.LoadProfile())
		gt.S(t, cfg.Username).Equal("bob")
	})

	t.Run("broken profile", func(t *testing.T) {
		cfg := &config.Bitbucket{Profile: writeProfile(t, "username = ")}
		gt.Error(t, cfg.LoadProfile())
	})

	t.Run("missing profile", func(t *testing.T) {
		cfg := &config.Bitbucket{Profile: filepath.Join(t.TempDir(), "nope.toml")}
		gt.Error(t, cfg.LoadProfile())
	})
}

func TestBitbucket_NewClient(t *testing.T) {
	t.Run("username is required", func(t *testing.T) {
		cfg := &config.Bitbucket{}
		_, err := cfg.NewClient()
		gt.Error(t, err)
	})

	t.Run("builds client", func(t *testing.T) {
		cfg := &config.Bitbucket{Username: "alice", Password: "secret"}
		client, err := cfg.NewClient()
		gt.NoError(t, err).Required()
		gt.V(t, client).NotNil()
		gt.S(t, cfg.Ref).Equal("master")
	})
}
