package model

import (
	"errors"
	"fmt"

	"github.com/m-mizutani/goerr/v2"
)

var (
	ErrTreeListing        = errors.New("failed to list remote directory")
	ErrTraversalLimit     = errors.New("remote tree exceeds traversal limit")
	ErrUnsupportedFormat  = errors.New("unsupported archive format")
	ErrUnexpectedBody     = errors.New("unexpected response body")
	ErrUnknownAction      = errors.New("unknown URL action")
	ErrMissingParameter   = errors.New("missing URL parameter")
	ErrStoreNotConfigured = errors.New("archive store is not configured")
)

// TagAPI marks errors originating from a remote API response
var TagAPI = goerr.NewTag("api")

// APIError is a non-2xx response from the dispatcher
type APIError struct {
	Method string
	URL    string
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s %s returned %d", e.Method, e.URL, e.Status)
}

// PartialArchiveError is returned instead of removing an incomplete archive
// when the builder is configured to keep it. Path belongs to the caller.
type PartialArchiveError struct {
	Path string
	Err  error
}

func (e *PartialArchiveError) Error() string {
	return fmt.Sprintf("archive left incomplete at %s: %v", e.Path, e.Err)
}

func (e *PartialArchiveError) Unwrap() error { return e.Err }
