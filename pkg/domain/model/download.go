package model

import (
	"fmt"
	"net/http"
)

// DownloadErrorKind classifies a failed raw file download by HTTP status class
type DownloadErrorKind int

const (
	DownloadUnknown DownloadErrorKind = iota
	DownloadUnauthorized
	DownloadNotFound
	DownloadServerError
)

func (k DownloadErrorKind) String() string {
	switch k {
	case DownloadUnauthorized:
		return "unauthorized"
	case DownloadNotFound:
		return "not_found"
	case DownloadServerError:
		return "server_error"
	default:
		return "unknown"
	}
}

// DownloadError is returned by the binary fetcher for any non-2xx outcome.
// Status is zero when the request failed before a response was received.
type DownloadError struct {
	Kind   DownloadErrorKind
	Status int
	URL    string
	Err    error // transport failure, if any
}

func (e *DownloadError) Unwrap() error { return e.Err }

func (e *DownloadError) Error() string {
	switch e.Kind {
	case DownloadUnauthorized:
		return "unauthorized access, please check your credentials"
	case DownloadNotFound:
		return "service not found"
	case DownloadServerError:
		return "server error"
	default:
		if e.Err != nil {
			return fmt.Sprintf("unknown status code: %d: %v", e.Status, e.Err)
		}
		return fmt.Sprintf("unknown status code: %d", e.Status)
	}
}

// ClassifyStatus maps a status code to its download outcome. ok is true only
// for the 2xx class. Redirects are reported as unauthorized because the
// service answers bad credentials with a redirect to its login page.
func ClassifyStatus(status int) (kind DownloadErrorKind, ok bool) {
	switch status / 100 {
	case 2:
		return DownloadUnknown, true
	case 3:
		return DownloadUnauthorized, false
	case 4:
		return DownloadNotFound, false
	case 5:
		return DownloadServerError, false
	default:
		return DownloadUnknown, false
	}
}

// NewDownloadError builds the error for a non-success status
func NewDownloadError(status int, url string) *DownloadError {
	kind, _ := ClassifyStatus(status)
	return &DownloadError{Kind: kind, Status: status, URL: url}
}

// StatusText is used in log output only
func (e *DownloadError) StatusText() string {
	if e.Status == 0 {
		return "no response"
	}
	return fmt.Sprintf("%d %s", e.Status, http.StatusText(e.Status))
}
