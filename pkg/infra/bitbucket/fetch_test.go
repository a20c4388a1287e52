package bitbucket_test

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/DevTable/BitBucket-api/pkg/domain/model"
	"github.com/DevTable/BitBucket-api/pkg/infra/bitbucket"
	"github.com/m-mizutani/gt"
)

// recordingWriter keeps the size of every Write call
type recordingWriter struct {
	buf    bytes.Buffer
	writes []int
}

func (w *recordingWriter) Write(p []byte) (int, error) {
	w.writes = append(w.writes, len(p))
	return w.buf.Write(p)
}

func TestFetch_StatusClasses(t *testing.T) {
	tests := []struct {
		status  int
		wantOK  bool
		wantErr model.DownloadErrorKind
	}{
		{status: 200, wantOK: true},
		{status: 201, wantOK: true},
		{status: 299, wantOK: true},
		{status: 300, wantErr: model.DownloadUnauthorized},
		{status: 302, wantErr: model.DownloadUnauthorized},
		{status: 399, wantErr: model.DownloadUnauthorized},
		{status: 400, wantErr: model.DownloadNotFound},
		{status: 403, wantErr: model.DownloadNotFound},
		{status: 404, wantErr: model.DownloadNotFound},
		{status: 499, wantErr: model.DownloadNotFound},
		{status: 500, wantErr: model.DownloadServerError},
		{status: 503, wantErr: model.DownloadServerError},
		{status: 599, wantErr: model.DownloadServerError},
		{status: 600, wantErr: model.DownloadUnknown},
		{status: 999, wantErr: model.DownloadUnknown},
	}

	for _, tt := range tests {
		t.Run(strconv.Itoa(tt.status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tt.status/100 == 3 {
					w.Header().Set("Location", "/login")
				}
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte("payload"))
			}))
			defer server.Close()

			client := bitbucket.NewClient(model.Credentials{Username: "user", Password: "pass"})

			var dst bytes.Buffer
			err := client.Fetch(context.Background(), server.URL+"/file", &dst, nil)

			if tt.wantOK {
				gt.NoError(t, err)
				gt.S(t, dst.String()).Equal("payload")
				return
			}

			var dlErr *model.DownloadError
			gt.B(t, errors.As(err, &dlErr)).True()
			gt.V(t, dlErr.Kind).Equal(tt.wantErr)
			gt.N(t, dlErr.Status).Equal(tt.status)
			gt.N(t, dst.Len()).Equal(0)
		})
	}
}

func TestFetch_StreamsInChunks(t *testing.T) {
	data := make([]byte, bitbucket.ChunkSize*2+1234)
	for i := range data {
		data[i] = byte(i % 251)
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		_, _ = w.Write(data)
	}))
	defer server.Close()

	client := bitbucket.NewClient(model.Credentials{})

	dst := &recordingWriter{}
	gt.NoError(t, client.Fetch(context.Background(), server.URL, dst, nil)).Required()

	gt.B(t, bytes.Equal(dst.buf.Bytes(), data)).True()
	gt.N(t, len(dst.writes)).GreaterOrEqual(3)
	for _, n := range dst.writes {
		gt.N(t, n).LessOrEqual(bitbucket.ChunkSize)
	}
}

func TestFetch_DoesNotFollowRedirect(t *testing.T) {
	var targetHits atomic.Int32
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		targetHits.Add(1)
		_, _ = w.Write([]byte("should not be read"))
	}))
	defer target.Close()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, target.URL, http.StatusFound)
	}))
	defer server.Close()

	client := bitbucket.NewClient(model.Credentials{Username: "user", Password: "wrong"})

	var dst bytes.Buffer
	err := client.Fetch(context.Background(), server.URL, &dst, nil)

	var dlErr *model.DownloadError
	gt.B(t, errors.As(err, &dlErr)).True()
	gt.V(t, dlErr.Kind).Equal(model.DownloadUnauthorized)
	gt.N(t, targetHits.Load()).Equal(int32(0))
	gt.N(t, dst.Len()).Equal(0)
}

func TestFetch_CredentialsAndParams(t *testing.T) {
	var (
		gotUser, gotPass string
		gotQuery         url.Values
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser, gotPass, _ = r.BasicAuth()
		gotQuery = r.URL.Query()
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	client := bitbucket.NewClient(model.Credentials{Username: "alice", Password: "secret"})

	var dst bytes.Buffer
	params := url.Values{"at": []string{"v1.0"}}
	gt.NoError(t, client.Fetch(context.Background(), server.URL+"/raw?x=1", &dst, params))

	gt.S(t, gotUser).Equal("alice")
	gt.S(t, gotPass).Equal("secret")
	gt.S(t, gotQuery.Get("at")).Equal("v1.0")
	gt.S(t, gotQuery.Get("x")).Equal("1")
}

func TestFetch_TransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := server.URL
	server.Close()

	client := bitbucket.NewClient(model.Credentials{})

	var dst bytes.Buffer
	err := client.Fetch(context.Background(), addr, &dst, nil)

	var dlErr *model.DownloadError
	gt.B(t, errors.As(err, &dlErr)).True()
	gt.V(t, dlErr.Kind).Equal(model.DownloadUnknown)
	gt.N(t, dlErr.Status).Equal(0)
	gt.V(t, dlErr.Err).NotNil()
}
