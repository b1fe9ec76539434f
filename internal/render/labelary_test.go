package render

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"zebra-emulator/internal/domain"
)

var fakePNG = append(append([]byte(nil), pngSignature...), []byte("fake-png-payload")...)

func testCanvas(t *testing.T) domain.Canvas {
	t.Helper()
	c, err := domain.NewCanvas(2.25, 1.25, domain.Dpi203)
	require.NoError(t, err)
	return c
}

func TestLabelary_PostsMarkupAndReturnsPNG(t *testing.T) {
	var gotPath, gotAccept, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAccept = r.Header.Get("Accept")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(fakePNG)
	}))
	defer srv.Close()

	l := NewLabelary(srv.URL + "/")
	img, err := l.Render(context.Background(), Request{Markup: "^XA^FDhi^FS^XZ", Canvas: testCanvas(t)})
	require.NoError(t, err)
	require.Equal(t, fakePNG, img)
	require.Equal(t, "/v1/printers/8dpmm/labels/2.251x1.251/0/", gotPath)
	require.Equal(t, "image/png", gotAccept)
	require.Equal(t, "^XA^FDhi^FS^XZ", gotBody)
}

func TestLabelary_StatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   []byte
		want   error
	}{
		{"bad request is rejection", http.StatusBadRequest, []byte("ERROR: Invalid label size"), domain.ErrMarkupRejected},
		{"not found is rejection", http.StatusNotFound, nil, domain.ErrMarkupRejected},
		{"rate limited is unavailable", http.StatusTooManyRequests, nil, domain.ErrRendererUnavailable},
		{"server error is unavailable", http.StatusBadGateway, []byte("upstream"), domain.ErrRendererUnavailable},
		{"ok without png is unavailable", http.StatusOK, []byte("<html>"), domain.ErrRendererUnavailable},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write(tc.body)
			}))
			defer srv.Close()

			_, err := NewLabelary(srv.URL).Render(context.Background(), Request{Markup: "^XA^XZ", Canvas: testCanvas(t)})
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			var rerr *Error
			if !errors.As(err, &rerr) {
				t.Fatalf("expected *render.Error, got %T", err)
			}
		})
	}
}

func TestLabelary_UnreachableIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewLabelary(url).Render(context.Background(), Request{Markup: "^XA^XZ", Canvas: testCanvas(t)})
	if !errors.Is(err, domain.ErrRendererUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
}

func TestLabelary_TimeoutFromContext(t *testing.T) {
	var hits atomic.Int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		<-release
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err := NewLabelary(srv.URL).Render(ctx, Request{Markup: "^XA^XZ", Canvas: testCanvas(t)})
	if !errors.Is(err, domain.ErrRenderTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
	if hits.Load() != 1 {
		t.Fatalf("expected exactly one request, got %d", hits.Load())
	}
}

func TestLabelary_InvalidCanvasIsRejectedLocally(t *testing.T) {
	_, err := NewLabelary("http://127.0.0.1:1").Render(context.Background(), Request{Markup: "^XA^XZ"})
	if !errors.Is(err, domain.ErrMarkupRejected) {
		t.Fatalf("expected rejection for zero canvas, got %v", err)
	}
}

func TestLabelary_DefaultsToHTTPS(t *testing.T) {
	l := NewLabelary("")
	require.Equal(t, "https://api.labelary.com/v1/printers/8dpmm/labels/2.251x1.251/0/", l.endpoint(testCanvas(t)))
}
