package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
)

func TestNewHTTPHandler(t *testing.T) {
	mcpSrv := mcpserver.NewMCPServer("sdc-prioritizer", "test")
	rest := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte(r.URL.Path))
	})

	tests := []struct {
		name   string
		rest   http.Handler
		path   string
		status int
		body   string
	}{
		{name: "health check", rest: rest, path: "/healthz", status: http.StatusOK, body: "ok"},
		{name: "rest api mounted", rest: rest, path: "/v1/strategies", status: http.StatusTeapot, body: "/v1/strategies"},
		{name: "rest api absent", rest: nil, path: "/v1/strategies", status: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHTTPHandler(mcpSrv, "/mcp", tt.rest)

			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))

			assert.Equal(t, tt.status, w.Code)
			if tt.body != "" {
				assert.Equal(t, tt.body, w.Body.String())
			}
		})
	}
}

func TestNewHTTPServerTimeouts(t *testing.T) {
	srv := NewHTTPServer(":0", http.NotFoundHandler())

	assert.Equal(t, ":0", srv.Addr)
	assert.Equal(t, defaultReadHeaderTimeout, srv.ReadHeaderTimeout)
	assert.Equal(t, defaultWriteTimeout, srv.WriteTimeout)
	assert.Equal(t, defaultIdleTimeout, srv.IdleTimeout)
}
