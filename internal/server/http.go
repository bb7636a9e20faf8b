package server

import (
	"net/http"

	mcpserver "github.com/mark3labs/mcp-go/server"
)

// RESTPrefix is where the REST API is mounted next to the MCP endpoint.
const RESTPrefix = "/v1/"

// registerRoutes mounts the MCP endpoint, the optional REST API and the health
// check on mux. protect wraps every route except the health check.
func registerRoutes(mux *http.ServeMux, mcpSrv *mcpserver.MCPServer, mcpEndpoint string, rest http.Handler, protect func(http.Handler) http.Handler) {
	mcpHandler := mcpserver.NewStreamableHTTPServer(mcpSrv,
		mcpserver.WithEndpointPath(mcpEndpoint),
	)
	mux.Handle(mcpEndpoint, protect(mcpHandler))

	if rest != nil {
		mux.Handle(RESTPrefix, protect(rest))
	}

	// Health check (unauthenticated).
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
}

// NewHTTPHandler serves the MCP endpoint and, when rest is not nil, the REST
// API under RESTPrefix without authentication.
func NewHTTPHandler(mcpSrv *mcpserver.MCPServer, mcpEndpoint string, rest http.Handler) http.Handler {
	mux := http.NewServeMux()
	registerRoutes(mux, mcpSrv, mcpEndpoint, rest, func(h http.Handler) http.Handler { return h })
	return mux
}

// NewHTTPServer wraps handler with the timeouts used for every listener.
func NewHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: defaultReadHeaderTimeout,
		WriteTimeout:      defaultWriteTimeout,
		IdleTimeout:       defaultIdleTimeout,
	}
}
