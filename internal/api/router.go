// Package api serves the REST interface for uploading, prioritizing and
// evaluating test suites.
package api

import (
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/giantswarm/sdc-prioritizer/internal/history"
	"github.com/giantswarm/sdc-prioritizer/internal/testsuite"
)

// Store is the persistence the handlers need. *history.Store implements it.
type Store interface {
	SaveSuite(suite *testsuite.TestSuite) (testsuite.Upload, error)
	Suite(id string) (*testsuite.TestSuite, error)
	SaveEvaluation(r history.Record) (history.Record, error)
	WriteCSV(w io.Writer) error
}

// NewRouter returns the gin engine with every route registered.
func NewRouter(store Store) *gin.Engine {
	h := &handler{store: store}

	r := gin.New()
	r.Use(requestLogger(), gin.Recovery())

	r.GET("/", handleRoot)
	r.GET("/healthz", handleHealthz)

	v1 := r.Group("/v1")
	{
		v1.GET("/strategies", handleStrategies)

		suites := v1.Group("/test-suite")
		suites.POST("/", h.handleUpload)
		suites.GET("/prioritization", h.handlePrioritize)
		suites.POST("/evaluation", h.handleEvaluate)

		v1.GET("/history/", h.handleHistory)
	}

	return r
}

// requestLogger logs every request once it has been served.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		level := slog.LevelDebug
		if c.Writer.Status() >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		slog.Log(c.Request.Context(), level, "request served",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
