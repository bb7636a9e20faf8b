package api

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/giantswarm/sdc-prioritizer/internal/engine"
	"github.com/giantswarm/sdc-prioritizer/internal/evaluator"
	"github.com/giantswarm/sdc-prioritizer/internal/history"
	"github.com/giantswarm/sdc-prioritizer/internal/strategy"
	"github.com/giantswarm/sdc-prioritizer/internal/testsuite"
)

type handler struct {
	store Store
}

type uploadResponse struct {
	Message string `json:"message"`
	testsuite.Upload
}

type prioritizeResponse struct {
	TestSuiteID string `json:"testSuiteId"`
	*strategy.Ranking
}

type evaluateRequest struct {
	TestSuiteID string `json:"testSuiteId" binding:"required"`
	Strategy    string `json:"strategy" binding:"required"`
	Budget      *int   `json:"budget" binding:"omitempty,min=0"`
}

type evaluateResponse struct {
	SessionID string `json:"sessionId"`
	*evaluator.Report
}

func handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "SDC Test Prioritizer REST API is up and running."})
}

func handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func handleStrategies(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"strategies": strategy.Names()})
}

func (h *handler) handleUpload(c *gin.Context) {
	suite, err := testsuite.DecodeUpload(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"message": err.Error()})
		return
	}

	upload, err := h.store.SaveSuite(suite)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, uploadResponse{
		Message: "Test suite uploaded.",
		Upload:  upload,
	})
}

func (h *handler) handlePrioritize(c *gin.Context) {
	suiteID := c.Query("testSuiteId")
	name := c.Query("strategy")
	if suiteID == "" || name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "testSuiteId and strategy query parameters are required"})
		return
	}

	suite, err := h.store.Suite(suiteID)
	if err != nil {
		writeError(c, err)
		return
	}

	ranking, err := engine.Prioritize(suite, name)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, prioritizeResponse{TestSuiteID: suite.ID, Ranking: ranking})
}

func (h *handler) handleEvaluate(c *gin.Context) {
	var req evaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"message": err.Error()})
		return
	}

	suite, err := h.store.Suite(req.TestSuiteID)
	if err != nil {
		writeError(c, err)
		return
	}

	start := time.Now()
	report, err := engine.Evaluate(suite, req.Strategy, req.Budget)
	if err != nil {
		writeError(c, err)
		return
	}

	record, err := h.store.SaveEvaluation(history.NewRecord(report, time.Since(start)))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, evaluateResponse{SessionID: record.ID, Report: report})
}

func (h *handler) handleHistory(c *gin.Context) {
	var buf bytes.Buffer
	if err := h.store.WriteCSV(&buf); err != nil {
		writeError(c, err)
		return
	}

	c.Header("Content-Disposition", "attachment; filename=evaluation_history.csv")
	c.Data(http.StatusOK, "text/csv", buf.Bytes())
}

// writeError maps domain errors to status codes. Anything unrecognised is a
// server error.
func writeError(c *gin.Context, err error) {
	var (
		invalid  *testsuite.InvalidTestCaseError
		empty    *testsuite.EmptySuiteError
		unknown  *strategy.UnknownStrategyError
		exists   *history.SuiteExistsError
		notFound *history.SuiteNotFoundError
	)

	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &invalid), errors.As(err, &empty):
		status = http.StatusUnprocessableEntity
	case errors.As(err, &unknown):
		status = http.StatusBadRequest
	case errors.As(err, &exists):
		status = http.StatusConflict
	case errors.As(err, &notFound):
		status = http.StatusNotFound
	default:
		slog.Error("request failed", "path", c.Request.URL.Path, "error", err)
	}

	c.JSON(status, gin.H{"message": err.Error()})
}
