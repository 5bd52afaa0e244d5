package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shpitdev/company-revenue-lookup/internal/batch"
	"github.com/shpitdev/company-revenue-lookup/internal/lookup"
	"github.com/shpitdev/company-revenue-lookup/internal/session"
	"github.com/shpitdev/company-revenue-lookup/pkg/identifier"
	"github.com/shpitdev/company-revenue-lookup/pkg/pipeline/io/local"
	"github.com/shpitdev/company-revenue-lookup/pkg/pipeline/redact"
)

const (
	sessionHeader  = "X-Session-ID"
	batchJobHeader = "X-Batch-Job"

	maxBatchConcurrency = 20
	maxBatchDelay       = 5 * time.Second

	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	contentTypeCSV  = "text/csv; charset=utf-8"
)

// revenueResponse carries the amount under both "ca" and "ca_k"; clients read either.
type revenueResponse struct {
	Formatted string `json:"formatted"`
	Year      int    `json:"year"`
	CA        int64  `json:"ca"`
	CAK       int64  `json:"ca_k"`
	Source    string `json:"source"`
}

// handleRevenue resolves the latest revenue of one company.
// GET /api/ca?id=<identifier>
func (s *Server) handleRevenue(c *gin.Context) {
	raw := c.Query("id")
	fact, err := s.svc.Revenue(c.Request.Context(), raw)
	if err != nil {
		s.writeError(c, err)
		return
	}
	s.remember(c, raw, fact.Formatted())
	c.JSON(http.StatusOK, revenueResponse{
		Formatted: fact.Formatted(),
		Year:      fact.Year,
		CA:        fact.AmountThousands,
		CAK:       fact.AmountThousands,
		Source:    string(fact.Source),
	})
}

// handleProfile proxies the company legal-information resource.
// GET /api/societe?id=<identifier>
func (s *Server) handleProfile(c *gin.Context) {
	raw := c.Query("id")
	status, body, err := s.svc.Profile(c.Request.Context(), raw)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if status/100 == 2 {
		s.remember(c, raw, "")
	}
	if json.Valid(body) {
		c.Data(status, "application/json; charset=utf-8", body)
		return
	}
	c.JSON(status, gin.H{"raw": string(body)})
}

// handleBatch fills the revenue columns of an uploaded spreadsheet and returns it.
// POST /api/batch (multipart: file, optional column, concurrency, delay)
func (s *Server) handleBatch(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.opts.MaxUploadBytes)

	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "File too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing file"})
		return
	}
	opts, err := s.batchOptions(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unreadable file"})
		return
	}
	defer func() {
		_ = f.Close()
	}()
	table, err := local.ReadTable(f, fh.Filename)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	column := local.DetectIdentifierColumn(table.Header)
	if name := strings.TrimSpace(c.PostForm("column")); name != "" {
		column = local.ColumnIndex(table.Header, name)
		if column < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Unknown column %q", name)})
			return
		}
	}
	if column < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Empty header row"})
		return
	}

	jobID := uuid.NewString()
	log := s.logger.With(zap.String("job", jobID), zap.String("file", fh.Filename))
	log.Info("batch started",
		zap.Int("rows", len(table.Rows)),
		zap.String("column", table.Header[column]),
		zap.Int("concurrency", opts.Concurrency),
		zap.Duration("delay", opts.Delay),
	)

	start := time.Now()
	summary, err := batch.Process(c.Request.Context(), table, column, s.svc.Revenue, opts)
	if err != nil {
		log.Warn("batch aborted", zap.String("error", redact.Secrets(err.Error())))
		c.JSON(http.StatusInternalServerError, gin.H{"error": redact.Secrets(err.Error())})
		return
	}
	log.Info("batch finished",
		zap.Int("ok", summary.OK),
		zap.Int("invalid", summary.Invalid),
		zap.Int("failed", summary.Failed),
		zap.Duration("elapsed", time.Since(start)),
	)

	name := local.OutputName(fh.Filename)
	var buf bytes.Buffer
	if err := local.WriteTable(&buf, name, table); err != nil {
		log.Warn("batch export failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	contentType := contentTypeXLSX
	if format, _ := local.FormatOf(name); format == local.FormatCSV {
		contentType = contentTypeCSV
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Header(batchJobHeader, jobID)
	c.Data(http.StatusOK, contentType, buf.Bytes())
}

// handleHistory lists the session's recent successful queries, most recent first.
// GET /api/history
func (s *Server) handleHistory(c *gin.Context) {
	entries := []session.Entry{}
	if s.history != nil {
		entries = s.history.Recent(sessionKey(c))
	}
	c.JSON(http.StatusOK, gin.H{"history": entries})
}

func (s *Server) batchOptions(c *gin.Context) (batch.Options, error) {
	opts := s.opts.Batch
	if v := strings.TrimSpace(c.PostForm("concurrency")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > maxBatchConcurrency {
			return opts, fmt.Errorf("concurrency must be between 1 and %d", maxBatchConcurrency)
		}
		opts.Concurrency = n
	}
	if v := strings.TrimSpace(c.PostForm("delay")); v != "" {
		d, err := parseDelay(v)
		if err != nil || d < 0 || d > maxBatchDelay {
			return opts, fmt.Errorf("delay must be between 0 and %s", maxBatchDelay)
		}
		if d == 0 {
			// Zero means the default in batch.Options; an explicit 0 here disables the pause.
			d = -1
		}
		opts.Delay = d
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = batch.DefaultConcurrency
	}
	if opts.Delay == 0 {
		opts.Delay = batch.DefaultDelay
	}
	return opts, nil
}

// parseDelay accepts Go durations ("150ms") and bare milliseconds ("150").
func parseDelay(v string) (time.Duration, error) {
	if ms, err := strconv.Atoi(v); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	return time.ParseDuration(v)
}

func (s *Server) writeError(c *gin.Context, err error) {
	status := lookup.StatusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Warn("lookup failed",
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.String("error", redact.Secrets(err.Error())),
		)
	}
	c.JSON(status, gin.H{"error": lookup.Message(err)})
}

func (s *Server) remember(c *gin.Context, raw, formatted string) {
	if s.history == nil {
		return
	}
	id := identifier.Classify(raw)
	s.history.Record(sessionKey(c), session.Entry{
		ID:        id.Normalized,
		Kind:      string(id.Kind),
		Formatted: formatted,
	})
}

func sessionKey(c *gin.Context) string {
	if v := strings.TrimSpace(c.GetHeader(sessionHeader)); v != "" {
		return v
	}
	return c.Query("session")
}
