// Package server exposes the generation pipeline and the ledger over HTTP.
package server

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/lpjform/lpj-backend/internal/models"
	"github.com/lpjform/lpj-backend/internal/pipeline"
	"go.uber.org/zap"
)

// pdfMagic is the signature every stored artifact must start with. A file
// failing this check is rejected instead of being streamed half-written.
var pdfMagic = []byte("%PDF-")

// Generator runs the document pipeline for one request.
type Generator interface {
	Run(ctx context.Context, req *models.ReportRequest) (*pipeline.Result, error)
}

// LedgerReader reads recorded ledger entries.
type LedgerReader interface {
	List(ctx context.Context) ([]*models.LedgerEntry, error)
	GetByID(ctx context.Context, id int64) (*models.LedgerEntry, error)
}

// Handler holds the HTTP endpoints.
type Handler struct {
	generator Generator
	ledger    LedgerReader
	logger    *zap.Logger
}

// NewHandler creates a new HTTP handler.
func NewHandler(generator Generator, ledger LedgerReader, logger *zap.Logger) *Handler {
	return &Handler{
		generator: generator,
		ledger:    ledger,
		logger:    logger,
	}
}

// Register attaches the API routes to the router.
func (h *Handler) Register(router *gin.Engine) {
	router.POST("/api/generate-lpj", h.Generate)
	router.GET("/api/lpj-history", h.History)
	router.GET("/api/lpj-history/download/:id", h.Download)
	router.GET("/api/lpj-history/export", h.Export)
}

// Generate runs the pipeline and streams the produced document back.
func (h *Handler) Generate(c *gin.Context) {
	var req models.ReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.String(http.StatusBadRequest, "Invalid request body: %v", err)
		return
	}
	if err := req.Validate(); err != nil {
		c.String(http.StatusBadRequest, "Invalid request: %v", err)
		return
	}

	result, err := h.generator.Run(c.Request.Context(), &req)
	if err != nil {
		// Stage failures carry no secrets; the message helps the submitter
		// report the right problem.
		c.String(http.StatusInternalServerError, "Server error: %v", err)
		return
	}

	c.Data(http.StatusOK, "application/pdf", result.Content)
}

// History lists all ledger entries, newest first.
func (h *Handler) History(c *gin.Context) {
	entries, err := h.ledger.List(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to fetch history", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error fetching LPJ history"})
		return
	}
	c.JSON(http.StatusOK, entries)
}

// Download validates and streams a previously generated artifact.
func (h *Handler) Download(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.String(http.StatusBadRequest, "Invalid id")
		return
	}

	entry, err := h.ledger.GetByID(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("Failed to look up ledger entry", zap.Int64("id", id), zap.Error(err))
		c.String(http.StatusInternalServerError, "Server error during the file download")
		return
	}
	if entry == nil {
		c.String(http.StatusNotFound, "File not found")
		return
	}

	if _, err := os.Stat(entry.FilePath); err != nil {
		// Distinct signal: the ledger knows this entry but the artifact left
		// the file system out-of-band.
		h.logger.Error("Ledger entry points at missing file",
			zap.Int64("id", id),
			zap.String("file_path", entry.FilePath),
			zap.Error(err))
		c.String(http.StatusNotFound, "File not found")
		return
	}

	f, err := os.Open(entry.FilePath)
	if err != nil {
		h.logger.Error("Failed to open artifact",
			zap.String("file_path", entry.FilePath),
			zap.Error(err))
		c.String(http.StatusInternalServerError, "Server error during the file download")
		return
	}
	defer f.Close()

	magic := make([]byte, len(pdfMagic))
	if _, err := io.ReadFull(f, magic); err != nil || !bytes.Equal(magic, pdfMagic) {
		h.logger.Error("Artifact fails signature check",
			zap.Int64("id", id),
			zap.String("file_path", entry.FilePath))
		c.String(http.StatusBadRequest, "File is not a valid PDF")
		return
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		c.String(http.StatusInternalServerError, "Server error during the file download")
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(entry.FilePath)))
	c.Header("Content-Type", "application/pdf")
	c.Status(http.StatusOK)

	if _, err := io.Copy(c.Writer, f); err != nil {
		// Headers are already on the wire; the broken transfer can only be
		// logged.
		h.logger.Error("Error streaming file to client",
			zap.String("file_path", entry.FilePath),
			zap.Error(err))
	}
}
