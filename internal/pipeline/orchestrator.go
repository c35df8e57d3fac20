// Package pipeline sequences one generation request from form data to a
// persisted, ledgered document.
package pipeline

import (
	"context"
	"strconv"
	"time"

	"github.com/lpjform/lpj-backend/internal/docx"
	"github.com/lpjform/lpj-backend/internal/format"
	"github.com/lpjform/lpj-backend/internal/models"
	"github.com/lpjform/lpj-backend/internal/storage"
	"go.uber.org/zap"
)

// TemplateRenderer fills the document template.
type TemplateRenderer interface {
	LoadTemplate(path string) ([]byte, error)
	Render(template []byte, data *docx.Data) ([]byte, error)
}

// QRGenerator writes the QR image for one run.
type QRGenerator interface {
	Generate(payload, destination string) error
}

// DocumentConverter produces the final binary format.
type DocumentConverter interface {
	Convert(ctx context.Context, source []byte, targetExt string) ([]byte, error)
}

// DocumentInspector verifies the converted document parses.
type DocumentInspector interface {
	PageCount(pdf []byte) (int, error)
}

// Ledger records one entry per durably written artifact.
type Ledger interface {
	Record(ctx context.Context, noRequest string, tglLPJ time.Time, filePath string) (int64, error)
}

// Config holds the orchestrator's injected paths and formats.
type Config struct {
	TemplatePath string
	TargetFormat string
}

// Orchestrator runs the pipeline stages for one request at a time per
// call. It owns every intermediate file of a run; the final artifact's
// ownership passes to the store the moment Persist succeeds.
type Orchestrator struct {
	renderer  TemplateRenderer
	qr        QRGenerator
	converter DocumentConverter
	inspector DocumentInspector
	store     *storage.ArtifactStore
	ledger    Ledger
	formatter *format.Formatter

	templatePath string
	targetFormat string
	logger       *zap.Logger
}

// NewOrchestrator wires the pipeline dependencies.
func NewOrchestrator(
	renderer TemplateRenderer,
	qr QRGenerator,
	converter DocumentConverter,
	inspector DocumentInspector,
	store *storage.ArtifactStore,
	ledger Ledger,
	formatter *format.Formatter,
	cfg Config,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		renderer:     renderer,
		qr:           qr,
		converter:    converter,
		inspector:    inspector,
		store:        store,
		ledger:       ledger,
		formatter:    formatter,
		templatePath: cfg.TemplatePath,
		targetFormat: cfg.TargetFormat,
		logger:       logger,
	}
}

// Result is the outcome of a completed run.
type Result struct {
	EntryID  int64
	FilePath string
	Content  []byte
	Pages    int
}

// Run executes ReadTemplate → GenerateQR → Render → Convert → Persist →
// RecordLedger. Any failure short-circuits the remaining stages and is
// returned as a StageError. Intermediates are removed on every exit path;
// a persisted final artifact is kept even when the ledger write fails, so
// a generated document is never thrown away.
func (o *Orchestrator) Run(ctx context.Context, req *models.ReportRequest) (*Result, error) {
	start := time.Now()
	req.Normalize()

	reportDate, err := req.ReportDate()
	if err != nil {
		return nil, o.fail(req, StageValidate, err)
	}

	var intermediates []string
	defer func() {
		for _, path := range intermediates {
			o.store.Remove(path)
		}
	}()

	// ReadTemplate
	template, err := o.renderer.LoadTemplate(o.templatePath)
	if err != nil {
		return nil, o.fail(req, StageReadTemplate, err)
	}

	// GenerateQR
	qrPath := o.store.QRCodePath()
	intermediates = append(intermediates, qrPath)
	if err := o.qr.Generate(req.QRPayload(), qrPath); err != nil {
		return nil, o.fail(req, StageGenerateQR, err)
	}

	// Render
	filled, err := o.renderer.Render(template, o.templateData(req, reportDate, qrPath))
	if err != nil {
		return nil, o.fail(req, StageRender, err)
	}

	// Keep a copy of the filled template on disk for traceability until
	// cleanup runs.
	filledPath := o.store.FilledTemplatePath()
	intermediates = append(intermediates, filledPath)
	if err := o.store.Save(filledPath, filled); err != nil {
		return nil, o.fail(req, StageRender, err)
	}

	// Convert
	final, err := o.converter.Convert(ctx, filled, o.targetFormat)
	if err != nil {
		return nil, o.fail(req, StageConvert, err)
	}
	pages, err := o.inspector.PageCount(final)
	if err != nil {
		return nil, o.fail(req, StageConvert, err)
	}

	// Persist
	finalPath := o.store.FinalArtifactPath()
	if err := o.store.Save(finalPath, final); err != nil {
		return nil, o.fail(req, StagePersist, err)
	}

	// RecordLedger
	entryID, err := o.ledger.Record(ctx, req.NoRequest, reportDate, finalPath)
	if err != nil {
		// The artifact is durable and must not be lost; hand it to the
		// reconciliation list instead of deleting or retrying blindly.
		if recErr := o.store.RecordOrphan(storage.OrphanRecord{
			NoRequest: req.NoRequest,
			FilePath:  finalPath,
			Reason:    err.Error(),
		}); recErr != nil {
			o.logger.Error("Failed to record orphaned artifact",
				zap.String("file_path", finalPath),
				zap.Error(recErr))
		}
		return nil, o.fail(req, StageRecordLedger, err)
	}

	o.logger.Info("Pipeline completed",
		zap.String("no_request", req.NoRequest),
		zap.Int64("ledger_id", entryID),
		zap.String("file_path", finalPath),
		zap.Int("pages", pages),
		zap.Duration("elapsed", time.Since(start)))

	return &Result{
		EntryID:  entryID,
		FilePath: finalPath,
		Content:  final,
		Pages:    pages,
	}, nil
}

// fail logs one structured failure record for the run and wraps the cause.
func (o *Orchestrator) fail(req *models.ReportRequest, stage Stage, err error) error {
	o.logger.Error("Pipeline stage failed",
		zap.String("no_request", req.NoRequest),
		zap.String("stage", string(stage)),
		zap.Error(err))
	return stageFailed(stage, err)
}

// templateData binds the request to the template's tags. Totals are
// recomputed from the line items; client-supplied totals are ignored.
func (o *Orchestrator) templateData(req *models.ReportRequest, reportDate time.Time, qrPath string) *docx.Data {
	totalPUM, totalLPJ := req.Totals()

	rows := make([]map[string]string, 0, len(req.RincianItems))
	for _, item := range req.RincianItems {
		rows = append(rows, map[string]string{
			"no":            strconv.Itoa(item.No),
			"deskripsi_pum": item.DeskripsiPUM,
			"jumlah_pum":    o.formatter.CurrencyDecimal(item.JumlahPUM),
			"deskripsi_lpj": item.DeskripsiLPJ,
			"jumlah_lpj":    o.formatter.CurrencyDecimal(item.JumlahLPJ),
		})
	}

	return &docx.Data{
		Fields: map[string]string{
			"no_request":         req.NoRequest,
			"nama_pemohon":       req.NamaPemohon,
			"jabatan":            req.Jabatan,
			"nama_departemen":    req.NamaDepartemen,
			"kode_departemen":    req.KodeDepartemen,
			"uraian":             req.Uraian,
			"nama_jenis":         req.NamaJenis,
			"jml_request":        req.JmlRequest,
			"jml_terbilang":      req.JmlTerbilang,
			"nama_approve_vp":    req.NamaApproveVP,
			"nama_approve_vpkeu": req.NamaApproveVPKeu,
			"nama_approve_vptre": req.NamaApproveVPTre,
			"tgl_lpj":            o.formatter.Date(reportDate),
			"total_pum":          o.formatter.CurrencyDecimal(totalPUM),
			"total_lpj":          o.formatter.CurrencyDecimal(totalLPJ),
		},
		Loops: map[string][]map[string]string{
			"rincianItems": rows,
		},
		Images: map[string]string{
			"qrcode": qrPath,
		},
	}
}
