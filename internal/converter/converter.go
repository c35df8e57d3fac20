// Package converter turns a filled DOCX container into the final
// distributable format by driving a headless LibreOffice process.
package converter

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ConversionError marks a failure of the external conversion engine. It
// carries the source size and target format so an operator can judge
// whether the engine or the document is at fault.
type ConversionError struct {
	SourceSize   int
	TargetFormat string
	msg          string
	err          error
}

func (e *ConversionError) Error() string {
	s := fmt.Sprintf("conversion to %s failed (source %d bytes): %s", e.TargetFormat, e.SourceSize, e.msg)
	if e.err != nil {
		s += ": " + e.err.Error()
	}
	return s
}

func (e *ConversionError) Unwrap() error {
	return e.err
}

// Runner executes the conversion engine process. The seam exists so tests
// never spawn LibreOffice.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Config holds converter configuration.
type Config struct {
	// Binary is the conversion engine executable, typically "soffice".
	Binary string
	// Timeout bounds one engine invocation; zero means no bound, which
	// leaves a hung engine blocking only its own request.
	Timeout time.Duration
}

// Converter converts documents via an external engine. Safe for concurrent
// use; each call works in its own scratch directory.
type Converter struct {
	binary  string
	timeout time.Duration
	runner  Runner
	logger  *zap.Logger
}

// New creates a converter using the real engine process.
func New(cfg Config, logger *zap.Logger) *Converter {
	return newWithRunner(cfg, execRunner{}, logger)
}

func newWithRunner(cfg Config, runner Runner, logger *zap.Logger) *Converter {
	return &Converter{
		binary:  cfg.Binary,
		timeout: cfg.Timeout,
		runner:  runner,
		logger:  logger,
	}
}

// Convert renders source into the format named by targetExt (".pdf"). The
// engine call may block for several seconds; the caller's goroutine waits
// while other requests proceed. Failures are never retried here, since a
// blind retry against a stuck engine only multiplies stuck processes.
func (c *Converter) Convert(ctx context.Context, source []byte, targetExt string) ([]byte, error) {
	ext := strings.TrimPrefix(targetExt, ".")
	if ext == "" {
		return nil, &ConversionError{SourceSize: len(source), TargetFormat: targetExt, msg: "empty target format"}
	}

	workDir, err := os.MkdirTemp("", "lpj-convert-")
	if err != nil {
		return nil, &ConversionError{SourceSize: len(source), TargetFormat: ext, msg: "failed to create scratch directory", err: err}
	}
	defer os.RemoveAll(workDir)

	srcPath := filepath.Join(workDir, "source.docx")
	if err := os.WriteFile(srcPath, source, 0644); err != nil {
		return nil, &ConversionError{SourceSize: len(source), TargetFormat: ext, msg: "failed to stage source document", err: err}
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	output, err := c.runner.Run(ctx, c.binary,
		"--headless", "--norestore",
		"--convert-to", ext,
		"--outdir", workDir,
		srcPath)
	if err != nil {
		c.logger.Error("Conversion engine failed",
			zap.String("binary", c.binary),
			zap.String("target", ext),
			zap.Int("source_size", len(source)),
			zap.ByteString("engine_output", output),
			zap.Error(err))
		return nil, &ConversionError{
			SourceSize:   len(source),
			TargetFormat: ext,
			msg:          fmt.Sprintf("engine %s failed", c.binary),
			err:          err,
		}
	}

	resultPath := filepath.Join(workDir, "source."+ext)
	result, err := os.ReadFile(resultPath)
	if err != nil {
		return nil, &ConversionError{
			SourceSize:   len(source),
			TargetFormat: ext,
			msg:          "engine reported success but produced no output",
			err:          err,
		}
	}

	c.logger.Info("Document converted",
		zap.String("target", ext),
		zap.Int("source_size", len(source)),
		zap.Int("result_size", len(result)),
		zap.Duration("elapsed", time.Since(start)))
	return result, nil
}
