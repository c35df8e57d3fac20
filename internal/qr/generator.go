// Package qr produces the QR code image embedded into every generated
// report.
package qr

import (
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
	"go.uber.org/zap"
)

// Width is the pixel width of the generated image. The template embeds the
// image at the same size, so scanners see it 1:1.
const Width = 150

// Generator writes QR code images. Error correction is pinned at the
// highest tier so the code stays scannable when print artifacts or the
// template border partially cover it.
type Generator struct {
	logger *zap.Logger
}

// NewGenerator creates a new QR code generator.
func NewGenerator(logger *zap.Logger) *Generator {
	return &Generator{logger: logger}
}

// Generate encodes payload and writes a PNG to destination. The caller must
// supply a fresh, process-unique destination path; concurrent runs sharing
// a path would corrupt each other's intermediates.
func (g *Generator) Generate(payload, destination string) error {
	if payload == "" {
		return fmt.Errorf("qr payload is empty")
	}

	code, err := qrcode.New(payload, qrcode.Highest)
	if err != nil {
		return fmt.Errorf("failed to encode QR payload: %w", err)
	}
	// The quiet zone is pinned on: the template places the image against a
	// border, and scanners need the margin.
	code.DisableBorder = false

	if err := code.WriteFile(Width, destination); err != nil {
		g.logger.Error("Failed to write QR code image",
			zap.String("destination", destination),
			zap.Error(err))
		return fmt.Errorf("failed to write QR code to %s: %w", destination, err)
	}

	g.logger.Debug("QR code generated",
		zap.String("destination", destination),
		zap.Int("payload_len", len(payload)))
	return nil
}
