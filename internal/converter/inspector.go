package converter

import (
	"github.com/gen2brain/go-fitz"
	"go.uber.org/zap"
)

// Inspector opens converted documents with mupdf to confirm the engine
// produced a well-formed file before it is persisted.
type Inspector struct {
	logger *zap.Logger
}

// NewInspector creates a new document inspector.
func NewInspector(logger *zap.Logger) *Inspector {
	return &Inspector{logger: logger}
}

// PageCount parses the document and returns its page count. An unparseable
// document is a ConversionError: the engine exited cleanly but emitted
// garbage.
func (i *Inspector) PageCount(pdf []byte) (int, error) {
	doc, err := fitz.NewFromMemory(pdf)
	if err != nil {
		i.logger.Error("Converted document is unreadable",
			zap.Int("size", len(pdf)),
			zap.Error(err))
		return 0, &ConversionError{
			SourceSize:   len(pdf),
			TargetFormat: "pdf",
			msg:          "engine produced an unreadable document",
			err:          err,
		}
	}
	defer doc.Close()
	return doc.NumPage(), nil
}
