package docx

import (
	"errors"
	"fmt"
)

// Sentinel errors for template loading
var (
	ErrTemplateNotFound  = errors.New("template file not found")
	ErrTemplateCorrupted = errors.New("template container is corrupted")
)

// TemplateError marks a failure caused by the template or the data bound to
// it, so callers can tell bad input apart from conversion or storage
// failures.
type TemplateError struct {
	msg string
	err error
}

func (e *TemplateError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("template: %s: %v", e.msg, e.err)
	}
	return "template: " + e.msg
}

func (e *TemplateError) Unwrap() error {
	return e.err
}

func templateErrorf(format string, args ...interface{}) *TemplateError {
	return &TemplateError{msg: fmt.Sprintf(format, args...)}
}

func wrapTemplateError(err error, format string, args ...interface{}) *TemplateError {
	return &TemplateError{msg: fmt.Sprintf(format, args...), err: err}
}
