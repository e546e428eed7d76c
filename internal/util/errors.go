package util

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNoInput         = errors.New("no input files found")
	ErrInvalidInput    = errors.New("invalid input")
	ErrMissingColumns  = errors.New("missing required columns")
	ErrBatchProcessing = errors.New("batch processing failed")

	ErrNoExtractableText = errors.New("no extractable text found in PDF")

	ErrQuotaExhausted = errors.New("provider quota exhausted")
	ErrRateLimited    = errors.New("provider rate limited")
	ErrTransient      = errors.New("transient provider error")
	ErrPermanent      = errors.New("permanent provider error")
	ErrContextTooLong = errors.New("context too long")
)

// MissingColumnsError names the columns a table lacked.
type MissingColumnsError struct {
	Source  string
	Columns []string
}

func (e *MissingColumnsError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("missing required columns: %s", strings.Join(e.Columns, ", "))
	}
	return fmt.Sprintf("%s: missing required columns: %s", e.Source, strings.Join(e.Columns, ", "))
}

func (e *MissingColumnsError) Unwrap() error { return ErrMissingColumns }
