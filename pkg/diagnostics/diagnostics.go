// Copyright (c) 2017-2026 Digital Asset (Switzerland) GmbH and/or its affiliates. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package diagnostics carries severity-tagged findings out of a resolution
// run. Only error-severity diagnostics abort the requested operation;
// warnings accumulate and are handed to the configured sink.
package diagnostics

import (
	"errors"
	"fmt"
	"log/slog"
)

type Severity int

const (
	SeverityWarning Severity = iota
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	default:
		return "warning"
	}
}

type Diagnostic struct {
	Severity Severity
	// Code is a stable, machine-readable classifier, e.g. "DUPLICATE_PRODUCT"
	Code  string
	Cause error
}

func (d *Diagnostic) Error() string {
	if d.Cause != nil {
		return d.Code + ": " + d.Cause.Error()
	}
	return d.Code
}

func (d *Diagnostic) Unwrap() error {
	return d.Cause
}

var _ error = (*Diagnostic)(nil)

func NewError(code string, cause error) *Diagnostic {
	return &Diagnostic{Severity: SeverityError, Code: code, Cause: cause}
}

func NewWarning(code string, cause error) *Diagnostic {
	return &Diagnostic{Severity: SeverityWarning, Code: code, Cause: cause}
}

// Standardize wraps an arbitrary error as an error-severity Diagnostic,
// passing through errors that already are one.
func Standardize(err error) *Diagnostic {
	if err == nil {
		return nil
	}

	var diag *Diagnostic
	if errors.As(err, &diag) {
		return diag
	}

	return NewError("UNKNOWN_ERROR", err)
}

// Sink receives non-fatal findings. Implementations must tolerate being
// called from concurrent goroutines.
type Sink interface {
	Emit(d *Diagnostic)
}

// SlogSink logs every diagnostic through the default slog logger.
type SlogSink struct{}

func (SlogSink) Emit(d *Diagnostic) {
	if d.Severity == SeverityError {
		slog.Error(d.Error(), "code", d.Code)
		return
	}
	slog.Warn(d.Error(), "code", d.Code)
}

var _ Sink = SlogSink{}

// Collector accumulates diagnostics in order of emission.
type Collector struct {
	Diagnostics []*Diagnostic
}

func (c *Collector) Emit(d *Diagnostic) {
	c.Diagnostics = append(c.Diagnostics, d)
}

func (c *Collector) Warnings() []*Diagnostic {
	var r []*Diagnostic
	for _, d := range c.Diagnostics {
		if d.Severity == SeverityWarning {
			r = append(r, d)
		}
	}
	return r
}

// Err joins all error-severity diagnostics, or returns nil when none were emitted.
func (c *Collector) Err() error {
	var errs []error
	for _, d := range c.Diagnostics {
		if d.Severity == SeverityError {
			errs = append(errs, d)
		}
	}
	return errors.Join(errs...)
}

var _ Sink = (*Collector)(nil)

func Errorf(code, format string, args ...any) *Diagnostic {
	return NewError(code, fmt.Errorf(format, args...))
}

func Warningf(code, format string, args ...any) *Diagnostic {
	return NewWarning(code, fmt.Errorf(format, args...))
}
