// Package diagnostics classifies and formats the four error classes the
// compiler can hit: I/O failures, parse errors surfaced from the external
// parser, semantic violations caught during AST->Koopa lowering, and
// internal-invariant failures found by the frame planner or backend.
package diagnostics

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind is the class of a compiler error.
type Kind string

const (
	IOError       Kind = "IOError"
	ParseError    Kind = "ParseError"
	SemanticError Kind = "SemanticError"
	InternalError Kind = "InternalError"
)

// Location pins a diagnostic to a position in the source SysY file, when
// one is known. Line/Column are 1-based; zero means unknown.
type Location struct {
	File   string
	Line   int
	Column int
}

// Diagnostic is the error type returned by the symbol table, the Koopa
// emitter, the backend and the driver (internal/koopa's text parser
// returns plain fmt errors instead). There is no recovery path: every
// constructor here is meant to flow straight up to the driver, which
// prints it and aborts (spec: "no partial success").
type Diagnostic struct {
	Kind     Kind
	Ident    string // identifier implicated, when applicable ("" otherwise)
	Message  string
	Location Location
	cause    error
}

func (d *Diagnostic) Error() string {
	if d.Ident != "" {
		if d.Location.File != "" {
			return fmt.Sprintf("%s: %s %q at %s:%d:%d", d.Kind, d.Message, d.Ident, d.Location.File, d.Location.Line, d.Location.Column)
		}
		return fmt.Sprintf("%s: %s %q", d.Kind, d.Message, d.Ident)
	}
	if d.Location.File != "" {
		return fmt.Sprintf("%s: %s at %s:%d:%d", d.Kind, d.Message, d.Location.File, d.Location.Line, d.Location.Column)
	}
	return fmt.Sprintf("%s: %s", d.Kind, d.Message)
}

func (d *Diagnostic) Unwrap() error { return d.cause }

// New builds a bare diagnostic of the given kind. Its cause is a
// pkg/errors value carrying the stack where it was created, reachable
// through Unwrap; the driver and report.Printer print only Error().
func New(kind Kind, message string) *Diagnostic {
	return &Diagnostic{Kind: kind, Message: message, cause: errors.New(message)}
}

// Newf is New with formatting.
func Newf(kind Kind, format string, args ...interface{}) *Diagnostic {
	return New(kind, fmt.Sprintf(format, args...))
}

// WithIdent tags the diagnostic with the offending identifier name, as
// spec section 7 requires ("Each aborts with a diagnostic naming the
// identifier and kind of error").
func (d *Diagnostic) WithIdent(ident string) *Diagnostic {
	d.Ident = ident
	return d
}

// At tags the diagnostic with a source location.
func (d *Diagnostic) At(file string, line, col int) *Diagnostic {
	d.Location = Location{File: file, Line: line, Column: col}
	return d
}

// Wrap lifts an underlying error (I/O failure, or a parse error
// propagated verbatim from the external parser) into a classified
// Diagnostic without losing the original cause.
func Wrap(kind Kind, cause error, message string) *Diagnostic {
	return &Diagnostic{Kind: kind, Message: message, cause: errors.Wrap(cause, message)}
}

// Semantic constructs a semantic-violation diagnostic with the given
// reason, naming the offending identifier.
func Semantic(ident, reason string) *Diagnostic {
	return New(SemanticError, reason).WithIdent(ident)
}

// Internal constructs an internal-invariant failure: a bug in this
// compiler, not in the input program. The frame planner raises this when
// it finds a Koopa value it never sized; the backend raises it when the
// raw program shape violates an assumption the planner already made.
func Internal(format string, args ...interface{}) *Diagnostic {
	return Newf(InternalError, format, args...)
}
