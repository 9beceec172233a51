// Package driver wires the pipeline together: read input, obtain an AST,
// lower it to Koopa, and -- in -riscv mode -- re-parse that Koopa text
// and run the RISC-V backend against it (spec section 4.6).
//
// The SysY lexer/parser is an external collaborator (spec section 1):
// this package never builds one. It accepts an already-built *ast.Program
// directly, or a Frontend hook that knows how to produce one from source
// bytes. cmd/sysyc wires DefaultFrontend, which reports a clean diagnostic
// rather than guessing at a grammar this repository does not own.
package driver

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"sysyc/internal/ast"
	"sysyc/internal/buildstamp"
	"sysyc/internal/diagnostics"
	"sysyc/internal/irgen"
	"sysyc/internal/koopa"
	"sysyc/internal/report"
	"sysyc/internal/riscv"
)

// Mode selects the compiler's output format.
type Mode string

const (
	ModeKoopa Mode = "-koopa"
	ModeRiscv Mode = "-riscv"
)

// Frontend turns SysY source bytes into an AST. Its absence from this
// repository is deliberate (spec section 1); DefaultFrontend exists only
// to fail loudly instead of leaving cmd/sysyc with a nil function value.
type Frontend func(path string, src []byte) (*ast.Program, error)

// DefaultFrontend is the frontend cmd/sysyc wires in by default: there is
// no SysY lexer/parser in this repository, so it always fails with a
// ParseError naming what's missing. Callers that already hold an
// *ast.Program (this package's tests, and any embedder driving this
// package directly) should use CompileProgram instead and skip the
// frontend entirely.
func DefaultFrontend(path string, _ []byte) (*ast.Program, error) {
	return nil, diagnostics.Newf(diagnostics.ParseError,
		"no SysY front end bundled in this build; construct an ast.Program and call driver.CompileProgram").WithIdent(path)
}

// Options is one invocation's configuration.
type Options struct {
	Mode       Mode
	InputPath  string
	OutputPath string
	Verbose    bool
}

// Run executes one compilation end to end: read the input file, hand its
// bytes to front, lower to Koopa, and -- for ModeRiscv -- re-parse that
// Koopa text and lower it to assembly, writing the result to
// opts.OutputPath. It never partially succeeds: the output file is only
// written once every stage has completed cleanly.
func Run(opts Options, front Frontend, out *report.Printer) error {
	start := time.Now()
	buildID := uuid.New().String()

	out.Step(fmt.Sprintf("[%s] reading %s", buildID, opts.InputPath))
	src, err := os.ReadFile(opts.InputPath)
	if err != nil {
		return diagnostics.Wrap(diagnostics.IOError, err, "cannot read input").WithIdent(opts.InputPath)
	}

	out.Step(fmt.Sprintf("[%s] parsing", buildID))
	prog, err := front(opts.InputPath, src)
	if err != nil {
		return err
	}

	text, err := CompileProgram(prog, opts.Mode, out)
	if err != nil {
		return err
	}

	stamped := buildstamp.Header(commentPrefix(opts.Mode), src) + text

	out.Step(fmt.Sprintf("[%s] writing %s", buildID, opts.OutputPath))
	if err := os.WriteFile(opts.OutputPath, []byte(stamped), 0o644); err != nil {
		return diagnostics.Wrap(diagnostics.IOError, err, "cannot write output").WithIdent(opts.OutputPath)
	}

	out.Done(time.Since(start), len(stamped))
	return nil
}

// CompileProgram runs the lowering and (for ModeRiscv) backend stages
// against an already-built AST, skipping the frontend entirely. This is
// the entry point this package's end-to-end tests drive, per spec
// section 8's "hand-constructing AST values" testing strategy.
func CompileProgram(prog *ast.Program, mode Mode, out *report.Printer) (string, error) {
	out.Step("lowering to Koopa")
	koopaText, err := irgen.Emit(prog)
	if err != nil {
		return "", err
	}
	if mode == ModeKoopa {
		return koopaText, nil
	}

	out.Step("parsing Koopa")
	raw, err := koopa.Parse(koopaText)
	if err != nil {
		return "", err
	}

	out.Step("emitting RISC-V")
	asm, err := riscv.Emit(raw)
	if err != nil {
		return "", err
	}
	return asm, nil
}

func commentPrefix(mode Mode) string {
	if mode == ModeRiscv {
		return "#"
	}
	return "//"
}
