// Package report prints human-facing compiler progress and timing to
// stderr. It never affects compilation; the driver calls it around a
// single synchronous compile. Step and Done are silent unless -v is
// passed; Fail always prints.
package report

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
)

// Printer writes verbose progress lines, colorizing only when the
// destination is a real terminal.
type Printer struct {
	w       io.Writer
	verbose bool
	color   bool
}

// New builds a Printer writing to w. color auto-detects via isatty when w
// is an *os.File; verbose gates whether Step/Done emit anything at all.
func New(w io.Writer, verbose bool) *Printer {
	color := false
	if f, ok := w.(*os.File); ok {
		color = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &Printer{w: w, verbose: verbose, color: color}
}

func (p *Printer) paint(code, s string) string {
	if !p.color {
		return s
	}
	return "\x1b[" + code + "m" + s + "\x1b[0m"
}

// Step announces the start of a pipeline stage ("parsing", "lowering to
// Koopa", "parsing Koopa", "emitting RISC-V").
func (p *Printer) Step(name string) {
	if !p.verbose {
		return
	}
	fmt.Fprintf(p.w, "%s %s\n", p.paint("36", "=>"), name)
}

// Done reports a finished compile: output size rendered with humanize
// and elapsed wall time rounded to the microsecond, so -v output reads
// like "482 B in 3.1ms" instead of raw nanoseconds and byte counts.
func (p *Printer) Done(elapsed time.Duration, outputBytes int) {
	if !p.verbose {
		return
	}
	fmt.Fprintf(p.w, "%s compiled %s in %s\n",
		p.paint("32", "done"),
		humanize.Bytes(uint64(outputBytes)),
		elapsed.Round(time.Microsecond))
}

// Fail prints a fatal diagnostic in red (when colorized) before the
// driver exits non-zero.
func (p *Printer) Fail(err error) {
	fmt.Fprintf(p.w, "%s %v\n", p.paint("31", "error:"), err)
}
