// Command sysyc is the SysY compiler's CLI front end: a positional
// `sysyc <-koopa|-riscv> <input> -o <output>` surface, plus --help and
// --version, via a hand-rolled os.Args scan rather than a flag library.
package main

import (
	"fmt"
	"os"

	"sysyc/internal/buildstamp"
	"sysyc/internal/driver"
	"sysyc/internal/report"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run holds the whole CLI body behind an exit code instead of a direct
// os.Exit call, so the testscript harness can drive it as an in-process
// subcommand (testscript.RunMain re-execs the test binary and expects
// exactly this shape: a func() int per registered command name).
func run(args []string) int {
	if !buildstamp.CheckVersion(buildstamp.Version) {
		fmt.Fprintf(os.Stderr, "sysyc: invalid build version %q\n", buildstamp.Version)
		return 1
	}
	if len(args) == 0 {
		showUsage()
		return 1
	}

	switch args[0] {
	case "--help", "-h", "help":
		showUsage()
		return 0
	case "--version", "version":
		showVersion()
		return 0
	}

	opts, verbose, err := parseArgs(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sysyc: %v\n", err)
		showUsage()
		return 1
	}

	out := report.New(os.Stderr, verbose)
	if err := driver.Run(opts, driver.DefaultFrontend, out); err != nil {
		out.Fail(err)
		return 1
	}
	return 0
}

// parseArgs reads the positional surface spec section 6 names:
// `<-koopa|-riscv> <input> -o <output>`, with an optional trailing
// -v/--verbose in any position.
func parseArgs(args []string) (driver.Options, bool, error) {
	var opts driver.Options
	verbose := false

	var positional []string
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-v", "--verbose":
			verbose = true
		case "-o":
			if i+1 >= len(args) {
				return opts, false, fmt.Errorf("-o requires an output path")
			}
			opts.OutputPath = args[i+1]
			i++
		default:
			positional = append(positional, args[i])
		}
	}

	if len(positional) != 2 {
		return opts, false, fmt.Errorf("expected <-koopa|-riscv> <input>, got %v", positional)
	}

	switch positional[0] {
	case "-koopa":
		opts.Mode = driver.ModeKoopa
	case "-riscv":
		opts.Mode = driver.ModeRiscv
	default:
		return opts, false, fmt.Errorf("unknown mode %q, want -koopa or -riscv", positional[0])
	}
	opts.InputPath = positional[1]
	opts.Verbose = verbose

	if opts.OutputPath == "" {
		return opts, false, fmt.Errorf("-o <output> is required")
	}
	return opts, verbose, nil
}

func showUsage() {
	fmt.Println("sysyc - SysY to Koopa IR / RISC-V compiler")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  sysyc -koopa <input.sy> -o <output.koopa>   Emit textual Koopa IR")
	fmt.Println("  sysyc -riscv <input.sy> -o <output.s>       Emit RISC-V 32-bit assembly")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  -v, --verbose   Print pipeline stage timing to stderr")
	fmt.Println("  --version       Print version information")
	fmt.Println("  --help          Show this message")
}

func showVersion() {
	fmt.Printf("sysyc %s\n", buildstamp.Version)
}
