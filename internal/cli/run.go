// Package cli parses flags, prints the startup banner, and drives the
// engine to completion, including the double-signal graceful shutdown
// pattern used throughout the retrieved pack.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/bsbernd/ql-fstest/internal/config"
	"github.com/bsbernd/ql-fstest/internal/engine"
	"github.com/bsbernd/ql-fstest/internal/fsutil"
	"github.com/bsbernd/ql-fstest/internal/registry"
	"github.com/bsbernd/ql-fstest/internal/statline"
	"github.com/bsbernd/ql-fstest/internal/tree"
)

// Run is the process entry point, factored out of main so it can be
// exercised in tests with fake I/O and a synthetic signal channel.
// sigCh may be nil if signal handling is not needed.
func Run(_ io.Reader, out, errOut io.Writer, args []string, env map[string]string, sigCh <-chan os.Signal) int {
	flags := flag.NewFlagSet("fstest", flag.ContinueOnError)
	flags.Usage = func() {}
	flags.SetOutput(&strings.Builder{})

	flagHelp := flags.BoolP("help", "h", false, "show usage")
	flagPercent := flags.IntP("percent", "p", 0, "fill-level goal, percent of total filesystem size (1-99)")
	flagTimeout := flags.IntP("timeout", "t", 0, "total wall-clock limit in seconds (-1 = infinite)")
	flagImmediate := flags.BoolP("immediate", "i", false, "verify every file right after writing it")
	flagMaxFiles := flags.IntP("max-files", "f", 0, "registry soft cap")
	flagMinBits := flags.Int("min-bits", 0, "minimum size exponent for new files")
	flagMaxBits := flags.Int("max-bits", 0, "maximum size exponent for new files")
	flagErrorStop := flags.Bool("error-stop", false, "stop on first verification mismatch")

	if err := flags.Parse(args[1:]); err != nil {
		fprintln(errOut, "error:", err)
		printUsage(errOut)
		return 1
	}

	if *flagHelp {
		printUsage(out)
		return 0
	}

	positional := flags.Args()
	if len(positional) != 1 {
		fprintln(errOut, "error: exactly one test directory argument is required")
		printUsage(errOut)
		return 1
	}

	cliCfg := config.Config{
		Dir:            positional[0],
		Percent:        *flagPercent,
		TimeoutSeconds: *flagTimeout,
		Immediate:      *flagImmediate,
		MaxFiles:       *flagMaxFiles,
		MinBits:        *flagMinBits,
		MaxBits:        *flagMaxBits,
		ErrorStop:      *flagErrorStop,
	}
	set := config.FlagsSet{
		Dir:            true,
		Percent:        flags.Changed("percent"),
		TimeoutSeconds: flags.Changed("timeout"),
		Immediate:      flags.Changed("immediate"),
		MaxFiles:       flags.Changed("max-files"),
		MinBits:        flags.Changed("min-bits"),
		MaxBits:        flags.Changed("max-bits"),
		ErrorStop:      flags.Changed("error-stop"),
	}

	workDir, err := os.Getwd()
	if err != nil {
		fprintln(errOut, "error: determine working directory:", err)
		return 1
	}

	cfg, err := config.Load(workDir, cliCfg, set)
	if err != nil {
		fprintln(errOut, "error:", err)
		printUsage(errOut)
		return 1
	}

	testRoot := cfg.Dir + string(os.PathSeparator) + fmt.Sprintf("fstest.%d", os.Getpid())

	tr, err := tree.NewRoot(testRoot)
	if err != nil {
		fprintln(errOut, "error:", err)
		return 1
	}

	usage, err := fsutil.DiskUsage(cfg.Dir)
	if err != nil {
		fprintln(errOut, "error: statfs", cfg.Dir, ":", err)
		return 1
	}

	goalBytes := usage.TotalBytes * uint64(cfg.Percent) / 100
	if usage.Used() >= goalBytes {
		fprintln(errOut, "error:", cfg.Dir, "is already at or above the", cfg.Percent, "% goal; the tool needs headroom to run")
		return 1
	}

	log := statline.New(out)
	log.Banner(testRoot, cfg.Percent, usage.TotalBytes, usage.FreeBytes)

	reg := registry.New()
	gov := registry.NewGovernor(cfg.Dir, reg, tr, cfg.Percent, cfg.MaxFiles)

	e := engine.New(cfg, tr, reg, gov, log)
	if err := e.Start(); err != nil {
		fprintln(errOut, "error:", err)
		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan int, 1)
	go func() {
		done <- e.Run(ctx)
	}()

	select {
	case code := <-done:
		return code
	case <-sigCh:
		fprintln(errOut, "shutting down with 5s timeout...")
		e.Stop()
		cancel()
	}

	select {
	case <-done:
		fprintln(errOut, "graceful shutdown ok (130)")
		return 130
	case <-time.After(5 * time.Second):
		fprintln(errOut, "graceful shutdown timed out, forced exit (130)")
		return 130
	case <-sigCh:
		fprintln(errOut, "graceful shutdown interrupted, forced exit (130)")
		return 130
	}
}

func fprintln(w io.Writer, a ...any) {
	_, _ = fmt.Fprintln(w, a...)
}

const usageText = `fstest - filesystem stress-write-and-verify tool

Usage: fstest [flags] <directory>

Flags:
  -h, --help             show usage
  -p, --percent <int>    fill-level goal, percent of total size (default 90)
  -t, --timeout <secs>   total wall-clock limit; -1 = infinite (default)
  -i, --immediate        verify every file right after writing it
  -f, --max-files <int>  registry soft cap
  --min-bits <int>       minimum size exponent (default 20, 1 MiB)
  --max-bits <int>       maximum size exponent (default 30, 1 GiB)
  --error-stop           stop on first verification mismatch`

func printUsage(w io.Writer) {
	fprintln(w, usageText)
}
