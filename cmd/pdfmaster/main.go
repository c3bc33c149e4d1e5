// Command pdfmaster merges, splits, rotates, trims, stamps and extracts PDF
// documents, and serves the same operations over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"golang.org/x/term"

	"github.com/wudi/pdfmaster/config"
	"github.com/wudi/pdfmaster/pdferr"
	"github.com/wudi/pdfmaster/pdfio"
	"github.com/wudi/pdfmaster/service"
	"github.com/wudi/pdfmaster/tempstore"
)

type command struct {
	usage   string
	summary string
	run     func(ctx context.Context, a *app, args []string) error
}

var commands map[string]command

func init() {
	commands = map[string]command{
		"merge":     {"merge [-o out.pdf] a.pdf b.pdf ...", "Concatenate documents in order", runMerge},
		"split":     {"split [-o dir] in.pdf", "Write one PDF per page", runSplit},
		"rotate":    {"rotate [-pages all] -angle 90|180|270 [-o out.pdf] in.pdf", "Rotate pages clockwise", runRotate},
		"delete":    {"delete -pages 2,4-6 [-o out.pdf] in.pdf", "Remove pages", runDelete},
		"watermark": {"watermark -text T [-o out.pdf] in.pdf", "Stamp diagonal text on every page", runWatermark},
		"number":    {"number [-o out.pdf] in.pdf", "Add page numbers", runNumber},
		"text":      {"text [-pages all] in.pdf", "Print page text as JSON", runText},
		"images":    {"images [-pages all] [-ocr [-lang eng] [-psm 3]] [-o dir] in.pdf", "Extract embedded images", runImages},
		"serve":     {"serve [flags]", "Run the HTTP API", runServe},
	}
}

// usageError marks bad invocations; they exit with status 2.
type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

func usagef(format string, args ...any) error {
	return usageError{fmt.Errorf(format, args...)}
}

type app struct {
	stdout     io.Writer
	stderr     io.Writer
	getenv     func(string) string
	isTerminal func(io.Writer) bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	a := &app{
		stdout:     os.Stdout,
		stderr:     os.Stderr,
		getenv:     os.Getenv,
		isTerminal: isTerminal,
	}
	code := a.main(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}

func (a *app) main(ctx context.Context, args []string) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "help" || args[0] == "--help" {
		a.printUsage()
		if len(args) == 0 {
			return 2
		}
		return 0
	}
	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(a.stderr, "pdfmaster: unknown command %q\n", args[0])
		a.printUsage()
		return 2
	}
	err := cmd.run(ctx, a, args[1:])
	switch {
	case err == nil:
		return 0
	case errors.Is(err, flag.ErrHelp):
		return 0
	case isUsage(err):
		fmt.Fprintf(a.stderr, "pdfmaster %s: %v\nusage: pdfmaster %s\n", args[0], err, cmd.usage)
		return 2
	default:
		fmt.Fprintf(a.stderr, "pdfmaster %s: %v\n", args[0], err)
		return 1
	}
}

func isUsage(err error) bool {
	var ue usageError
	if errors.As(err, &ue) {
		return true
	}
	switch pdferr.KindOf(err) {
	case pdferr.KindValidation, pdferr.KindParse:
		return true
	}
	return false
}

func (a *app) printUsage() {
	fmt.Fprintln(a.stderr, "Usage: pdfmaster <command> [flags]")
	fmt.Fprintln(a.stderr)
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(a.stderr, "  %-10s %s\n", name, commands[name].summary)
	}
}

// flagSet returns a FlagSet whose usage line names the command.
func (a *app) flagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: pdfmaster %s\n", commands[name].usage)
		fs.PrintDefaults()
	}
	return fs
}

// parse parses args and wraps flag errors as usage errors.
func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return err
		}
		return usageError{err}
	}
	return nil
}

// loadConfig reads settings from the environment. One-shot commands log
// warnings only unless PDFMASTER_LOG_LEVEL says otherwise.
func (a *app) loadConfig() (config.Config, error) {
	cfg := config.Default()
	cfg.LogLevel = "warn"
	fs := flag.NewFlagSet("env", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	cfg.RegisterFlags(fs)
	if err := cfg.Load(fs, nil, a.getenv); err != nil {
		return config.Config{}, fmt.Errorf("configuration: %w", err)
	}
	return cfg, nil
}

func newService(cfg config.Config) (*service.Service, error) {
	logger, err := cfg.Logger()
	if err != nil {
		return nil, err
	}
	store, err := tempstore.New(cfg.TempDir, tempstore.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	engine := pdfio.New(pdfio.WithLogger(logger))
	return service.New(store, engine, service.WithLogger(logger)), nil
}

func (a *app) service() (*service.Service, error) {
	cfg, err := a.loadConfig()
	if err != nil {
		return nil, err
	}
	return newService(cfg)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
