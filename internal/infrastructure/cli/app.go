// Package cli exposes the product service as a one-shot command line tool.
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/mrops-br/products-service/internal/app/dto"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Exit codes returned by App.Run
const (
	ExitOK       = 0
	ExitFailure  = 1
	ExitUsage    = 2
	ExitNotFound = 3
)

// ProductService is the use-case surface the commands drive
type ProductService interface {
	Save(ctx context.Context, in dto.ProductDTO) (dto.ProductDTO, error)
	FindAll(ctx context.Context) ([]dto.ProductDTO, error)
	FindOne(ctx context.Context, id int64) (dto.ProductDTO, bool, error)
	FindOneByBarcodeID(ctx context.Context, barcodeID string) (dto.ProductDTO, bool, error)
	Delete(ctx context.Context, id int64) error
}

type command struct {
	usage   string
	summary string
	run     commandFunc
}

// App dispatches subcommands to the product service
type App struct {
	service  ProductService
	commands map[string]command
	tracer   trace.Tracer
	meter    metric.Meter
	logger   *slog.Logger
	stdout   io.Writer
	stderr   io.Writer
}

// NewApp creates the command line application. Results go to stdout,
// errors and usage to stderr.
func NewApp(
	service ProductService,
	tracer trace.Tracer,
	meter metric.Meter,
	logger *slog.Logger,
	stdout, stderr io.Writer,
) *App {
	a := &App{
		service: service,
		tracer:  tracer,
		meter:   meter,
		logger:  logger,
		stdout:  stdout,
		stderr:  stderr,
	}
	a.setupCommands()
	return a
}

func (a *App) setupCommands() {
	a.commands = map[string]command{
		"save": {
			usage:   "save -barcode B -name N [-description D] [-price P] [-id ID]",
			summary: "create a product, or replace the product with -id",
			run:     a.save,
		},
		"list": {
			usage:   "list",
			summary: "print every product ordered by id",
			run:     a.list,
		},
		"get": {
			usage:   "get ID",
			summary: "print the product with the given id",
			run:     a.get,
		},
		"barcode": {
			usage:   "barcode BARCODE",
			summary: "print the product carrying the given barcode",
			run:     a.barcode,
		},
		"delete": {
			usage:   "delete ID",
			summary: "delete the product with the given id",
			run:     a.remove,
		},
	}
}

// Run executes the subcommand named by args[0] and returns the process exit code
func (a *App) Run(ctx context.Context, args []string) int {
	if len(args) == 0 {
		a.usage(a.stderr)
		return ExitUsage
	}

	name := args[0]
	switch name {
	case "help", "-h", "-help", "--help":
		a.usage(a.stdout)
		return ExitOK
	}

	cmd, ok := a.commands[name]
	if !ok {
		writeError(a.stderr, errorBadRequest, fmt.Errorf("unknown command %q", name))
		a.usage(a.stderr)
		return ExitUsage
	}

	run := chain(cmd.run,
		commandContext(name),
		tracing(a.tracer, name),
		structuredLogger(a.logger),
		durationMilliseconds(a.meter, name),
	)
	return run(ctx, args[1:])
}

func (a *App) usage(w io.Writer) {
	names := make([]string, 0, len(a.commands))
	for name := range a.commands {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintln(w, "Usage: products-service [-config FILE] COMMAND [ARGS]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	for _, name := range names {
		cmd := a.commands[name]
		fmt.Fprintf(w, "  %-62s %s\n", cmd.usage, cmd.summary)
	}
}

// newFlagSet returns a flag set that reports errors instead of exiting
func (a *App) newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	fs.Usage = func() {
		fmt.Fprintf(a.stderr, "Usage: products-service %s\n", a.commands[name].usage)
		fs.PrintDefaults()
	}
	return fs
}

// GlobalOptions holds flags accepted before the subcommand
type GlobalOptions struct {
	ConfigPath string
}

// ParseGlobalFlags parses the flags that precede the subcommand and returns
// the remaining arguments.
func ParseGlobalFlags(args []string, stderr io.Writer) (GlobalOptions, []string, error) {
	var opts GlobalOptions

	fs := flag.NewFlagSet("products-service", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.ConfigPath, "config", "", "path to a config file (overrides PRODUCTS_CONFIG)")

	if err := fs.Parse(args); err != nil {
		return opts, nil, err
	}
	return opts, fs.Args(), nil
}

// ParseExitCode maps a flag parse error to an exit code. A help request is not an error.
func ParseExitCode(err error) int {
	if errors.Is(err, flag.ErrHelp) {
		return ExitOK
	}
	return ExitUsage
}
