// Command currentdt-mcp serves the get_current_datetime MCP tool over stdio,
// WebSocket or HTTP, and offers a few diagnostic subcommands.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/localrivet/currentdt"
	"github.com/localrivet/currentdt/config"
	"github.com/localrivet/currentdt/handler"
	"github.com/localrivet/currentdt/hooks"
	"github.com/localrivet/currentdt/logx"
	"github.com/localrivet/currentdt/metrics"
	"github.com/localrivet/currentdt/provider"
	"github.com/localrivet/currentdt/server"
	"github.com/localrivet/currentdt/service"
	"github.com/localrivet/currentdt/transport"
	transporthttp "github.com/localrivet/currentdt/transport/http"
	"github.com/localrivet/currentdt/transport/stdio"
	"github.com/localrivet/currentdt/transport/ws"
)

const usage = `%s - Current DateTime MCP Server

USAGE:
  currentdt-mcp [OPTIONS]

OPTIONS:
  -help, -h                 Show this help message
  -version, -v              Show version information
  -test                     Test the datetime service
  -validate-format FORMAT   Validate a format string
  -test-provider NAME       Test a specific provider
  -transport KIND           stdio (default), ws or http
  -addr ADDR                Listen address for ws and http (default :8080)

EXAMPLES:
  currentdt-mcp                                 # Start MCP server on stdio
  currentdt-mcp -test                           # Test functionality
  currentdt-mcp -validate-format "YYYY-MM-DD"   # Validate format
  currentdt-mcp -test-provider local            # Test provider
  currentdt-mcp -transport http -addr :9000     # Serve POST /mcp, /healthz, /metrics

ENVIRONMENT VARIABLES:
  CURRENTDT_FORMAT     Override default date format
  CURRENTDT_PROVIDER   Override default provider
  CURRENTDT_DEBUG      Enable debug logging (true/false)
  CURRENTDT_CONFIG     Custom configuration file path
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

type cliOptions struct {
	help           bool
	version        bool
	test           bool
	validateFormat string
	testProvider   string
	transport      string
	addr           string
}

func parseFlags(args []string, stderr io.Writer) (cliOptions, error) {
	var o cliOptions
	fs := flag.NewFlagSet("currentdt-mcp", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { fmt.Fprintf(stderr, usage, currentdt.Name) }

	fs.BoolVar(&o.help, "help", false, "show help")
	fs.BoolVar(&o.help, "h", false, "show help")
	fs.BoolVar(&o.version, "version", false, "show version")
	fs.BoolVar(&o.version, "v", false, "show version")
	fs.BoolVar(&o.test, "test", false, "test the datetime service")
	fs.StringVar(&o.validateFormat, "validate-format", "", "validate a format string")
	fs.StringVar(&o.testProvider, "test-provider", "", "test a specific provider")
	fs.StringVar(&o.transport, "transport", "stdio", "transport: stdio, ws or http")
	fs.StringVar(&o.addr, "addr", ":8080", "listen address for ws and http")

	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if fs.NArg() > 0 {
		return o, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	return o, nil
}

// run is main without the process exit, returning the exit code.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(stderr, err)
		return 2
	}

	switch {
	case opts.help:
		fmt.Fprintf(stdout, usage, currentdt.Name)
		return 0
	case opts.version:
		fmt.Fprintf(stdout, "%s v%s\n", currentdt.Name, currentdt.Version)
		return 0
	}

	logger, levelVar := logx.New(stderr, config.DefaultLogLevel)
	mgr := config.NewManager(config.WithLogger(logger))
	if err := mgr.Load(); err != nil {
		logger.Warn("failed to load configuration, using defaults", "error", err)
	}
	applyLevel(levelVar, mgr.Config())

	switch {
	case opts.test:
		return selfTest(ctx, mgr, logger, stdout, stderr)
	case opts.validateFormat != "":
		return validateFormat(opts.validateFormat, mgr.Config(), stdout)
	case opts.testProvider != "":
		return testProvider(ctx, opts.testProvider, logger, stdout, stderr)
	}

	if err := serve(ctx, opts, mgr, logger, levelVar, stdin, stdout); err != nil {
		logger.Log(ctx, logx.LevelFatal, "server exited with error", "error", err)
		return 1
	}
	return 0
}

func applyLevel(lv *slog.LevelVar, cfg config.Configuration) {
	if cfg.Debug {
		lv.Set(slog.LevelDebug)
		return
	}
	if level, err := logx.ParseLevel(cfg.LogLevel); err == nil {
		lv.Set(level)
	}
}

func serve(ctx context.Context, opts cliOptions, mgr *config.Manager, logger *slog.Logger, levelVar *slog.LevelVar, stdin io.Reader, stdout io.Writer) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	selector := provider.NewSelector(provider.WithLogger(logger))
	svc := service.New(mgr.Config(),
		service.WithSelector(selector),
		service.WithLogger(logger),
		service.WithMetrics(m))

	registry := handler.NewToolRegistry()
	registry.Register(handler.DateTimeTool())
	h := handler.NewRequestHandler(svc, registry,
		handler.WithLogger(logger),
		handler.WithHooks(hooks.Metrics(m, registry.Has)))

	srv := server.NewServer(currentdt.Name, currentdt.Version, h,
		server.WithLogger(logger),
		server.WithLevelVar(levelVar),
		server.WithInstructions(currentdt.Instructions))

	mgr.OnChange(func(cfg config.Configuration) error {
		svc.UpdateConfiguration(cfg)
		applyLevel(levelVar, cfg)
		return nil
	})
	go mgr.Watch(ctx, config.DefaultWatchInterval)

	var t transport.Transport
	switch opts.transport {
	case "stdio", "":
		t = stdio.New(stdin, stdout, stdio.WithLogger(logger))
	case "ws":
		t = ws.New(opts.addr, ws.WithLogger(logger))
	case "http":
		t = transporthttp.New(opts.addr,
			transporthttp.WithLogger(logger),
			transporthttp.WithGatherer(reg))
	default:
		return fmt.Errorf("unknown transport %q (want stdio, ws or http)", opts.transport)
	}

	logger.Info("starting MCP server",
		"name", currentdt.Name,
		"version", currentdt.Version,
		"transport", opts.transport,
		"defaultFormat", mgr.Config().DefaultFormat,
		"defaultProvider", mgr.Config().DefaultProvider)
	err := srv.Serve(ctx, t)
	logger.Info("MCP server stopped")
	return err
}
