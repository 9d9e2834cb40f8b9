package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/localrivet/currentdt/config"
	"github.com/localrivet/currentdt/format"
	"github.com/localrivet/currentdt/provider"
	"github.com/localrivet/currentdt/service"
)

// selfTest exercises configuration loading and the service end to end on
// the local clock.
func selfTest(ctx context.Context, mgr *config.Manager, logger *slog.Logger, stdout, stderr io.Writer) int {
	fmt.Fprintf(stdout, "Testing currentdt-mcp...\n\n")

	cfg := mgr.Config()
	fmt.Fprintln(stdout, "1. Testing configuration...")
	fmt.Fprintf(stdout, "   ok: configuration loaded (format: %s, provider: %s)\n\n", cfg.DefaultFormat, cfg.DefaultProvider)

	fmt.Fprintln(stdout, "2. Testing datetime service...")
	svc := service.New(cfg, service.WithLogger(logger))
	checks := []struct {
		label string
		raw   interface{}
	}{
		{"default format", nil},
		{"custom format", map[string]interface{}{"format": "YYYY-MM-DD HH:mm:ss"}},
		{"filename format", map[string]interface{}{"format": "YYYY-MM-DD-HHmmss"}},
	}
	for _, c := range checks {
		text, err := svc.CurrentDateTime(ctx, c.raw)
		if err != nil {
			fmt.Fprintf(stderr, "Test failed: %v\n", err)
			return 1
		}
		fmt.Fprintf(stdout, "   ok: %s: %s\n", c.label, text)
	}
	fmt.Fprintln(stdout)

	fmt.Fprintln(stdout, "3. Testing providers...")
	fmt.Fprintf(stdout, "   ok: available providers: %s\n\n", strings.Join(svc.SupportedProviders(), ", "))

	fmt.Fprintln(stdout, "All tests passed!")
	return 0
}

func validateFormat(spec string, cfg config.Configuration, stdout io.Writer) int {
	fmt.Fprintf(stdout, "Validating format: %q\n\n", spec)

	resolved := format.Resolve(spec, cfg.CustomFormats)
	if !format.Validate(resolved) {
		fmt.Fprintln(stdout, "Format is invalid")
		tokens := make([]string, 0, len(format.Tokens()))
		for tok := range format.Tokens() {
			tokens = append(tokens, tok)
		}
		sort.Strings(tokens)
		fmt.Fprintf(stdout, "Supported tokens: %s\n", strings.Join(tokens, ", "))
		return 1
	}

	fmt.Fprintln(stdout, "Format is valid")
	fmt.Fprintf(stdout, "Example output: %s\n", format.Example(resolved))
	return 0
}

func testProvider(ctx context.Context, name string, logger *slog.Logger, stdout, stderr io.Writer) int {
	fmt.Fprintf(stdout, "Testing provider: %q\n\n", name)

	src, err := provider.NewSelector(provider.WithLogger(logger)).Create(name, nil)
	if err != nil {
		fmt.Fprintf(stderr, "Provider test failed: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "Provider: %s\n", src.Name())
	fmt.Fprintf(stdout, "Priority: %d\n", src.Priority())

	available := src.IsAvailable(ctx)
	fmt.Fprintf(stdout, "Available: %t\n", available)
	if !available {
		return 0
	}

	t, err := src.CurrentDateTime(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "Provider test failed: %v\n", err)
		return 1
	}
	text, err := format.Format(t, format.ISO)
	if err != nil {
		fmt.Fprintf(stderr, "Provider test failed: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "Current time: %s\n", text)
	return 0
}
