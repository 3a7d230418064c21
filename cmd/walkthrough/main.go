package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/apex/log"
	"github.com/apex/log/handlers/cli"
	colorable "github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"

	"github.com/mycyclecoach/walkthrough/pkg/config"
	"github.com/mycyclecoach/walkthrough/pkg/walkthrough"
)

const version = "1.0.0"

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("MyCycleCoach Walkthrough v%s\n", version)
		fmt.Println("Sequential smoke test of the MyCycleCoach HTTP API")
		os.Exit(0)
	}

	if _, err := config.Load(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	cfg := config.Get()

	colorize := cfg.Logs.Color && isatty.IsTerminal(os.Stdout.Fd())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, cfg, colorable.NewColorableStdout(), os.Stderr, colorize)
	stop()

	os.Exit(code)
}

// run executes one walkthrough and returns the process exit code.
func run(ctx context.Context, cfg *config.Config, stdout, stderr io.Writer, colorize bool) int {
	logger := &log.Logger{
		Handler: cli.New(stderr),
		Level:   log.MustParseLevel(cfg.Logs.Level),
	}

	w := walkthrough.New(&cfg.Walkthrough, stdout,
		walkthrough.WithLogger(logger),
		walkthrough.WithColor(colorize),
	)

	report, err := w.Run(ctx)
	if err == nil {
		logger.WithField("run_id", report.RunID).Debug(report.Summary())
		return 0
	}

	p := walkthrough.NewPrinter(stdout, colorize)

	var loginErr *walkthrough.LoginError
	switch {
	case walkthrough.IsConnectivity(err):
		p.Blank()
		p.Error("Cannot connect to application at %s", cfg.Walkthrough.BaseURL)
		p.Line("Make sure docker-compose is running: docker-compose up -d postgres app")
		logger.WithError(err).Debug("connection failed")
	case errors.As(err, &loginErr):
		logger.WithField("status", loginErr.StatusCode).Error("login failed")
	default:
		p.Blank()
		p.Error("%v", err)
	}
	return 1
}
