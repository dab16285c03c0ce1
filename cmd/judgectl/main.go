package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/kirillkom/judgment-search/internal/bootstrap"
	"github.com/kirillkom/judgment-search/internal/config"
	"github.com/kirillkom/judgment-search/internal/observability/logging"
)

const (
	service = "judgectl"
	version = "0.1.0"
)

const usage = `usage: judgectl <command> [flags] [args]

commands:
  search   [-exclude words] [-type content|title|all] [-doctype T] [-source S] [-xlsx file] keywords...
  show     -source S [-q keywords] ID
  upload   [-report file.xlsx] PATH...
  clear-db [-yes]
  reports  [-limit N]
  mcp
`

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}

	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "config error: %v\n", err)
		return 1
	}
	logger := logging.NewJSONLoggerTo(stderr, service, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	waiter := newSettleWaiter()
	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{
		Service:  service,
		Notifier: waiter,
		Logger:   logger,
	})
	if err != nil {
		fmt.Fprintf(stderr, "bootstrap error: %v\n", err)
		return 1
	}
	defer app.Close()

	cli := &cli{
		app:    app,
		waiter: waiter,
		stdin:  stdin,
		stdout: stdout,
		stderr: stderr,
	}
	return cli.dispatch(ctx, args[0], args[1:])
}
