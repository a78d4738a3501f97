package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/codyseavey/cardvault/internal/cli/commands"
	"github.com/codyseavey/cardvault/internal/config"
	"github.com/codyseavey/cardvault/internal/remote"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg.RegisterClientFlags(flag.CommandLine)
	verbose := flag.Bool("v", false, "log record service calls to stderr")
	flag.Usage = func() { fmt.Fprint(os.Stderr, commands.FormatGlobalUsage()) }
	flag.Parse()

	zcfg := zap.NewDevelopmentConfig()
	zcfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	if *verbose {
		zcfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	zl, err := zcfg.Build()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	sugar := zl.Sugar()

	client, err := remote.Shared(remote.Config{
		BaseURL:           cfg.ServerURL,
		TokenFile:         cfg.TokenFile,
		RequestsPerSecond: cfg.ClientRPS,
		Timeout:           cfg.RequestTimeout,
		Logger:            sugar.Named("remote"),
	})
	if err != nil {
		sugar.Fatalw("failed to create client", "url", cfg.ServerURL, "error", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	app := commands.NewApp(client, sugar)
	exitCode := commands.Dispatch(ctx, app, flag.Args())
	app.Close()
	cancel()
	_ = zl.Sync()
	os.Exit(exitCode)
}
