package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// Run is the CLI entrypoint used by cmd/cssebot.
// It returns an error instead of calling os.Exit so deferred cleanup runs.
func Run() error {
	cfg, err := ApplyFile(LoadConfig())
	if err != nil {
		return err
	}
	log := NewLogger(os.Stdout, cfg)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := New(ctx, cfg, log)
	if err != nil {
		return err
	}
	return a.Run(ctx)
}
