package main

import (
	"context"
	"errors"
	"flag"

	"github.com/wudi/pdfmaster/config"
	"github.com/wudi/pdfmaster/httpapi"
	"github.com/wudi/pdfmaster/observability"
	"github.com/wudi/pdfmaster/ocr"
	"github.com/wudi/pdfmaster/pdfio"
	"github.com/wudi/pdfmaster/service"
	"github.com/wudi/pdfmaster/tempstore"
)

func runServe(ctx context.Context, a *app, args []string) error {
	cfg := config.Default()
	fs := a.flagSet("serve")
	cfg.RegisterFlags(fs)
	if err := cfg.Load(fs, args, a.getenv); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return err
		}
		return usageError{err}
	}
	if fs.NArg() != 0 {
		return usagef("unexpected arguments %v", fs.Args())
	}
	logger, err := cfg.Logger()
	if err != nil {
		return err
	}

	store, err := tempstore.New(cfg.TempDir, tempstore.WithLogger(logger))
	if err != nil {
		return err
	}
	svc := service.New(store, pdfio.New(pdfio.WithLogger(logger)),
		service.WithLogger(logger),
		service.WithTracer(observability.LogTracer{Logger: logger}))
	h, err := httpapi.NewHandler(svc,
		httpapi.WithLogger(logger),
		httpapi.WithMaxUpload(cfg.MaxUpload))
	if err != nil {
		return err
	}
	janitor := tempstore.NewJanitor(store, cfg.SweepInterval, cfg.IdleTimeout)
	srv := httpapi.NewServer(cfg.Addr, h, janitor,
		httpapi.WithServerLogger(logger),
		httpapi.WithMaxConns(cfg.MaxConns),
		httpapi.WithShutdownTimeout(cfg.ShutdownTimeout))

	logger.Info("starting",
		observability.String("addr", cfg.Addr),
		observability.String("temp_dir", store.Dir()),
		observability.String("ocr", ocr.DefaultEngine().Name()))
	return srv.Run(ctx)
}
