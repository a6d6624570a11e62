package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"wallpaper-guesser/internal/config"
	"wallpaper-guesser/internal/logging"
	httptransport "wallpaper-guesser/internal/transport/http"
	"wallpaper-guesser/internal/ws"

	"github.com/rs/zerolog/log"
)

func runServe(parent context.Context) error {
	cfg, err := config.LoadApp()
	if err != nil {
		return err
	}
	logging.Init(cfg.Log)
	defer func() { _ = logging.Close() }()

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opened, err := openStore(ctx, cfg.Server)
	if err != nil {
		return err
	}
	defer opened.close()

	eng := newEngine(opened.store, cfg.Sync)
	defer eng.coord.Close()
	eng.coord.StartJanitor(ctx, cfg.Sync.JanitorInterval, cfg.Sync.SessionIdleTimeout)

	r := httptransport.NewRouter(httptransport.Deps{
		Engine: eng.coord,
		Events: eng.rooms,
		WS:     ws.NewServer(eng.coord, eng.rooms).HandleWS,
		Ping:   opened.ping,
	})
	httptransport.LogRoutes(r)

	server := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Server.HTTPAddr).Str("store", cfg.Server.StoreDriver).Msg("http listening")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
