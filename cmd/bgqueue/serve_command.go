package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	log "github.com/sirupsen/logrus"
)

const shutdownTimeout = 30 * time.Second

func newServeCommand(ctx *commandContext) *cobra.Command {
	var skipRestore bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the dispatch endpoint and run health checks",
		RunE: func(cmd *cobra.Command, args []string) error {
			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			a, err := bootstrap(runCtx, cfg)
			if err != nil {
				return err
			}
			a.engine.Start()

			server := &http.Server{
				Addr:              cfg.Server.Addr,
				Handler:           newRouter(a),
				ReadHeaderTimeout: 10 * time.Second,
			}

			serveErr := make(chan error, 1)
			go func() {
				log.WithField("addr", cfg.Server.Addr).Info("bgqueue listening")
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serveErr <- err
				}
				close(serveErr)
			}()

			if !skipRestore {
				go func() {
					if err := a.engine.Restore(runCtx); err != nil {
						log.WithError(err).Error("restore failed")
					}
				}()
			}

			select {
			case <-runCtx.Done():
			case err := <-serveErr:
				if err != nil {
					_ = a.Close(context.Background())
					return err
				}
			}

			log.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return errors.Join(server.Shutdown(shutdownCtx), a.Close(shutdownCtx))
		},
	}
	cmd.Flags().BoolVar(&skipRestore, "no-restore", false, "Do not re-arm health checks for queues left over from a previous run")
	return cmd
}

func newRouter(a *app) http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	router.Get("/queues", func(w http.ResponseWriter, r *http.Request) {
		statuses, err := a.engine.Statuses(r.Context())
		if err != nil {
			log.WithError(err).Error("can not read queue status")
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		writeJSONResponse(w, statuses)
	})
	if !a.engine.Mount(router) {
		log.Warn("no dispatch secret configured, dispatch endpoint disabled")
	}
	return router
}
