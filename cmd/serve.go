package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/bookgen/internal/model"
	"github.com/sells-group/bookgen/internal/store"
)

var (
	servePort    int
	serveOffline bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start an HTTP server that accepts generation requests",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx, cfg.Book, serveOffline)
		if err != nil {
			return err
		}
		defer env.Close()

		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(middleware.Recoverer)
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
		}))

		r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		r.Post("/generate", func(w http.ResponseWriter, req *http.Request) {
			var body struct {
				Problem string `json:"problem"`
			}
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
				return
			}
			if body.Problem == "" {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "problem is required"})
				return
			}

			run, err := env.Store.CreateRun(req.Context(), body.Problem)
			if err != nil {
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "creating run failed"})
				return
			}

			// Generation runs in the background against the server's
			// lifecycle context, not the request's.
			go func() {
				_ = env.Store.UpdateRunStatus(ctx, run.ID, model.RunStatusRunning)
				_, result, runErr := env.Pipeline.Run(ctx, run.ID, body.Problem)
				status := model.RunStatusComplete
				if runErr != nil {
					status = model.RunStatusFailed
					zap.L().Error("background generation failed",
						zap.String("run_id", run.ID),
						zap.Error(runErr),
					)
				}
				if err := env.Store.UpdateRunResult(ctx, run.ID, status, result); err != nil {
					zap.L().Warn("persisting run result failed", zap.Error(err))
				}
			}()

			writeJSON(w, http.StatusAccepted, map[string]string{
				"status": "accepted",
				"run_id": run.ID,
			})
		})

		r.Get("/runs", func(w http.ResponseWriter, req *http.Request) {
			runs, err := env.Store.ListRuns(req.Context(), store.RunFilter{
				Status: model.RunStatus(req.URL.Query().Get("status")),
				Limit:  50,
			})
			if err != nil {
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "listing runs failed"})
				return
			}
			writeJSON(w, http.StatusOK, runs)
		})

		r.Get("/runs/{id}", func(w http.ResponseWriter, req *http.Request) {
			run, err := env.Store.GetRun(req.Context(), chi.URLParam(req, "id"))
			if err != nil {
				writeJSON(w, http.StatusNotFound, map[string]string{"error": "run not found"})
				return
			}
			writeJSON(w, http.StatusOK, run)
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: r,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			_ = srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().BoolVar(&serveOffline, "offline", false, "use stub backends instead of live APIs")
	rootCmd.AddCommand(serveCmd)
}
