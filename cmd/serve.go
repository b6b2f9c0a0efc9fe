package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/SorbetUP/BudgetExplorer/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve generated artifacts and run history over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		if st != nil {
			defer st.Close() //nolint:errcheck
			if err := st.Migrate(ctx); err != nil {
				return eris.Wrap(err, "migrate store")
			}
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newRouter(cfg.Output.Dir, st),
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			if err := shutdownServer(srv); err != nil {
				zap.L().Warn("server shutdown", zap.Error(err))
			}
		}()

		zap.L().Info("starting server", zap.Int("port", port), zap.String("artifacts", cfg.Output.Dir))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// shutdownServer drains in-flight requests with its own deadline; the
// signal context is already canceled by the time shutdown starts.
func shutdownServer(srv *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}

// newRouter builds the artifact API. The artifact files are public open data,
// so CORS is wide open.
func newRouter(artifactDir string, st store.Store) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeHTTPJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/artifacts", func(w http.ResponseWriter, _ *http.Request) {
		names, err := listArtifacts(artifactDir)
		if err != nil {
			writeHTTPJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		writeHTTPJSON(w, http.StatusOK, map[string]any{"artifacts": names})
	})

	r.Get("/artifacts/{name}", func(w http.ResponseWriter, req *http.Request) {
		name := chi.URLParam(req, "name")
		if name != filepath.Base(name) || !strings.HasSuffix(name, ".json") {
			writeHTTPJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid artifact name"})
			return
		}
		path := filepath.Join(artifactDir, name)
		if _, err := os.Stat(path); err != nil {
			writeHTTPJSON(w, http.StatusNotFound, map[string]string{"error": "artifact not found"})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		http.ServeFile(w, req, path)
	})

	r.Get("/runs", func(w http.ResponseWriter, req *http.Request) {
		if st == nil {
			writeHTTPJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "run log disabled"})
			return
		}
		runs, err := st.ListRuns(req.Context(), 100)
		if err != nil {
			writeHTTPJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		writeHTTPJSON(w, http.StatusOK, map[string]any{"runs": runs})
	})

	r.Get("/runs/{id}", func(w http.ResponseWriter, req *http.Request) {
		if st == nil {
			writeHTTPJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "run log disabled"})
			return
		}
		id := chi.URLParam(req, "id")
		run, err := st.GetRun(req.Context(), id)
		if err != nil {
			writeHTTPJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
			return
		}
		tracks, err := st.ListTracks(req.Context(), id)
		if err != nil {
			writeHTTPJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		writeHTTPJSON(w, http.StatusOK, map[string]any{"run": run, "tracks": tracks})
	})

	return r
}

func listArtifacts(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return []string{}, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "read artifact dir %s", dir)
	}
	names := []string{}
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

func writeHTTPJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
