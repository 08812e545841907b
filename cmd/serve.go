package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/christosporios/strategic-investments-gr/internal/model"
	"github.com/christosporios/strategic-investments-gr/internal/snapshot"
)

var servePort int

// snapshotCache reloads the snapshot from disk lazily. The file is replaced
// atomically by ingest runs, so a plain re-read is always consistent.
type snapshotCache struct {
	mu   sync.RWMutex
	path string
	snap *model.Snapshot
}

func (c *snapshotCache) get() (*model.Snapshot, error) {
	c.mu.RLock()
	if c.snap != nil {
		snap := c.snap
		c.mu.RUnlock()
		return snap, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.snap == nil {
		snap, err := snapshot.Load(c.path)
		if err != nil {
			return nil, err
		}
		c.snap = snap
	}
	return c.snap, nil
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the snapshot over a read-only HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		cache := &snapshotCache{path: cfg.Snapshot.Path}
		if _, err := cache.get(); err != nil {
			return err
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: buildRouter(cache),
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "serve: listen")
		}

		return nil
	},
}

// buildRouter assembles the read-only API routes.
func buildRouter(cache *snapshotCache) http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet},
	}))

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/investments", func(w http.ResponseWriter, req *http.Request) {
		snap, err := cache.get()
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "snapshot unavailable"})
			return
		}
		writeJSON(w, http.StatusOK, snap)
	})

	r.Get("/investments/{code}", func(w http.ResponseWriter, req *http.Request) {
		snap, err := cache.get()
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "snapshot unavailable"})
			return
		}
		code := chi.URLParam(req, "code")
		for i := range snap.Investments {
			if snap.Investments[i].ADA() == code {
				writeJSON(w, http.StatusOK, snap.Investments[i])
				return
			}
		}
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no investment with that code"})
	})

	r.Get("/stats", func(w http.ResponseWriter, req *http.Request) {
		snap, err := cache.get()
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "snapshot unavailable"})
			return
		}
		var total float64
		for i := range snap.Investments {
			total += snap.Investments[i].TotalAmount
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"generatedAt":       snap.Metadata.GeneratedAt,
			"totalInvestments":  len(snap.Investments),
			"totalAmount":       total,
			"revisionsExcluded": len(snap.Metadata.RevisionsExcluded),
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
