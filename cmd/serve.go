package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/fusion-intel/internal/audit"
	"github.com/sells-group/fusion-intel/internal/model"
	"github.com/sells-group/fusion-intel/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the proposal review API for the dashboard",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		trail := audit.NewTrail(st, zap.L())

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           reviewRouter(st, trail),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			zap.L().Info("review API listening", zap.Int("port", port))
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errCh <- err
			}
		}()

		select {
		case err := <-errCh:
			return eris.Wrap(err, "serve")
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}

// reviewRouter builds the HTTP surface consumed by the review dashboard.
func reviewRouter(st store.Store, trail *audit.Trail) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/proposals", func(w http.ResponseWriter, req *http.Request) {
		limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
		pending, err := st.ListPendingProposals(req.Context(), limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		if pending == nil {
			pending = []model.UpdateProposal{}
		}
		writeJSON(w, http.StatusOK, pending)
	})

	r.Post("/proposals/{id}/approve", func(w http.ResponseWriter, req *http.Request) {
		id, review, ok := decodeReview(w, req)
		if !ok {
			return
		}
		applied, err := st.ApproveProposal(req.Context(), id, review.ReviewedBy)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		if !applied {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "proposal is not pending"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"id": id, "status": model.ProposalStatusApproved})
	})

	r.Post("/proposals/{id}/reject", func(w http.ResponseWriter, req *http.Request) {
		id, review, ok := decodeReview(w, req)
		if !ok {
			return
		}
		rejected, err := st.RejectProposal(req.Context(), id, review.ReviewedBy, review.Notes)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		if !rejected {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "proposal is not pending"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"id": id, "status": model.ProposalStatusRejected})
	})

	r.Get("/audit", func(w http.ResponseWriter, req *http.Request) {
		q := req.URL.Query()
		limit, _ := strconv.Atoi(q.Get("limit"))
		entityID, _ := strconv.ParseInt(q.Get("entity_id"), 10, 64)

		var entries []model.AuditEntry
		var err error
		if entityType := q.Get("entity_type"); entityType != "" {
			entries, err = trail.History(req.Context(), model.EntityType(entityType), entityID, limit)
		} else {
			entries, err = trail.Recent(req.Context(), limit)
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		if entries == nil {
			entries = []model.AuditEntry{}
		}
		writeJSON(w, http.StatusOK, entries)
	})

	return r
}

// reviewRequest is the body of approve/reject calls.
type reviewRequest struct {
	ReviewedBy string `json:"reviewed_by"`
	Notes      string `json:"notes,omitempty"`
}

func decodeReview(w http.ResponseWriter, req *http.Request) (int64, reviewRequest, bool) {
	id, err := strconv.ParseInt(chi.URLParam(req, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid proposal id"})
		return 0, reviewRequest{}, false
	}

	var review reviewRequest
	if err := json.NewDecoder(req.Body).Decode(&review); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return 0, reviewRequest{}, false
	}
	if review.ReviewedBy == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "reviewed_by is required"})
		return 0, reviewRequest{}, false
	}
	return id, review, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	zap.L().Error("request failed", zap.Error(err))
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "listen port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
