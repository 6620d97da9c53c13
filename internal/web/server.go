package web

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gorilla/mux"

	"github.com/MrMartyK/source1.5/internal/fsutil"
	"github.com/MrMartyK/source1.5/internal/harness"
	"github.com/MrMartyK/source1.5/internal/storage"
)

// Server exposes the latest parity report, the screenshot and golden
// directories, and the run history over HTTP for human review.
type Server struct {
	addr          string
	screenshotDir string
	goldenDir     string
	store         *storage.Store
	log           *slog.Logger
}

// NewServer creates a report review server. store may be nil, in which
// case the history endpoints report an empty list.
func NewServer(addr, screenshotDir, goldenDir string, store *storage.Store, logger *slog.Logger) *Server {
	return &Server{
		addr:          addr,
		screenshotDir: screenshotDir,
		goldenDir:     goldenDir,
		store:         store,
		log:           logger,
	}
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	router := mux.NewRouter()
	router.HandleFunc("/healthz", s.handleHealth).Methods("GET")
	router.HandleFunc("/report", s.handleReport).Methods("GET")
	router.HandleFunc("/api/runs", s.handleRuns).Methods("GET")
	router.HandleFunc("/api/runs/{id}/outcomes", s.handleOutcomes).Methods("GET")
	router.PathPrefix("/screenshots/").Handler(
		http.StripPrefix("/screenshots/", http.FileServer(http.Dir(s.screenshotDir))))
	router.PathPrefix("/golden/").Handler(
		http.StripPrefix("/golden/", http.FileServer(http.Dir(s.goldenDir))))
	router.HandleFunc("/", s.handleReport).Methods("GET")

	srv := &http.Server{
		Addr:    s.addr,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("report server listening", "addr", s.addr)
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"status":"ok","time":%q}`, time.Now().Format(time.RFC3339))
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	report := filepath.Join(s.screenshotDir, harness.ReportName)
	if !fsutil.Exists(report) {
		http.Error(w, "no parity report generated yet", http.StatusNotFound)
		return
	}
	http.ServeFile(w, r, report)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	var runs []storage.RunRecord
	if s.store != nil {
		var err error
		runs, err = s.store.RecentRuns(50)
		if err != nil {
			s.log.Error("failed to list runs", "error", err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}
	if runs == nil {
		runs = []storage.RunRecord{}
	}
	writeJSON(w, runs)
}

func (s *Server) handleOutcomes(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeJSON(w, []harness.Outcome{})
		return
	}
	id := mux.Vars(r)["id"]
	outcomes, err := s.store.RunOutcomes(id)
	if err != nil {
		s.log.Error("failed to list outcomes", "run", id, "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if outcomes == nil {
		outcomes = []harness.Outcome{}
	}
	writeJSON(w, outcomes)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
