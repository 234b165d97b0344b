// Package metrics exposes a running operation's progress as a tiny
// Prometheus-text-format endpoint (config.MetricsConfig). No
// Prometheus client dependency is pulled in for this, so this writes
// the handful of gauges by hand rather than reaching for stdlib
// net/http/pprof or fabricating a client dependency -- see DESIGN.md.
package metrics

import (
	"context"
	"fmt"
	"net/http"

	"github.com/vaultarc/vaultarc/internal/control"
)

// Server serves one job's control.StatusInfo as text/plain gauges at
// "/metrics", scoped to the lifetime of one operation (mirrors
// internal/control.Server's transient, one-shot-process lifecycle
// rather than a persistent daemon).
type Server struct {
	addr string
	job  control.Controllable
	srv  *http.Server
}

func NewServer(addr string, job control.Controllable) *Server {
	return &Server{addr: addr, job: job}
}

// Start listens until ctx is cancelled. A bind failure is returned to
// the caller to log, not treated as fatal -- an operation still runs
// to completion without a metrics endpoint.
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", s.handleMetrics)
	s.srv = &http.Server{Addr: s.addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		return s.srv.Close()
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	status := s.job.Status()
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	fmt.Fprintf(w, "vaultarc_entries_processed %d\n", status.Processed)
	fmt.Fprintf(w, "vaultarc_entries_total %d\n", status.Total)
	fmt.Fprintf(w, "vaultarc_paused %d\n", boolToGauge(status.Paused))
	fmt.Fprintf(w, "vaultarc_aborted %d\n", boolToGauge(status.Aborted))
}

func boolToGauge(b bool) int {
	if b {
		return 1
	}
	return 0
}
