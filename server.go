package googlestt

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/luiz-pereira/go-google-stt/config"
	"github.com/luiz-pereira/go-google-stt/metrics"
	"github.com/luiz-pereira/go-google-stt/transport"
)

// Server exposes transcription sessions over WebSocket, one session per
// connection, plus a Prometheus /metrics endpoint.
type Server struct {
	srv      *http.Server
	log      *log.Logger
	provider transport.Provider
	speech   config.SpeechConfig
	metrics  *metrics.Metrics
}

// NewServer builds a server from cfg. Sessions opened over /ws inherit the
// recognition defaults in cfg.Speech.
func NewServer(cfg *config.Config, provider transport.Provider, logger *log.Logger) *Server {
	mux := http.NewServeMux()
	registry := prometheus.NewRegistry()

	server := &Server{
		srv: &http.Server{
			Addr:         cfg.Server.Address,
			ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
			WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
			IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
			Handler:      mux,
		},
		log:      logger,
		provider: provider,
		speech:   cfg.Speech,
		metrics:  metrics.New(registry),
	}

	mux.HandleFunc("/ws", server.handleWebSocket)
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	return server
}

// Start runs the listener until Stop is called. Returns nil on clean shutdown.
func (s *Server) Start() error {
	var wg sync.WaitGroup
	errChan := make(chan error, 1)
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.log.Info("starting server", "addr", s.srv.Addr)
		errChan <- s.srv.ListenAndServe()
	}()

	wg.Wait()
	close(errChan)
	for err := range errChan {
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	return nil
}

// Stop shuts the server down gracefully.
func (s *Server) Stop() error {
	s.log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return s.srv.Shutdown(ctx)
}
