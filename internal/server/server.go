// Package server implements the HTTP/WebSocket transport adapter:
// request/response handling and a push-message sink keyed by client
// session id, wired onto the evaluation-job lifecycle in internal/app.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/bobmcallan/crab-eval/internal/app"
	"github.com/bobmcallan/crab-eval/internal/common"
	"github.com/bobmcallan/crab-eval/internal/evaljob"
)

// Server wraps the HTTP server, the application core, and the WebSocket
// hub used as the Observer push sink.
type Server struct {
	app    *app.App
	hub    *Hub
	server *http.Server
	logger *common.Logger
}

// NewServer builds the HTTP mux and binds it to a.
func NewServer(a *app.App) *Server {
	s := &Server{app: a, logger: a.Logger}
	s.hub = NewHub(a.Logger, s.onSessionDisconnect, s.onQueuePositionQuery)

	mux := http.NewServeMux()
	s.registerRoutes(mux)

	host := a.Config.Server.Host
	port := a.Config.Server.Port
	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", host, port),
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 300 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the HTTP handler for testing.
func (s *Server) Handler() http.Handler { return s.server.Handler }

// Start starts the HTTP server (blocking).
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("starting evaluation server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/api/hello", s.handleHello)
	mux.HandleFunc("/ws", s.hub.ServeWS)

	mux.HandleFunc("/answers/submit/comment", s.handleSubmitComment)
	mux.HandleFunc("/answers/submit/refinement", s.handleSubmitRefinement)
	mux.HandleFunc("/answers/status/", s.handleStatus)

	mux.HandleFunc("/datasets/download/", s.handleDatasetDownload)
}

// onSessionDisconnect detaches sessionID's Observer, if any, on socket
// close. This must not affect the job's own progress.
func (s *Server) onSessionDisconnect(sessionID string) {
	s.app.Registry.DetachSession(sessionID)
}

// onQueuePositionQuery answers an inbound get_queue_position WebSocket
// frame for jobID, independent of which session is asking.
func (s *Server) onQueuePositionQuery(_ string, jobID string) (string, int, bool) {
	job, ok := s.app.JobByID(jobID)
	if !ok {
		return "", 0, false
	}
	return string(job.Status()), s.app.QueuePosition(jobID), true
}

// attachObserverIfRequested wires a fresh Observer for sessionID onto job
// when a session id is present and the caller isn't already listening on
// this exact job. It returns (ok, alreadyListening).
func (s *Server) attachObserverIfRequested(sessionID string, job *evaljob.Job) (ok bool, alreadyListening bool) {
	if sessionID == "" {
		return true, false
	}

	_, err := s.app.Registry.Attach(
		sessionID,
		job,
		func() evaljob.Observer {
			return evaljob.NewSocketObserver(sessionID, s.hub, func(obs *evaljob.SocketObserver) {
				s.app.Registry.Detach(obs)
			})
		},
		func() { s.hub.Push(sessionID, "changing-subject", nil) },
	)
	if err == evaljob.ErrAlreadyListening {
		return false, true
	}
	return err == nil, false
}
