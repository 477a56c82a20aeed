package dispatch

import (
	"context"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/soroosh-tanzadeh/bgqueue/runner"

	log "github.com/sirupsen/logrus"
)

type QueueRunner interface {
	Run(ctx context.Context, queue, lockToken string) (runner.Report, error)
}

// Server is the inbound side of HTTPDispatcher. Every request is answered
// with 202 Accepted; requests that fail authentication are dropped silently.
type Server struct {
	signer *TokenSigner
	runner QueueRunner
	path   string

	wg sync.WaitGroup
}

func NewServer(path string, signer *TokenSigner, r QueueRunner) *Server {
	if path == "" {
		path = "/dispatch"
	}
	return &Server{signer: signer, runner: r, path: path}
}

func (s *Server) Mount(router chi.Router) {
	router.Post(s.path, s.handle)
}

func (s *Server) Handler() http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	s.Mount(router)
	return router
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	err := r.ParseForm()
	w.WriteHeader(http.StatusAccepted)
	if err != nil {
		log.WithError(err).Debug("dispatch: malformed request")
		return
	}
	if r.PostFormValue("action") != ActionRunQueue {
		log.Debug("dispatch: unknown action")
		return
	}
	claims, err := s.signer.Verify(r.PostFormValue("nonce"))
	if err != nil {
		log.WithError(err).Debug("dispatch: rejected token")
		return
	}
	if !s.signer.Consume(claims) {
		log.WithField("queue", claims.Queue).Warn("dispatch: token replayed")
		return
	}

	ctx := context.WithoutCancel(r.Context())
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx, claims.Queue, claims.LockToken)
	}()
}

func (s *Server) run(ctx context.Context, queue, lockToken string) {
	report, err := s.runner.Run(ctx, queue, lockToken)
	logger := log.WithField("queue", queue).
		WithField("outcome", report.Outcome).
		WithField("processed", report.Processed).
		WithField("duration", report.Duration)
	if err != nil {
		logger.WithError(err).Error("runner invocation failed")
		return
	}
	logger.Debug("runner invocation finished")
}

// Wait blocks until every accepted invocation returns or ctx is done.
func (s *Server) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
