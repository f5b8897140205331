package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/songzhibin97/kolcred/internal/credibility"
	"github.com/songzhibin97/kolcred/internal/data"
	"github.com/songzhibin97/kolcred/internal/models"
)

const (
	shutdownWait   = 5 * time.Second
	requestTimeout = 30 * time.Second
	maxHeaderBytes = 1 << 20
	maxBodyBytes   = 1 << 20
)

// Rescorer recomputes a KOL's score after stake or verification changes.
type Rescorer interface {
	Rescore(ctx context.Context, id string) (*models.ScoreSnapshot, error)
}

type Server struct {
	storage   data.ProfileStorage
	evaluator credibility.Evaluator
	rescorer  Rescorer
	log       *slog.Logger
}

func NewServer(storage data.ProfileStorage, evaluator credibility.Evaluator, rescorer Rescorer, log *slog.Logger) *Server {
	return &Server{
		storage:   storage,
		evaluator: evaluator,
		rescorer:  rescorer,
		log:       log,
	}
}

// Handler returns the API router.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.healthHandler)

	// Scoring
	mux.HandleFunc("POST /api/v1/score", s.scoreHandler)
	mux.HandleFunc("GET /api/v1/categories", s.categoriesHandler)

	// Profiles
	mux.HandleFunc("GET /api/v1/kols/{id}", s.profileHandler)
	mux.HandleFunc("GET /api/v1/kols/{id}/history", s.historyHandler)
	mux.HandleFunc("PUT /api/v1/kols/{id}/stake", s.stakeHandler)
	mux.HandleFunc("PUT /api/v1/kols/{id}/verification", s.verificationHandler)

	// Follows
	mux.HandleFunc("POST /api/v1/kols/{id}/followers/{address}", s.followHandler)
	mux.HandleFunc("DELETE /api/v1/kols/{id}/followers/{address}", s.unfollowHandler)
	mux.HandleFunc("GET /api/v1/kols/{id}/followers/{address}", s.isFollowingHandler)

	mux.HandleFunc("GET /api/v1/leaderboard", s.leaderboardHandler)

	return mux
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:           addr,
		Handler:        s.Handler(),
		ReadTimeout:    requestTimeout,
		WriteTimeout:   requestTimeout,
		MaxHeaderBytes: maxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	s.log.Info("server started", "address", addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownWait)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.log.Error("error shutting down server", "error", err)
		return err
	}
	s.log.Info("server stopped")
	return nil
}
