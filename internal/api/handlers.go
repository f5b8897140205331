package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/songzhibin97/kolcred/internal/credibility"
	"github.com/songzhibin97/kolcred/internal/data"
	"github.com/songzhibin97/kolcred/internal/models"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

type profileResponse struct {
	Profile       *models.KOLProfile    `json:"profile"`
	Latest        *models.ScoreSnapshot `json:"latest"`
	FollowerCount int                   `json:"follower_count"`
}

type stakeRequest struct {
	Amount *float64 `json:"amount"`
}

type verificationRequest struct {
	Status models.VerificationStatus `json:"status"`
}

type followResponse struct {
	KOLID         string `json:"kol_id"`
	Address       string `json:"address"`
	Following     bool   `json:"following"`
	FollowerCount int    `json:"follower_count"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeStorageError maps storage errors to a response.
func (s *Server) writeStorageError(w http.ResponseWriter, err error, msg string) {
	if errors.Is(err, data.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	s.log.Error(msg, "error", err)
	writeError(w, http.StatusInternalServerError, msg)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func parseLimit(r *http.Request) (int, error) {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return defaultLimit, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid limit: %s", v)
	}
	if n > maxLimit {
		n = maxLimit
	}
	return n, nil
}

func (s *Server) healthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) categoriesHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"model_version": credibility.ModelVersion,
		"categories":    credibility.Categories(),
	})
}

func (s *Server) scoreHandler(w http.ResponseWriter, r *http.Request) {
	var params credibility.Params
	if err := decodeBody(w, r, &params); err != nil {
		writeError(w, http.StatusBadRequest, "error binding json")
		return
	}

	if params.StakeAmount < 0 {
		writeError(w, http.StatusBadRequest, "stake_amount must not be negative")
		return
	}
	if params.VerificationStatus != "" && !params.VerificationStatus.Valid() {
		writeError(w, http.StatusBadRequest, "unknown verification_status")
		return
	}

	writeJSON(w, http.StatusOK, s.evaluator.Evaluate(params))
}

func (s *Server) profileHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	p, err := s.storage.GetProfile(ctx, id)
	if err != nil {
		s.writeStorageError(w, err, "error getting profile")
		return
	}

	resp := profileResponse{Profile: p}

	resp.Latest, err = s.storage.GetLatestSnapshot(ctx, id)
	if err != nil && !errors.Is(err, data.ErrNotFound) {
		s.writeStorageError(w, err, "error getting latest snapshot")
		return
	}

	resp.FollowerCount, err = s.storage.FollowerCount(ctx, id)
	if err != nil {
		s.writeStorageError(w, err, "error counting followers")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) historyHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	limit, err := parseLimit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if _, err := s.storage.GetProfile(ctx, id); err != nil {
		s.writeStorageError(w, err, "error getting profile")
		return
	}

	list, err := s.storage.GetSnapshotHistory(ctx, id, limit)
	if err != nil {
		s.writeStorageError(w, err, "error getting history")
		return
	}

	writeJSON(w, http.StatusOK, list)
}

func (s *Server) stakeHandler(w http.ResponseWriter, r *http.Request) {
	var req stakeRequest
	if err := decodeBody(w, r, &req); err != nil || req.Amount == nil {
		writeError(w, http.StatusBadRequest, "error binding json")
		return
	}
	if *req.Amount < 0 {
		writeError(w, http.StatusBadRequest, "amount must not be negative")
		return
	}

	id := r.PathValue("id")
	if err := s.storage.UpdateStake(r.Context(), id, *req.Amount); err != nil {
		s.writeStorageError(w, err, "error updating stake")
		return
	}

	s.respondRescored(w, r, id)
}

func (s *Server) verificationHandler(w http.ResponseWriter, r *http.Request) {
	var req verificationRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "error binding json")
		return
	}
	if !req.Status.Valid() {
		writeError(w, http.StatusBadRequest, "unknown verification status")
		return
	}

	id := r.PathValue("id")
	if err := s.storage.UpdateVerificationStatus(r.Context(), id, req.Status); err != nil {
		s.writeStorageError(w, err, "error updating verification status")
		return
	}

	s.respondRescored(w, r, id)
}

// respondRescored rescores the KOL if it has been scored before and
// returns the updated profile.
func (s *Server) respondRescored(w http.ResponseWriter, r *http.Request, id string) {
	ctx := r.Context()

	p, err := s.storage.GetProfile(ctx, id)
	if err != nil {
		s.writeStorageError(w, err, "error getting profile")
		return
	}

	resp := profileResponse{Profile: p}

	resp.Latest, err = s.rescorer.Rescore(ctx, id)
	if err != nil && !errors.Is(err, data.ErrNotFound) {
		s.writeStorageError(w, err, "error rescoring profile")
		return
	}

	resp.FollowerCount, err = s.storage.FollowerCount(ctx, id)
	if err != nil {
		s.writeStorageError(w, err, "error counting followers")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) followHandler(w http.ResponseWriter, r *http.Request) {
	id, address := r.PathValue("id"), r.PathValue("address")
	if err := s.storage.Follow(r.Context(), id, address); err != nil {
		s.writeStorageError(w, err, "error following")
		return
	}
	s.respondFollow(w, r, id, address)
}

func (s *Server) unfollowHandler(w http.ResponseWriter, r *http.Request) {
	id, address := r.PathValue("id"), r.PathValue("address")
	if _, err := s.storage.GetProfile(r.Context(), id); err != nil {
		s.writeStorageError(w, err, "error getting profile")
		return
	}
	if err := s.storage.Unfollow(r.Context(), id, address); err != nil {
		s.writeStorageError(w, err, "error unfollowing")
		return
	}
	s.respondFollow(w, r, id, address)
}

func (s *Server) isFollowingHandler(w http.ResponseWriter, r *http.Request) {
	id, address := r.PathValue("id"), r.PathValue("address")
	if _, err := s.storage.GetProfile(r.Context(), id); err != nil {
		s.writeStorageError(w, err, "error getting profile")
		return
	}
	s.respondFollow(w, r, id, address)
}

func (s *Server) respondFollow(w http.ResponseWriter, r *http.Request, id, address string) {
	ctx := r.Context()

	following, err := s.storage.IsFollowing(ctx, id, address)
	if err != nil {
		s.writeStorageError(w, err, "error checking follow")
		return
	}

	n, err := s.storage.FollowerCount(ctx, id)
	if err != nil {
		s.writeStorageError(w, err, "error counting followers")
		return
	}

	writeJSON(w, http.StatusOK, followResponse{
		KOLID:         id,
		Address:       address,
		Following:     following,
		FollowerCount: n,
	})
}

func (s *Server) leaderboardHandler(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	list, err := s.storage.GetLeaderboard(r.Context(), limit)
	if err != nil {
		s.writeStorageError(w, err, "error getting leaderboard")
		return
	}

	writeJSON(w, http.StatusOK, list)
}
