package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/punchamoorthee/horus/internal/models"
)

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.CredentialsRequest
	if !decode(w, r, &req) {
		return
	}

	if err := h.accounts.Register(r.Context(), req.Username, req.Password, req.Email); err != nil {
		fail(w, r, err, "success")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"success": true, "user": req.Username})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.CredentialsRequest
	if !decode(w, r, &req) {
		return
	}

	if err := h.accounts.Login(r.Context(), req.Username, req.Password); err != nil {
		fail(w, r, err, "success")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"success": true, "user": req.Username})
}

func (h *Handler) UserExists(w http.ResponseWriter, r *http.Request) {
	exists, err := h.accounts.UserExists(r.Context(), mux.Vars(r)["username"])
	if err != nil {
		internalError(w, r, err, map[string]bool{"exists": false})
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"exists": exists})
}

func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	p, err := h.accounts.Profile(r.Context(), mux.Vars(r)["username"])
	if err != nil {
		internalError(w, r, err, nil)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.accounts.ListUsers(r.Context())
	if err != nil {
		internalError(w, r, err, []models.UserSummary{})
		return
	}

	users := make([]models.UserSummary, 0, len(profiles))
	for _, p := range profiles {
		users = append(users, models.UserSummary{
			Username: p.Username,
			Avatar:   p.Avatar,
			Status:   p.Status,
			Country:  p.Country,
			Level:    p.Level,
			XP:       p.XP,
			Rank:     p.Rank,
			IsAdmin:  p.IsAdmin,
		})
	}
	respondJSON(w, http.StatusOK, users)
}

func (h *Handler) SaveProfile(w http.ResponseWriter, r *http.Request) {
	var req models.SaveProfileRequest
	if !decode(w, r, &req) {
		return
	}

	if err := h.accounts.SaveProfile(r.Context(), req.Username, req.Data); err != nil {
		fail(w, r, err, "success")
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Handler) UpdateField(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateFieldRequest
	if !decode(w, r, &req) {
		return
	}

	if err := h.accounts.UpdateField(r.Context(), req.Username, req.Field, req.Value); err != nil {
		fail(w, r, err, "ok")
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handler) SetStatus(w http.ResponseWriter, r *http.Request) {
	var req models.SetStatusRequest
	if !decode(w, r, &req) {
		return
	}

	if err := h.accounts.SetStatus(r.Context(), req.Username, req.Status); err != nil {
		fail(w, r, err, "ok")
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handler) GlobalRanking(w http.ResponseWriter, r *http.Request) {
	entries, err := h.ranking.Global(r.Context())
	if err != nil {
		internalError(w, r, err, []models.RankingEntry{})
		return
	}
	respondJSON(w, http.StatusOK, entries)
}

func (h *Handler) ResetCompetitive(w http.ResponseWriter, r *http.Request) {
	if err := h.accounts.ResetCompetitive(r.Context()); err != nil {
		fail(w, r, err, "success")
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}
