package api

import (
	"net/http"

	"github.com/punchamoorthee/horus/internal/models"
)

func (h *Handler) Friends(w http.ResponseWriter, r *http.Request) {
	var req models.FriendRequest
	if !decode(w, r, &req) {
		return
	}

	lists, err := h.friends.Lists(r.Context(), req.Username)
	if err != nil {
		fail(w, r, err, "ok")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"ok": true, "data": lists})
}

func (h *Handler) SendFriendRequest(w http.ResponseWriter, r *http.Request) {
	var req models.FriendRequest
	if !decode(w, r, &req) {
		return
	}

	auto, err := h.friends.Send(r.Context(), req.Username, req.ToUser)
	if err != nil {
		fail(w, r, err, "ok")
		return
	}
	if auto {
		respondJSON(w, http.StatusOK, map[string]bool{"ok": true, "autoAccepted": true})
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handler) AcceptFriendRequest(w http.ResponseWriter, r *http.Request) {
	var req models.FriendRequest
	if !decode(w, r, &req) {
		return
	}

	if err := h.friends.Accept(r.Context(), req.Username, req.FromUser); err != nil {
		fail(w, r, err, "ok")
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handler) RejectFriendRequest(w http.ResponseWriter, r *http.Request) {
	var req models.FriendRequest
	if !decode(w, r, &req) {
		return
	}

	if err := h.friends.Reject(r.Context(), req.Username, req.FromUser); err != nil {
		fail(w, r, err, "ok")
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handler) RemoveFriend(w http.ResponseWriter, r *http.Request) {
	var req models.FriendRequest
	if !decode(w, r, &req) {
		return
	}

	if err := h.friends.Remove(r.Context(), req.Username, req.Friend); err != nil {
		fail(w, r, err, "ok")
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handler) Tournaments(w http.ResponseWriter, r *http.Request) {
	list, err := h.tournaments.List(r.Context())
	if err != nil {
		internalError(w, r, err, models.TournamentsResponse{})
		return
	}
	respondJSON(w, http.StatusOK, list)
}

func (h *Handler) CreateTournament(w http.ResponseWriter, r *http.Request) {
	var req models.CreateTournamentRequest
	if !decode(w, r, &req) {
		return
	}

	t, err := h.tournaments.Create(r.Context(), req)
	if err != nil {
		fail(w, r, err, "ok")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"ok": true, "tournament": t})
}

func (h *Handler) UpdateTournament(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateTournamentRequest
	if !decode(w, r, &req) {
		return
	}

	if err := h.tournaments.Update(r.Context(), req); err != nil {
		fail(w, r, err, "ok")
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handler) FinishTournament(w http.ResponseWriter, r *http.Request) {
	if err := h.tournaments.Finish(r.Context()); err != nil {
		fail(w, r, err, "ok")
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
