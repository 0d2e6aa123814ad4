package api

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/punchamoorthee/horus/internal/models"
)

func (h *Handler) SendDuel(w http.ResponseWriter, r *http.Request) {
	var req models.ChallengeRequest
	if !decode(w, r, &req) {
		return
	}

	d, err := h.duels.Challenge(r.Context(), req.Username, req.ToUsername)
	if err != nil {
		fail(w, r, err, "ok")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"ok": true, "duel": models.NewDuel(d)})
}

func (h *Handler) AcceptDuel(w http.ResponseWriter, r *http.Request) {
	var req models.DuelActionRequest
	if !decode(w, r, &req) {
		return
	}

	d, err := h.duels.Accept(r.Context(), req.Username, req.DuelID)
	if err != nil {
		fail(w, r, err, "ok")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"ok": true, "duel": models.NewDuel(d)})
}

func (h *Handler) RejectDuel(w http.ResponseWriter, r *http.Request) {
	var req models.DuelActionRequest
	if !decode(w, r, &req) {
		return
	}

	if err := h.duels.Reject(r.Context(), req.Username, req.DuelID); err != nil {
		fail(w, r, err, "ok")
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handler) ExpireDuel(w http.ResponseWriter, r *http.Request) {
	var req models.DuelActionRequest
	if !decode(w, r, &req) {
		return
	}

	if err := h.duels.ForceExpire(r.Context(), req.DuelID); err != nil {
		fail(w, r, err, "ok")
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handler) CurrentDuel(w http.ResponseWriter, r *http.Request) {
	d, err := h.duels.CurrentDuel(r.Context(), mux.Vars(r)["username"])
	if err != nil {
		internalError(w, r, err, nil)
		return
	}
	respondJSON(w, http.StatusOK, models.NewDuel(d))
}

func (h *Handler) ReportDuel(w http.ResponseWriter, r *http.Request) {
	var req models.ReportRequest
	if !decode(w, r, &req) {
		return
	}

	applied, err := h.duels.ReportResult(r.Context(), req.DuelID, req.Player, req.Result)
	if err != nil {
		internalError(w, r, err, map[string]bool{"ok": false})
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"ok": applied})
}

func (h *Handler) CheckDuel(w http.ResponseWriter, r *http.Request) {
	duelID, err := strconv.ParseInt(mux.Vars(r)["duelId"], 10, 64)
	if err != nil {
		respondJSON(w, http.StatusOK, models.CheckResponse{})
		return
	}

	out, err := h.duels.CheckAndFinalize(r.Context(), duelID)
	if err != nil {
		internalError(w, r, err, models.CheckResponse{})
		return
	}
	respondJSON(w, http.StatusOK, models.CheckResponse{
		Finished: out.Finished,
		Invalid:  out.Invalid,
		Winner:   out.Winner,
		Loser:    out.Loser,
	})
}
