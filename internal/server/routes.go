package server

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/lazypower/rollcall/internal/engine"
	"github.com/lazypower/rollcall/internal/store"
)

func (s *Server) handleConversations(w http.ResponseWriter, r *http.Request) {
	ids, err := s.store.ListConversations(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if ids == nil {
		ids = []int64{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"conversations": ids,
		"count":         len(ids),
	})
}

type memberJSON struct {
	MemberID     int64  `json:"member_id"`
	DisplayName  string `json:"display_name,omitempty"`
	LastActive   string `json:"last_active"`
	Warned       bool   `json:"warned"`
	DaysInactive int    `json:"days_inactive"`
	Status       string `json:"status"`
}

func (s *Server) handleMembers(w http.ResponseWriter, r *http.Request) {
	chatID, err := strconv.ParseInt(chi.URLParam(r, "chatID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "chat id must be an integer")
		return
	}

	recs, err := s.store.ListMembers(r.Context(), chatID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	today := engine.Today(s.now())
	out := make([]memberJSON, len(recs))
	for i, rec := range recs {
		out[i] = memberJSON{
			MemberID:     rec.MemberID,
			DisplayName:  rec.DisplayName,
			LastActive:   rec.LastActive.Format(store.DateLayout),
			Warned:       rec.Warned,
			DaysInactive: engine.DaysInactive(today, rec.LastActive),
			Status:       s.thresholds.Status(rec, today),
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"conversation_id": chatID,
		"members":         out,
		"count":           len(out),
	})
}
