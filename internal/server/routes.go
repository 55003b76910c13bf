package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lazypower/cadence/internal/engine"
	"github.com/lazypower/cadence/internal/fsrs"
	"github.com/lazypower/cadence/internal/stats"
	"github.com/lazypower/cadence/internal/store"
)

const maxBodyBytes = 1 << 20

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Body == nil || r.ContentLength == 0 {
		return true
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		badRequest(w, "invalid json")
		return false
	}
	return true
}

func (s *Server) handleListDecks(w http.ResponseWriter, r *http.Request) {
	decks, err := s.db.ListDecks(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if decks == nil {
		decks = []store.Deck{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"decks": decks})
}

func (s *Server) handleCreateDeck(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name       string          `json:"name"`
		Parameters json.RawMessage `json:"parameters"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		badRequest(w, "name required")
		return
	}

	params := s.defaults.Clone()
	if len(req.Parameters) > 0 {
		if err := json.Unmarshal(req.Parameters, &params); err != nil {
			badRequest(w, "invalid parameters: "+err.Error())
			return
		}
	}

	deck, err := s.db.CreateDeck(r.Context(), req.Name, params)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.log.InfoContext(r.Context(), "deck created", "deck_id", deck.ID, "name", deck.Name)
	writeJSON(w, http.StatusCreated, deck)
}

func (s *Server) handleGetParameters(w http.ResponseWriter, r *http.Request) {
	p, err := s.db.GetSchedulerParameters(r.Context(), chi.URLParam(r, "deckID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// handlePutParameters applies a partial update: fields left out of the
// body keep their current values.
func (s *Server) handlePutParameters(w http.ResponseWriter, r *http.Request) {
	deckID := chi.URLParam(r, "deckID")
	p, err := s.db.GetSchedulerParameters(r.Context(), deckID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !decodeBody(w, r, &p) {
		return
	}
	if err := s.db.UpdateDeckParameters(r.Context(), deckID, p); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.engine.InvalidateParameters(deckID)
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleDeckCounts(w http.ResponseWriter, r *http.Request) {
	counts, err := s.engine.DeckCounts(r.Context(), chi.URLParam(r, "deckID"), r.URL.Query().Get("user_id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

func (s *Server) handleListCards(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var f store.CardFilter
	if v := q.Get("state"); v != "" {
		for _, name := range strings.Split(v, ",") {
			st, err := fsrs.ParseState(strings.TrimSpace(name))
			if err != nil {
				badRequest(w, err.Error())
				return
			}
			f.States = append(f.States, st)
		}
	}
	if q.Get("due") == "true" {
		f.DueBefore = time.Now()
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			badRequest(w, "limit must be a non-negative integer")
			return
		}
		f.Limit = n
	}

	cards, err := s.db.ListCards(r.Context(), chi.URLParam(r, "deckID"), f)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if cards == nil {
		cards = []store.CardRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": len(cards), "cards": cards})
}

func (s *Server) handleCreateCard(w http.ResponseWriter, r *http.Request) {
	deckID := chi.URLParam(r, "deckID")
	var req struct {
		Front string `json:"front"`
		Back  string `json:"back"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Front == "" {
		badRequest(w, "front required")
		return
	}

	deck, err := s.db.GetDeck(r.Context(), deckID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if deck == nil {
		s.writeError(w, r, fmt.Errorf("deck %s: %w", deckID, store.ErrNotFound))
		return
	}

	card, err := s.db.CreateCard(r.Context(), deckID, req.Front, req.Back, time.Now())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, card)
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	preview, err := s.engine.Preview(r.Context(), chi.URLParam(r, "cardID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make(map[fsrs.Rating]fsrs.Card, len(preview))
	for rating, res := range preview {
		out[rating] = res.Card
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleForget(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reset bool `json:"reset"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	card, err := s.engine.Forget(r.Context(), chi.URLParam(r, "cardID"), req.Reset)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, card)
}

func (s *Server) handleReschedule(w http.ResponseWriter, r *http.Request) {
	card, err := s.engine.Reschedule(r.Context(), chi.URLParam(r, "cardID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, card)
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DeckID string `json:"deck_id"`
		UserID string `json:"user_id"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.DeckID == "" {
		badRequest(w, "deck_id required")
		return
	}

	st, err := s.engine.StartSession(r.Context(), req.DeckID, req.UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	id := s.sessions.add(st)
	writeJSON(w, http.StatusCreated, map[string]any{
		"session_id": id,
		"deck_id":    st.DeckID,
		"quota":      st.Quota,
		"stats":      st.Queue.Stats(),
	})
}

func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	ls, ok := s.sessions.get(chi.URLParam(r, "sessionID"))
	if !ok {
		s.writeError(w, r, errSessionNotFound)
		return
	}
	defer ls.mu.Unlock()

	card, ok := s.engine.Next(ls.study)
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"done": true, "stats": ls.study.Queue.Stats()})
		return
	}

	rec, err := s.db.GetCard(r.Context(), card.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	body := map[string]any{"done": false, "card": card}
	if rec != nil {
		body["front"] = rec.Front
		body["back"] = rec.Back
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleGrade(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CardID string      `json:"card_id"`
		Rating fsrs.Rating `json:"rating"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.CardID == "" || !req.Rating.IsValid() {
		badRequest(w, "card_id and rating (again, hard, good, easy) required")
		return
	}

	ls, ok := s.sessions.get(chi.URLParam(r, "sessionID"))
	if !ok {
		s.writeError(w, r, errSessionNotFound)
		return
	}
	defer ls.mu.Unlock()

	if ls.pending != nil {
		writeJSON(w, http.StatusConflict, map[string]any{"error": "previous grade not saved", "retry": true})
		return
	}

	res, err := s.engine.Grade(r.Context(), ls.study, req.CardID, req.Rating)
	if err != nil {
		var pe *engine.PersistenceError
		if errors.As(err, &pe) {
			pending := pe.Result
			ls.pending = &pending
		}
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"card": res.Card,
		"log":  res.Log,
		"done": ls.study.Queue.Done(),
	})
}

func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request) {
	ls, ok := s.sessions.get(chi.URLParam(r, "sessionID"))
	if !ok {
		s.writeError(w, r, errSessionNotFound)
		return
	}
	defer ls.mu.Unlock()

	if ls.pending == nil {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "nothing to retry"})
		return
	}
	if err := s.engine.RetryPersist(r.Context(), ls.study, *ls.pending); err != nil {
		s.writeError(w, r, err)
		return
	}
	card := ls.pending.Card
	ls.pending = nil
	writeJSON(w, http.StatusOK, map[string]any{"card": card, "done": ls.study.Queue.Done()})
}

func (s *Server) handleSessionStats(w http.ResponseWriter, r *http.Request) {
	ls, ok := s.sessions.get(chi.URLParam(r, "sessionID"))
	if !ok {
		s.writeError(w, r, errSessionNotFound)
		return
	}
	defer ls.mu.Unlock()
	writeJSON(w, http.StatusOK, ls.study.Queue.Stats())
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	if !s.sessions.remove(chi.URLParam(r, "sessionID")) {
		s.writeError(w, r, errSessionNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// statsFilter reads deck_id, user_id and either year or from/to dates
// (inclusive, YYYY-MM-DD in the study-day time zone).
func (s *Server) statsFilter(r *http.Request) (stats.Filter, error) {
	q := r.URL.Query()
	loc := s.engine.DayBoundary().Location
	if loc == nil {
		loc = time.UTC
	}

	var f stats.Filter
	if v := q.Get("year"); v != "" {
		year, err := strconv.Atoi(v)
		if err != nil {
			return f, fmt.Errorf("year: %w", fsrs.ErrInvalidInput)
		}
		f = stats.Year(year, loc)
	}
	if v := q.Get("from"); v != "" {
		t, err := time.ParseInLocation(time.DateOnly, v, loc)
		if err != nil {
			return f, fmt.Errorf("from: %w", fsrs.ErrInvalidInput)
		}
		f.From = t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.ParseInLocation(time.DateOnly, v, loc)
		if err != nil {
			return f, fmt.Errorf("to: %w", fsrs.ErrInvalidInput)
		}
		f.To = t.AddDate(0, 0, 1)
	}
	f.DeckID = q.Get("deck_id")
	f.UserID = q.Get("user_id")
	return f, nil
}

func (s *Server) handleDailyStats(w http.ResponseWriter, r *http.Request) {
	f, err := s.statsFilter(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	days, err := s.engine.Stats().ReviewsPerDay(r.Context(), f)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if days == nil {
		days = []stats.Day{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"days": days})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	f, err := s.statsFilter(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sum, err := s.engine.Stats().Summary(r.Context(), f, time.Now())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}
