package server

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type deckJSON struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Parameters map[string]any `json:"parameters"`
}

func createDeck(t *testing.T, srv http.Handler, body string) deckJSON {
	t.Helper()
	var d deckJSON
	w := do(t, srv, "POST", "/api/decks", body, &d)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return d
}

func addCards(t *testing.T, srv http.Handler, deckID string, n int) {
	t.Helper()
	for i := range n {
		body := fmt.Sprintf(`{"front":"q%d","back":"a%d"}`, i, i)
		w := do(t, srv, "POST", "/api/decks/"+deckID+"/cards", body, nil)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}
}

func TestCreateDeck(t *testing.T) {
	srv := testServer(t)

	d := createDeck(t, srv, `{"name":"spanish","parameters":{"daily_new_cards_limit":5}}`)
	require.NotEmpty(t, d.ID)
	assert.Equal(t, "spanish", d.Name)
	assert.Equal(t, float64(5), d.Parameters["daily_new_cards_limit"])
	assert.Equal(t, 0.9, d.Parameters["request_retention"], "unset fields keep defaults")

	var list struct {
		Decks []deckJSON `json:"decks"`
	}
	do(t, srv, "GET", "/api/decks", "", &list)
	assert.Len(t, list.Decks, 1)
}

func TestCreateDeckRejects(t *testing.T) {
	srv := testServer(t)

	cases := []struct {
		name string
		body string
	}{
		{"missing name", `{}`},
		{"bad json", `{"name":`},
		{"invalid parameters", `{"name":"x","parameters":{"request_retention":1.5}}`},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			w := do(t, srv, "POST", "/api/decks", c.body, nil)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
		})
	}
}

func TestParametersRoundTrip(t *testing.T) {
	srv := testServer(t)
	d := createDeck(t, srv, `{"name":"x"}`)

	var p map[string]any
	w := do(t, srv, "PUT", "/api/decks/"+d.ID+"/parameters", `{"daily_review_limit":7}`, &p)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, float64(7), p["daily_review_limit"])
	assert.Equal(t, float64(20), p["daily_new_cards_limit"])

	p = nil
	do(t, srv, "GET", "/api/decks/"+d.ID+"/parameters", "", &p)
	assert.Equal(t, float64(7), p["daily_review_limit"])

	w = do(t, srv, "PUT", "/api/decks/"+d.ID+"/parameters", `{"easy_bonus":0.5}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = do(t, srv, "GET", "/api/decks/missing/parameters", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateCardUnknownDeck(t *testing.T) {
	srv := testServer(t)
	w := do(t, srv, "POST", "/api/decks/nope/cards", `{"front":"a"}`, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

type gradeJSON struct {
	Done bool `json:"done"`
	Card struct {
		ID    string `json:"id"`
		State string `json:"state"`
	} `json:"card"`
}

func TestStudyFlow(t *testing.T) {
	srv := testServer(t)
	d := createDeck(t, srv, `{"name":"flow","parameters":{"daily_new_cards_limit":2}}`)
	addCards(t, srv, d.ID, 3)

	var start struct {
		SessionID string `json:"session_id"`
		Stats     struct {
			Total int `json:"total"`
		} `json:"stats"`
	}
	w := do(t, srv, "POST", "/api/sessions", `{"deck_id":"`+d.ID+`","user_id":"u1"}`, &start)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, 2, start.Stats.Total, "new-card limit")
	base := "/api/sessions/" + start.SessionID

	for i := range 2 {
		var next struct {
			Done  bool   `json:"done"`
			Front string `json:"front"`
			Card  struct {
				ID string `json:"id"`
			} `json:"card"`
		}
		do(t, srv, "GET", base+"/next", "", &next)
		require.False(t, next.Done, "next %d", i)
		require.NotEmpty(t, next.Card.ID)
		require.NotEmpty(t, next.Front)

		var g gradeJSON
		w := do(t, srv, "POST", base+"/grade", `{"card_id":"`+next.Card.ID+`","rating":"easy"}`, &g)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, "review", g.Card.State)
	}

	var next struct {
		Done bool `json:"done"`
	}
	do(t, srv, "GET", base+"/next", "", &next)
	assert.True(t, next.Done)

	var counts map[string]int
	do(t, srv, "GET", "/api/decks/"+d.ID+"/counts?user_id=u1", "", &counts)
	assert.Equal(t, 2, counts["new_studied_today"])
	assert.Equal(t, 0, counts["available_new"])
	assert.Equal(t, 1, counts["new_count"])

	var summary struct {
		TotalReviews int `json:"total_reviews"`
	}
	do(t, srv, "GET", "/api/stats/summary?deck_id="+d.ID, "", &summary)
	assert.Equal(t, 2, summary.TotalReviews)

	var daily struct {
		Days []struct {
			Reviews int `json:"reviews"`
			New     int `json:"new"`
		} `json:"days"`
	}
	do(t, srv, "GET", "/api/stats/daily?deck_id="+d.ID, "", &daily)
	require.Len(t, daily.Days, 1)
	assert.Equal(t, 2, daily.Days[0].Reviews)
	assert.Equal(t, 2, daily.Days[0].New)

	w = do(t, srv, "DELETE", base, "", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = do(t, srv, "GET", base+"/next", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGradeErrors(t *testing.T) {
	srv := testServer(t)
	d := createDeck(t, srv, `{"name":"x"}`)
	addCards(t, srv, d.ID, 2)

	var start struct {
		SessionID string `json:"session_id"`
	}
	do(t, srv, "POST", "/api/sessions", `{"deck_id":"`+d.ID+`"}`, &start)
	base := "/api/sessions/" + start.SessionID

	var next gradeJSON
	do(t, srv, "GET", base+"/next", "", &next)

	cases := []struct {
		name string
		body string
		want int
	}{
		{"unknown rating", `{"card_id":"` + next.Card.ID + `","rating":"meh"}`, http.StatusBadRequest},
		{"missing rating", `{"card_id":"` + next.Card.ID + `"}`, http.StatusBadRequest},
		{"wrong card", `{"card_id":"other","rating":"good"}`, http.StatusConflict},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			w := do(t, srv, "POST", base+"/grade", c.body, nil)
			assert.Equal(t, c.want, w.Code, w.Body.String())
		})
	}

	w := do(t, srv, "POST", "/api/sessions/nope/grade", `{"card_id":"a","rating":"good"}`, nil)
	assert.Equal(t, http.StatusNotFound, w.Code, "unknown session")
	w = do(t, srv, "POST", base+"/retry", "", nil)
	assert.Equal(t, http.StatusConflict, w.Code, "retry with nothing pending")
	w = do(t, srv, "POST", "/api/sessions", `{"deck_id":"missing"}`, nil)
	assert.Equal(t, http.StatusNotFound, w.Code, "session on missing deck")
}

func TestCardRoutes(t *testing.T) {
	srv := testServer(t)
	d := createDeck(t, srv, `{"name":"x"}`)
	addCards(t, srv, d.ID, 1)

	var list struct {
		Count int `json:"count"`
		Cards []struct {
			ID    string `json:"id"`
			Front string `json:"front"`
		} `json:"cards"`
	}
	do(t, srv, "GET", "/api/decks/"+d.ID+"/cards?state=new", "", &list)
	require.Equal(t, 1, list.Count)
	require.Len(t, list.Cards, 1)
	assert.Equal(t, "q0", list.Cards[0].Front)
	id := list.Cards[0].ID

	var preview map[string]struct {
		State string `json:"state"`
	}
	w := do(t, srv, "GET", "/api/cards/"+id+"/preview", "", &preview)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, preview, 4)
	assert.Equal(t, "learning", preview["again"].State)
	assert.Equal(t, "review", preview["easy"].State)

	var card struct {
		State string `json:"state"`
		Reps  int    `json:"reps"`
	}
	w = do(t, srv, "POST", "/api/cards/"+id+"/forget", `{"reset":true}`, &card)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "new", card.State)

	w = do(t, srv, "POST", "/api/cards/"+id+"/reschedule", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, srv, "GET", "/api/cards/missing/preview", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = do(t, srv, "GET", "/api/decks/"+d.ID+"/cards?state=buried", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStatsBadDate(t *testing.T) {
	srv := testServer(t)
	w := do(t, srv, "GET", "/api/stats/daily?from=yesterday", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
