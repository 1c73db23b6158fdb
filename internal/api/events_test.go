package api_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krockxz/mailflow-relay/internal/relay"
)

type feedResponse struct {
	Events []relay.Event `json:"events"`
	Count  int           `json:"count"`
}

func seedEvents(h *testHarness, timestamps ...int64) {
	// stubStore keeps newest-first like the real backends.
	for i, ts := range timestamps {
		h.store.events = append([]relay.Event{{
			ID:        string(rune('a' + i)),
			MessageID: "m" + string(rune('a'+i)),
			Timestamp: ts,
		}}, h.store.events...)
	}
}

func TestEventFeedCursorFiltering(t *testing.T) {
	h := newHarness(t, nil)
	seedEvents(h, 10, 20, 30)

	w := h.do(httptest.NewRequest(http.MethodGet, "/events?since=15", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp feedResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, 2, resp.Count)
	// Ascending order so consumers can fold events as they arrive.
	assert.Equal(t, int64(20), resp.Events[0].Timestamp)
	assert.Equal(t, int64(30), resp.Events[1].Timestamp)
}

func TestEventFeedDefaults(t *testing.T) {
	h := newHarness(t, nil)
	for i := int64(1); i <= 25; i++ {
		seedEvents(h, i)
	}

	// Default since=0 and limit=10: the ten most recent, ascending.
	w := h.do(httptest.NewRequest(http.MethodGet, "/events", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp feedResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, 10, resp.Count)
	assert.Equal(t, int64(16), resp.Events[0].Timestamp)
	assert.Equal(t, int64(25), resp.Events[9].Timestamp)
}

func TestEventFeedLimitCapped(t *testing.T) {
	h := newHarness(t, nil)

	w := h.do(httptest.NewRequest(http.MethodGet, "/events?limit=5000", nil))
	require.Equal(t, http.StatusOK, w.Code)

	// The hard cap shows up as the limit passed to the store.
	assert.Equal(t, 100, h.store.lastLimit)
}

func TestEventFeedEmptyIsNormal(t *testing.T) {
	h := newHarness(t, nil)

	w := h.do(httptest.NewRequest(http.MethodGet, "/events?since=999", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp feedResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 0, resp.Count)
	assert.NotNil(t, resp.Events)
	assert.Contains(t, w.Body.String(), `"events":[]`)
}

func TestEventFeedDegradesOnStoreFailure(t *testing.T) {
	h := newHarness(t, nil)
	h.store.recentErr = errors.New("backend unreachable")

	// A polling consumer must see "no news", never a 5xx.
	w := h.do(httptest.NewRequest(http.MethodGet, "/events", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp feedResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 0, resp.Count)
}

func TestEventFeedIgnoresMalformedParams(t *testing.T) {
	h := newHarness(t, nil)
	seedEvents(h, 10)

	w := h.do(httptest.NewRequest(http.MethodGet, "/events?since=banana&limit=-3", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp feedResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)
}
