package httptransport

import (
	"net/http"
	"strconv"
	"time"

	"kaillera-relay/internal/eventfeed"
)

var ssePingInterval = 15 * time.Second

// EventsSSEHandler streams the admin event feed. Last-Event-ID resumes after
// a reconnect and ?game_id= narrows the stream to one game.
func EventsSSEHandler(feed *eventfeed.Feed) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			WriteHTTPError(w, http.StatusInternalServerError, "stream_not_supported")
			return
		}
		var gameID uint16
		if v := r.URL.Query().Get("game_id"); v != "" {
			n, err := strconv.ParseUint(v, 10, 16)
			if err != nil {
				WriteHTTPError(w, http.StatusBadRequest, "invalid_game_id")
				return
			}
			gameID = uint16(n)
		}
		keep := func(rec eventfeed.Record) bool { return gameID == 0 || rec.GameID == gameID }

		ch := feed.Subscribe()
		defer feed.Unsubscribe(ch)
		metricEventStreamsTotal.Add(1)
		metricEventStreamsActive.Add(1)
		defer metricEventStreamsActive.Add(-1)

		eventfeed.SetSSEHeaders(w)
		w.WriteHeader(http.StatusOK)
		var sent int64
		for _, rec := range feed.ReplayAfter(r.Header.Get("Last-Event-ID")) {
			sent = rec.Seq()
			if !keep(rec) {
				continue
			}
			if err := eventfeed.WriteSSE(w, rec); err != nil {
				return
			}
		}
		flusher.Flush()

		ticker := time.NewTicker(ssePingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-r.Context().Done():
				return
			case rec, ok := <-ch:
				if !ok {
					return
				}
				// Subscribing before the replay can deliver a record twice.
				if rec.Seq() <= sent || !keep(rec) {
					continue
				}
				if err := eventfeed.WriteSSE(w, rec); err != nil {
					return
				}
				flusher.Flush()
			case <-ticker.C:
				ping := eventfeed.Record{
					Event:    "ping",
					ServerTS: time.Now().UnixMilli(),
					Data:     map[string]any{"ts": time.Now().UnixMilli()},
				}
				if err := eventfeed.WriteSSE(w, ping); err != nil {
					return
				}
				flusher.Flush()
			}
		}
	}
}
