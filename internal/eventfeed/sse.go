package eventfeed

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// SetSSEHeaders applies headers that keep event streams stable across proxies.
func SetSSEHeaders(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache, no-transform")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
}

func WriteSSE(w http.ResponseWriter, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if rec.ID != "" {
		if _, err := fmt.Fprintf(w, "id: %s\n", rec.ID); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", rec.Event, data); err != nil {
		return err
	}
	return nil
}
