package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

// EventsHandler streams the session's state as server-sent events, one
// "state" event per change, starting with the current state.
func (app *App) EventsHandler(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	updates, unsubscribe := sess.Controller.Subscribe()
	defer unsubscribe()

	clientGone := r.Context().Done()

	for {
		select {
		case state, ok := <-updates:
			if !ok {
				return
			}

			data, err := json.Marshal(newStateResponse(state))
			if err != nil {
				app.Logger.Warn("Error marshaling state", zap.Error(err))
				continue
			}

			fmt.Fprintf(w, "event: state\ndata: %s\n\n", data)
			flusher.Flush()

		case <-clientGone:
			return
		}
	}
}
