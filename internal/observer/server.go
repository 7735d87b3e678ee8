package observer

import (
	"net/http"
)

// Handler builds the observer's HTTP surface: the event WebSocket and
// the JSON API. There is no UI; anything watching an interview talks
// JSON.
func Handler(hub *Hub, store InterviewStore, controls Controls) http.Handler {
	mux := http.NewServeMux()

	registerWSRoute(mux, hub, controls)
	registerAPIRoutes(mux, store, controls)

	return mux
}
