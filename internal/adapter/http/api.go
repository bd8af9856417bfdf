package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/couchcryptid/lunch-locator-service/internal/domain"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
)

const maxBodyBytes = 4 << 10

// stateView is the payload of /api/state and of every stream event.
type stateView struct {
	State domain.GeoState `json:"state"`
	Frame *domain.Bounds  `json:"frame,omitempty"`
}

type searchRequest struct {
	Query string `json:"query"`
}

type errorBody struct {
	Error string `json:"error"`
}

type acceptedBody struct {
	Status string `json:"status"`
}

func newStateView(s domain.GeoState) stateView {
	v := stateView{State: s}
	if b, ok := domain.FrameState(s); ok {
		v.Frame = &b
	}
	return v
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	sharedobs.WriteJSON(w, http.StatusOK, newStateView(s.svc.State()))
}

func (s *Server) handleLocate(w http.ResponseWriter, _ *http.Request) {
	s.svc.DetermineCurrentLocation()
	accepted(w)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		sharedobs.WriteJSON(w, http.StatusBadRequest, errorBody{Error: "invalid JSON body"})
		return
	}

	query := domain.NormalizeQuery(req.Query)
	switch {
	case query == "":
		sharedobs.WriteJSON(w, http.StatusBadRequest, errorBody{Error: "query is required"})
		return
	case len(query) > domain.MaxQueryLength:
		sharedobs.WriteJSON(w, http.StatusBadRequest, errorBody{
			Error: fmt.Sprintf("query exceeds %d characters", domain.MaxQueryLength),
		})
		return
	}

	s.svc.SearchLunchPlaces(query)
	accepted(w)
}

func (s *Server) handleRefresh(w http.ResponseWriter, _ *http.Request) {
	s.svc.RefreshLunchPlaces()
	accepted(w)
}

func (s *Server) handleDiscard(w http.ResponseWriter, _ *http.Request) {
	s.svc.DiscardLunchPlaces()
	accepted(w)
}

func accepted(w http.ResponseWriter) {
	sharedobs.WriteJSON(w, http.StatusAccepted, acceptedBody{Status: "accepted"})
}

// handleStream sends the current state and then every change as Server-Sent
// Events. A slow client only ever receives the newest state. Streams end when
// the client leaves or the server shuts down.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)
	// The server-wide write timeout would cut long-lived streams.
	_ = rc.SetWriteDeadline(time.Time{})

	updates := make(chan domain.GeoState, 1)
	unsubscribe := s.svc.Subscribe(func(st domain.GeoState) {
		// Observers are called one at a time, so drain-then-send never blocks.
		select {
		case <-updates:
		default:
		}
		updates <- st
	})
	defer unsubscribe()

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		s.logger.Warn("event stream not supported", "error", err)
		return
	}

	ticker := time.NewTicker(s.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-s.closing:
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
		case st := <-updates:
			data, err := json.Marshal(newStateView(st))
			if err != nil {
				s.logger.Error("encode state event", "error", err)
				return
			}
			if _, err := fmt.Fprintf(w, "event: state\ndata: %s\n\n", data); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}
