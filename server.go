package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"i4.energy/across/sensorlink/radio"
)

// Node is the part of *radio.Radio the HTTP server uses.
type Node interface {
	State() radio.State
	Send(ctx context.Context, light, temperature, humidity float32) error
}

// Server handles incoming HTTP requests for inspecting the radio and sending
// readings through it
type Server struct {
	Logger *slog.Logger
	Radio  Node
}

// ServeHTTP implements the http.Handler interface for the Server struct
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /state", s.handleState)
	mux.HandleFunc("POST /readings", s.handleReadings)
	mux.ServeHTTP(w, r)
}

func (s *Server) sendError(w http.ResponseWriter, message string, statusCode int) {
	if message == "" {
		w.WriteHeader(statusCode)
		return
	}

	type ErrorResponse struct {
		Message string `json:"message"`
	}
	resp := ErrorResponse{Message: message}
	s.sendJSON(w, resp, statusCode)
}

func (s *Server) sendJSON(w http.ResponseWriter, v any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.Logger.Warn("Failed to write response", "error", err)
	}
}

// handleState reports the radio's connection state
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	type StateResponse struct {
		State      string `json:"state"`
		Associated bool   `json:"associated"`
		Network    string `json:"network,omitempty"`
		Target     string `json:"target,omitempty"`
	}

	state := s.Radio.State()
	resp := StateResponse{
		State:      state.String(),
		Associated: radio.Associated(state),
	}
	switch st := state.(type) {
	case radio.Joined:
		resp.Network = st.Network.SSID
	case radio.Bound:
		resp.Network = st.Network.SSID
		resp.Target = st.Target.String()
	}

	s.sendJSON(w, resp, http.StatusOK)
}

// handleReadings sends one packet through the bound radio
func (s *Server) handleReadings(w http.ResponseWriter, r *http.Request) {
	type ReadingsRequest struct {
		Light       *float32 `json:"light"`
		Temperature *float32 `json:"temperature"`
		Humidity    *float32 `json:"humidity"`
	}

	var req ReadingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if req.Light == nil || req.Temperature == nil || req.Humidity == nil {
		s.sendError(w, "'light', 'temperature' and 'humidity' fields are required", http.StatusBadRequest)
		return
	}

	err := s.Radio.Send(r.Context(), *req.Light, *req.Temperature, *req.Humidity)
	switch {
	case err == nil:
	case errors.Is(err, radio.ErrNotBound):
		s.sendError(w, err.Error(), http.StatusConflict)
		return
	case errors.Is(err, radio.ErrNotInitialized), errors.Is(err, radio.ErrAlreadyClosed):
		s.sendError(w, err.Error(), http.StatusServiceUnavailable)
		return
	default:
		s.Logger.Error("Failed to send readings", "error", err)
		s.sendError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	s.Logger.Info("Readings sent", "light", *req.Light, "temperature", *req.Temperature, "humidity", *req.Humidity)
	w.WriteHeader(http.StatusOK)
}
