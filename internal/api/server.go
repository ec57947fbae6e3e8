// Package api exposes operational read-only endpoints: liveness and a
// snapshot of connection and room state. No business logic lives here,
// only HTTP handling and JSON serialization.
package api

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"roomhub/internal/registry"
	"roomhub/internal/room"
)

// Server serves the health and stats endpoints.
type Server struct {
	registry *registry.Registry
	rooms    *room.Manager
	router   *http.ServeMux
	started  time.Time
}

// NewServer wires the API over the shared registries.
func NewServer(reg *registry.Registry, rooms *room.Manager) *Server {
	s := &Server{
		registry: reg,
		rooms:    rooms,
		router:   http.NewServeMux(),
		started:  time.Now(),
	}
	s.router.HandleFunc("/healthz", s.handleHealth)
	s.router.HandleFunc("/stats", s.handleStats)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

type healthResponse struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`
}

type statsResponse struct {
	Connections int            `json:"connections"`
	Identities  int            `json:"identities"`
	Rooms       int            `json:"rooms"`
	RoomSizes   map[string]int `json:"room_sizes"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, healthResponse{
		Status: "ok",
		Uptime: time.Since(s.started).Round(time.Second).String(),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sizes := make(map[string]int)
	for _, name := range s.rooms.Rooms() {
		sizes[name] = s.rooms.MemberCount(name)
	}

	s.writeJSON(w, statsResponse{
		Connections: s.registry.Count(),
		Identities:  s.registry.IdentityCount(),
		Rooms:       s.rooms.RoomCount(),
		RoomSizes:   sizes,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("stats encoding failed: %v", err)
	}
}
