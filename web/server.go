// Package web serves the live anchor watch to browsers: a websocket stream
// of filtered positions and alarm transitions plus a small JSON API for the
// anchor and session state.
package web

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"anchorwatch/filter"
	"anchorwatch/server"
)

// Frame is the JSON structure sent to all websocket clients. Exactly one of
// Position and Alarm is set per frame.
type Frame struct {
	Type     string                   `json:"type"` // "position" or "alarm"
	Position *filter.FilteredLocation `json:"position,omitempty"`
	Alarm    *alarmFrame              `json:"alarm,omitempty"`
	Stamp    int64                    `json:"stamp"` // unix ms
}

type alarmFrame struct {
	From      string  `json:"from"`
	To        string  `json:"to"`
	DistanceM float64 `json:"distance_m"`
	Timestamp int64   `json:"ts"`
}

type anchorRequest struct {
	Here    bool    `json:"here"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	RadiusM float64 `json:"radius_m"`
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// Server broadcasts session output to websocket clients. It implements
// server.Sink so the session can feed it directly.
type Server struct {
	session *server.Session
	addr    string

	clients   map[*wsClient]struct{}
	clientsMu sync.RWMutex

	upgrader websocket.Upgrader
}

// New creates a web server for the given session.
func New(session *server.Session, addr string) *Server {
	return &Server{
		session: session,
		addr:    addr,
		clients: make(map[*wsClient]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// PublishPosition implements server.Sink.
func (s *Server) PublishPosition(loc filter.FilteredLocation) {
	s.broadcast(Frame{Type: "position", Position: &loc, Stamp: time.Now().UnixMilli()})
}

// PublishAlarm implements server.Sink.
func (s *Server) PublishAlarm(tr filter.AlarmTransition) {
	s.broadcast(Frame{
		Type: "alarm",
		Alarm: &alarmFrame{
			From:      tr.From.String(),
			To:        tr.To.String(),
			DistanceM: tr.DistanceM,
			Timestamp: tr.Timestamp,
		},
		Stamp: time.Now().UnixMilli(),
	})
}

func (s *Server) broadcast(frame Frame) {
	data, err := json.Marshal(frame)
	if err != nil {
		log.Printf("[ws] marshal frame: %v", err)
		return
	}
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	for client := range s.clients {
		select {
		case client.send <- data:
		default:
			// Slow client: drop the frame rather than stall the pipeline.
		}
	}
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/api/stats", s.handleStats)
	mux.HandleFunc("/api/track", s.handleTrack)
	mux.HandleFunc("/api/anchor", s.handleAnchor)
	return mux
}

// Run starts the HTTP server and blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.Handler()}
	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutCtx)
	}()

	log.Printf("[web] listening on %s", s.addr)
	err := srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws] upgrade error: %v", err)
		return
	}

	client := &wsClient{
		conn: conn,
		send: make(chan []byte, 64),
	}

	s.clientsMu.Lock()
	s.clients[client] = struct{}{}
	total := len(s.clients)
	s.clientsMu.Unlock()
	log.Printf("[ws] client connected (%d total)", total)

	// Writer goroutine
	go func() {
		defer conn.Close()
		for msg := range client.send {
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				break
			}
		}
	}()

	// Reader goroutine (keep-alive, detects disconnect)
	go func() {
		defer func() {
			s.clientsMu.Lock()
			delete(s.clients, client)
			total := len(s.clients)
			s.clientsMu.Unlock()
			close(client.send)
			log.Printf("[ws] client disconnected (%d total)", total)
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.session.Stats())
}

func (s *Server) handleTrack(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.session.Track())
}

func (s *Server) handleAnchor(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		var req anchorRequest
		if err := json.Unmarshal(body, &req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if req.RadiusM <= 0 {
			http.Error(w, "radius_m must be positive", http.StatusBadRequest)
			return
		}
		if req.Here {
			if err := s.session.DropAnchorHere(req.RadiusM); err != nil {
				http.Error(w, err.Error(), http.StatusConflict)
				return
			}
		} else {
			s.session.SetAnchor(req.Lat, req.Lon, req.RadiusM)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))

	case http.MethodDelete:
		s.session.ClearAnchor()
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}
