package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

var log = logrus.StandardLogger()

var upgrader = websocket.Upgrader{}

const writeWait = 1 * time.Second

// Server publishes one JSON frame of VehicleInfos per step to a single
// connected client over a websocket, for a research workload's live view.
type Server struct {
	addr    string
	control *Control

	updates chan map[string]VehicleInfo
}

// NewServer builds a Server over control. Its POST /step handler steps the
// engine and publishes a frame; a caller that steps control directly calls
// Publish itself after each step.
func NewServer(addr string, control *Control) *Server {
	return &Server{addr: addr, control: control, updates: make(chan map[string]VehicleInfo, 1)}
}

// Publish enqueues the current VehicleInfos for the connected client,
// dropping the previous unconsumed frame if the client is slow.
func (s *Server) Publish() {
	frame := s.control.VehicleInfos()
	select {
	case s.updates <- frame:
	default:
		select {
		case <-s.updates:
		default:
		}
		s.updates <- frame
	}
}

// Serve blocks, routing the control API's REST surface (§6) alongside the
// single websocket live-stream client at /ws.
func (s *Server) Serve() error {
	mux := http.NewServeMux()
	s.registerRoutes(mux)
	mux.HandleFunc("/ws", s.serveWebsocket)
	if err := http.ListenAndServe(s.addr, mux); err != nil {
		return fmt.Errorf("api: serve: %w", err)
	}
	return nil
}

func (s *Server) serveWebsocket(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Warn("api: websocket upgrade failed")
		return
	}
	defer ws.Close()

	for frame := range s.updates {
		if err := ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
			return
		}
		b, err := json.Marshal(frame)
		if err != nil {
			log.WithError(err).Warn("api: marshal vehicle frame failed")
			continue
		}
		if err := ws.WriteMessage(websocket.TextMessage, b); err != nil {
			return
		}
	}
}
