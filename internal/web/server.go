// Package web provides an HTTP status server for the display-sensor daemon.
package web

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/sweeney/display-sensor/internal/status"
)

// Brightness sets the display backlight. It is satisfied by *display.Port.
type Brightness interface {
	SetBrightness(level int) (int, error)
}

// Server serves the status page over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	brightness Brightness
	log        zerolog.Logger
}

// New creates a Server that reads state from the given tracker and sends
// brightness changes to b. A nil b disables POST /brightness.
func New(addr string, tracker *status.Tracker, b Brightness, log zerolog.Logger) *Server {
	s := &Server{tracker: tracker, brightness: b, log: log}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/index.html", s.handleIndex)
	mux.HandleFunc("/index.json", s.handleJSON)
	mux.HandleFunc("/brightness", s.handleBrightness)

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Serve accepts connections on ln until the server is shut down.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/index.html" {
		http.NotFound(w, r)
		return
	}
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := renderHTML(w, snap); err != nil {
		s.log.Warn().Err(err).Msg("render status page")
	}
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w)
}

func (s *Server) writeJSON(w http.ResponseWriter) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}

// handleBrightness accepts level as a form or query value. Values outside
// 0..255 are clamped by the port.
func (s *Server) handleBrightness(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.brightness == nil {
		http.Error(w, "brightness control disabled", http.StatusServiceUnavailable)
		return
	}

	level, err := strconv.Atoi(strings.TrimSpace(r.FormValue("level")))
	if err != nil {
		http.Error(w, "level must be an integer", http.StatusBadRequest)
		return
	}

	stored, err := s.brightness.SetBrightness(level)
	s.tracker.SetBrightness(stored)
	if err != nil {
		s.log.Error().Err(err).Int("level", level).Msg("set brightness")
		http.Error(w, "set brightness: "+err.Error(), http.StatusBadGateway)
		return
	}
	s.log.Info().Int("requested", level).Int("brightness", stored).Msg("brightness set over http")

	if r.FormValue("redirect") != "" {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	s.writeJSON(w)
}
