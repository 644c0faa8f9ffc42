// Package server exposes the session manager to the single-page front end:
// a JSON API, a server-sent event stream and the static application files.
package server

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"strings"

	"github.com/jrsteele09/go-portfolio-auth/internal/config"
	"github.com/jrsteele09/go-portfolio-auth/sessions"
	"github.com/rs/zerolog/log"
)

type Server struct {
	env     string // Environment (e.g., "DEV", "PROD")
	mux     *http.ServeMux
	routes  []string
	config  config.Config
	manager *sessions.Manager
	ui      *UI
	files   fs.FS

	unsubscribe func()
}

// New builds the HTTP surface over manager. ui must be the same UI the
// manager was built with (sessions.WithUI) so render hooks reach the stream.
func New(cfg config.Config, manager *sessions.Manager, ui *UI) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("[server.New] config is required")
	}
	if manager == nil {
		return nil, errors.New("[server.New] session manager is required")
	}
	if ui == nil {
		return nil, errors.New("[server.New] ui is required")
	}

	files, err := StaticFilesFS(cfg.GetStaticDir())
	if err != nil {
		return nil, fmt.Errorf("[server.New] static files: %w", err)
	}

	s := &Server{
		env:     cfg.GetEnv(),
		mux:     http.NewServeMux(),
		config:  cfg,
		manager: manager,
		ui:      ui,
		files:   files,
	}
	s.unsubscribe = manager.Bus().SubscribeAll(ui.publish)

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Close detaches from the event bus and ends open event streams
func (s *Server) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
	s.ui.closeAll()
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)
		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	colour, ok := methodColors[method]
	if !ok {
		colour = Gray
	}
	log.Info().Msgf("[%s%-7s%s] %s", colour, method, ResetColor, path)
}
