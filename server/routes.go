package server

import (
	"errors"
	"io/fs"
	"net/http"
	"path"
	"strings"

	"github.com/rs/zerolog/log"
)

func (s *Server) initRoutes() {
	s.RegisterRouteHandler("POST "+RouteAPILogin, ChainMiddleware(s.LoginHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteAPIRegister, ChainMiddleware(s.RegisterHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteAPILogout, ChainMiddleware(s.LogoutHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteAPIPassword, ChainMiddleware(s.ChangePasswordHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteAPISession, ChainMiddleware(s.SessionHandler(), s.APIMiddleware()...))

	s.RegisterRouteHandler("GET "+RouteAPIUserData, ChainMiddleware(s.UserDataHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("PUT "+RouteAPIUserData, ChainMiddleware(s.SaveUserDataHandler(), s.APIMiddleware()...))

	// Preflight for the API
	s.RegisterRouteHandler("OPTIONS /api/", ChainMiddleware(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}, s.APIMiddleware()...))

	s.RegisterRouteHandler("GET "+RouteAPIEvents, ChainMiddleware(s.EventsHandler(), s.StreamMiddleware()...))

	s.RegisterRouteHandler("GET /", ChainMiddleware(s.serveFileHandler(), s.HTMLMiddleWare()...))
}

// serveFileHandler serves the application files. Paths without an extension
// that match no file get index.html so client-side routes survive a reload.
func (s *Server) serveFileHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(path.Clean(r.URL.Path), "/")
		if name == "" {
			name = indexFile
		}
		if strings.HasPrefix(name, "api/") {
			http.NotFound(w, r)
			return
		}

		err := StreamFile(w, s.files, name)
		if errors.Is(err, fs.ErrNotExist) && path.Ext(name) == "" {
			err = StreamFile(w, s.files, indexFile)
		}
		if err != nil {
			log.Debug().Err(err).Str("path", r.URL.Path).Msg("Static file not served")
			http.Error(w, "404 - Page Not Found", http.StatusNotFound)
		}
	}
}
