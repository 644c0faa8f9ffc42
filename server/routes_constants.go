package server

// Route path constants
const (
	// Auth API
	RouteAPILogin    = "/api/auth/login"
	RouteAPIRegister = "/api/auth/register"
	RouteAPILogout   = "/api/auth/logout"
	RouteAPIPassword = "/api/auth/password"
	RouteAPISession  = "/api/auth/session"

	// Scoped user data
	RouteAPIUserData = "/api/userdata"

	// Server-sent events
	RouteAPIEvents = "/api/events"
)
