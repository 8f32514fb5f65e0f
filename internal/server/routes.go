package server

import (
	"net/http"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// WebSocket route
	mux.HandleFunc("/ws", s.app.WSHandler.HandleWebSocket)

	// API routes - Claims
	mux.HandleFunc("/api/claims", s.app.ClaimHandler.SubmitHandler) // POST - submit a refund claim
	mux.HandleFunc("/api/verify", s.app.VerifyHandler.VerifyHandler) // POST - verify a booking exists (synchronous)

	// API routes - Jobs
	mux.HandleFunc("/api/jobs", s.app.JobHandler.ListJobsHandler) // GET - list all jobs
	mux.HandleFunc("/api/jobs/", s.app.JobHandler.JobRoutesHandler) // GET /{id}, /{id}/evidence, /{id}/evidence/{name}

	// API routes - System
	mux.HandleFunc("/api/health", s.app.StatusHandler.HealthHandler)
	mux.HandleFunc("/api/version", s.app.StatusHandler.VersionHandler)

	return mux
}
