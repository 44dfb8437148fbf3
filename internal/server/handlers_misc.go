package server

import "net/http"

// handleIndex serves the static index page. The real static asset
// pipeline lives outside this server; this is a minimal stand-in so the
// root path resolves to something during local development.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte("<html><head><title>crab-eval</title></head><body><h1>crab-eval</h1></body></html>"))
}

// handleHello responds to GET /api/hello with a static greeting, used as
// a liveness smoke-test endpoint by API clients.
func (s *Server) handleHello(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"message": "hello from crab-eval"})
}
