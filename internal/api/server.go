package api

import (
	"net/http"
	"os"

	"cartseg/internal/observability"
	"cartseg/internal/store"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
)

// Server exposes segmentation runs and stored results over HTTP.
type Server struct {
	svc     *store.RunService
	metrics *observability.Metrics
	version string
}

func NewServer(svc *store.RunService, metrics *observability.Metrics, version string) *Server {
	return &Server{
		svc:     svc,
		metrics: metrics,
		version: version,
	}
}

// Handler returns the full middleware-wrapped handler: panic recovery
// outermost, then Apache-style access logging, then the router.
func (s *Server) Handler() http.Handler {
	logged := handlers.LoggingHandler(os.Stdout, s.router())
	return handlers.RecoveryHandler()(logged)
}

func (s *Server) router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", s.health).Methods("GET")
	r.Handle("/metrics", s.metrics.Handler()).Methods("GET")

	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.Handle("/windows",
		s.metrics.WrapHandler("/api/v1/windows", http.HandlerFunc(s.listWindows))).Methods("GET")
	v1.Handle("/windows/{window}",
		s.metrics.WrapHandler("/api/v1/windows/{window}", http.HandlerFunc(s.getWindow))).Methods("GET")
	v1.Handle("/windows/{window}/segments",
		s.metrics.WrapHandler("/api/v1/windows/{window}/segments", http.HandlerFunc(s.getSegments))).Methods("GET")
	v1.Handle("/windows/{window}/run",
		s.metrics.WrapHandler("/api/v1/windows/{window}/run", http.HandlerFunc(s.runWindow))).Methods("POST")

	return r
}
