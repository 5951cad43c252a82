// Package seapdebug mounts a read-only introspection server over a SEAP
// context: a descriptor list with each descriptor's scheme and count of
// outstanding command replies, plus the Prometheus /metrics endpoint
// (the default registry's collectors), for operators who need
// to look inside a running probe or controller process.
package seapdebug

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/openscap-probes/seap/seap"
)

// Server is a read-only HTTP introspection surface. It never mutates ctx.
type Server struct {
	router *mux.Router
	ctx    *seap.Context
}

// New builds a Server that inspects ctx. Call Handler to obtain the
// http.Handler to serve.
func New(ctx *seap.Context) *Server {
	s := &Server{router: mux.NewRouter(), ctx: ctx}
	s.router.HandleFunc("/descriptors", s.handleDescriptors).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	return s
}

// Handler returns the http.Handler to mount, e.g. with http.ListenAndServe.
func (s *Server) Handler() http.Handler { return s.router }

type descriptorView struct {
	SD             int    `json:"sd"`
	Scheme         string `json:"scheme"`
	PendingReplies int    `json:"pending_replies"`
}

func (s *Server) handleDescriptors(w http.ResponseWriter, r *http.Request) {
	snaps := s.ctx.DescriptorSnapshot()
	w.Header().Set("Content-Type", "application/json")
	out := make([]descriptorView, 0, len(snaps))
	for _, v := range snaps {
		out = append(out, descriptorView{SD: v.SD, Scheme: v.Scheme, PendingReplies: v.PendingReplies})
	}
	json.NewEncoder(w).Encode(out)
}
