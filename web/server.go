package web

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"interfield/field"
)

// GridFunc resolves a source id to its published estimator. Returns nil for
// unknown sources.
type GridFunc func(source uint32) *field.SharedEstimator

type Server struct {
	Hub   *Hub
	Grids GridFunc
}

func NewServer() *Server {
	return &Server{
		Hub: NewHub(),
	}
}

// SetGridSource wires the /grid endpoint to the estimator registry.
func (s *Server) SetGridSource(fn GridFunc) {
	s.Grids = fn
}

func (s *Server) Start(port int, distDir string) {
	go s.Hub.Run()

	mux := http.NewServeMux()

	// WebSocket: probe result stream
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		serveWs(s.Hub, w, r)
	})

	// Field rasterization over a query extent
	mux.HandleFunc("/grid", s.handleGrid)

	// Static Frontend
	if distDir != "" {
		fs := http.FileServer(http.Dir(distDir))
		mux.Handle("/", fs)
	}

	addr := fmt.Sprintf(":%d", port)
	log.Printf("HTTP Server listening on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("HTTP server error: %v", err)
	}
}

type gridResponse struct {
	Source uint32          `json:"source"`
	Spec   field.GridSpec  `json:"spec"`
	Cells  []float64       `json:"cells"`
	Stats  field.GridStats `json:"stats"`
}

// handleGrid evaluates the field of one source over a caller-supplied
// extent. Query params: source, minx, miny, maxx, maxy, cols, rows.
func (s *Server) handleGrid(w http.ResponseWriter, r *http.Request) {
	if s.Grids == nil {
		http.Error(w, "no sources", http.StatusServiceUnavailable)
		return
	}
	q := r.URL.Query()
	source64, err := strconv.ParseUint(q.Get("source"), 10, 32)
	if err != nil {
		http.Error(w, "bad source", http.StatusBadRequest)
		return
	}
	est := s.Grids(uint32(source64))
	if est == nil {
		http.Error(w, "unknown source", http.StatusNotFound)
		return
	}

	spec := field.GridSpec{
		MinX: queryFloat(q.Get("minx"), -20),
		MinY: queryFloat(q.Get("miny"), -20),
		MaxX: queryFloat(q.Get("maxx"), 20),
		MaxY: queryFloat(q.Get("maxy"), 20),
		Cols: queryInt(q.Get("cols"), 64),
		Rows: queryInt(q.Get("rows"), 64),
	}
	grid, err := est.Grid(spec)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(gridResponse{
		Source: uint32(source64),
		Spec:   grid.Spec,
		Cells:  grid.Cells,
		Stats:  grid.Stats(),
	})
}

func queryFloat(s string, def float64) float64 {
	if s == "" {
		return def
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return def
	}
	return v
}

func queryInt(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
