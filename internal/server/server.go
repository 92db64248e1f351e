// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package server exposes the analyzer over HTTP for local tools (GUI
// front ends, batch scripts) that would rather not shell out to the CLI.
package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pdiddy/baduk-analyzer/internal/analyzer"
)

// Server wraps the analyzer with a JSON API.
type Server struct {
	analyzer *analyzer.Analyzer
	log      *slog.Logger
}

// New returns a server over the given analyzer.
func New(a *analyzer.Analyzer, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{analyzer: a, log: log}
}

// analyzeRequest is the JSON body of /analyze and /query.
type analyzeRequest struct {
	BoardSize int      `json:"board_size" binding:"required"`
	Komi      float64  `json:"komi"`
	Handicap  int      `json:"handicap"`
	Moves     []string `json:"moves"`
	Visits    int      `json:"visits"`
	MinVisits int      `json:"min_visits"`
	TopMoves  int      `json:"top_moves"`
}

func (r analyzeRequest) toRequest() analyzer.Request {
	return analyzer.Request{
		BoardSize: r.BoardSize,
		Komi:      r.Komi,
		Handicap:  r.Handicap,
		Moves:     r.Moves,
		Visits:    r.Visits,
		MinVisits: r.MinVisits,
		TopMoves:  r.TopMoves,
	}
}

// Router builds the HTTP routes.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", s.handleHealth)
	r.GET("/stats", s.handleStats)
	r.POST("/analyze", s.handleAnalyze)
	r.POST("/query", s.handleQuery)
	return r
}

// Run serves the API until the listener fails.
func (s *Server) Run(addr string) error {
	s.log.Info("api listening", "addr", addr)
	return s.Router().Run(addr)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleStats(c *gin.Context) {
	stats, err := s.analyzer.GetStats(c.Request.Context())
	if err != nil {
		s.log.Error("stats failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) handleAnalyze(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := s.analyzer.Analyze(c.Request.Context(), req.toRequest())
	if err != nil && result != nil {
		// Interrupted engine run: the partial result is still useful.
		c.JSON(http.StatusOK, gin.H{"result": result, "warning": err.Error()})
		return
	}
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": result})
}

func (s *Server) handleQuery(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := s.analyzer.Query(c.Request.Context(), req.toRequest())
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": result})
}

func statusFor(err error) int {
	var posErr *analyzer.PositionError
	var noResult *analyzer.NoResultError
	switch {
	case errors.As(err, &posErr):
		return http.StatusBadRequest
	case errors.As(err, &noResult):
		return http.StatusNotFound
	case errors.Is(err, analyzer.ErrEngineTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
