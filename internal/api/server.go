// Package api exposes the engine's output surface to presentation
// shells over a localhost HTTP/WebSocket server.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"netgauge/internal/config"
	"netgauge/internal/format"
	"netgauge/internal/meter"
)

// DefaultAddr is the default listen address. Localhost only: the API
// serves same-user presentation shells, not the network.
const DefaultAddr = "127.0.0.1:9553"

// Server serves engine state to presentation clients.
type Server struct {
	engine *meter.Engine
	cfgMgr *config.Manager
	http   *http.Server
}

// NewServer creates a server bound to the given address.
func NewServer(engine *meter.Engine, cfgMgr *config.Manager, addr string) *Server {
	if addr == "" {
		addr = DefaultAddr
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		engine: engine,
		cfgMgr: cfgMgr,
	}
	s.registerRoutes(router)

	s.http = &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) registerRoutes(r *gin.Engine) {
	stats := r.Group("/stats")
	{
		stats.GET("/rate", s.getRate)
		stats.GET("/totals", s.getTotals)
		stats.GET("/sparkline", s.getSparkline)
	}
	r.GET("/config", s.getConfig)
	r.PUT("/config", s.putConfig)
	r.POST("/reset", s.postReset)
	r.GET("/ws", s.handleWebSocket)
}

// Handler returns the HTTP handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Start begins serving in a background goroutine.
func (s *Server) Start() {
	go func() {
		slog.Info("API server listening", "addr", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("API server failed", "error", err)
		}
	}()
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) getRate(c *gin.Context) {
	peakDown, peakUp := s.engine.PeakRates()
	cfg := s.engine.Config()

	c.JSON(http.StatusOK, gin.H{
		"rate": s.engine.Rate(),
		"peak": gin.H{
			"download_bytes_per_sec": peakDown,
			"upload_bytes_per_sec":   peakUp,
			"download_label":         format.Rate(uint64(peakDown), 1, cfg.ShowBits, cfg.UseSI),
			"upload_label":           format.Rate(uint64(peakUp), 1, cfg.ShowBits, cfg.UseSI),
		},
	})
}

func (s *Server) getTotals(c *gin.Context) {
	now := time.Now()
	cfg := s.engine.Config()

	allTime := s.engine.AllTimeTotals()
	last24h := s.engine.TrailingTotals(24 * time.Hour)
	cycle, cycleStart := s.engine.CycleTotals(now)

	response := gin.H{
		"all_time":    totalsJSON(allTime, cfg.UseSI),
		"last_24h":    totalsJSON(last24h, cfg.UseSI),
		"cycle":       totalsJSON(cycle, cfg.UseSI),
		"cycle_start": cycleStart,
	}

	if capBytes := cfg.CapBytes(); capBytes > 0 {
		used := cycle.Download + cycle.Upload
		response["data_cap"] = gin.H{
			"cap_bytes":     capBytes,
			"used_bytes":    used,
			"used_fraction": float64(used) / float64(capBytes),
			"cap_label":     format.Total(capBytes, cfg.UseSI),
			"used_label":    format.Total(used, cfg.UseSI),
		}
	}

	c.JSON(http.StatusOK, response)
}

func totalsJSON(t meter.Totals, useSI bool) gin.H {
	return gin.H{
		"download":       t.Download,
		"upload":         t.Upload,
		"download_label": format.Total(t.Download, useSI),
		"upload_label":   format.Total(t.Upload, useSI),
	}
}

func (s *Server) getSparkline(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"window_seconds": meter.SparklineWindow.Seconds(),
		"samples":        s.engine.Sparkline(),
	})
}

func (s *Server) getConfig(c *gin.Context) {
	c.JSON(http.StatusOK, s.cfgMgr.GetConfig())
}

// putConfig applies a full configuration document: it is normalized,
// saved, and handed to the engine in one step.
func (s *Server) putConfig(c *gin.Context) {
	var cfg config.Config
	if err := c.ShouldBindJSON(&cfg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := s.cfgMgr.Update(cfg); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	applied := s.cfgMgr.GetConfig()
	s.engine.ApplyConfig(applied)
	c.JSON(http.StatusOK, applied)
}

func (s *Server) postReset(c *gin.Context) {
	if err := s.engine.Reset(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}
