package http

import (
	"context"
	"net/http"
	"time"

	"github.com/dkeye/Camlink/internal/adapters/ws"
	"github.com/dkeye/Camlink/internal/app/orch"
	"github.com/dkeye/Camlink/internal/config"
	"github.com/dkeye/Camlink/internal/domain"
	"github.com/dkeye/Camlink/internal/metrics"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

// sessionKey is where /s/:id remembers the session for the later WS upgrade.
const sessionKey = "session_id"

type Deps struct {
	Orch       *orch.Orchestrator
	Gateway    *ws.Gateway
	Metrics    *metrics.Metrics
	ICEServers []webrtc.ICEServer
}

// SessionMiddleware mirrors the remembered session id into the gin context.
func SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if v, ok := sessions.Default(c).Get(sessionKey).(string); ok {
			c.Set(sessionKey, v)
		}
		c.Next()
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, d Deps) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	store.Options(sessions.Options{Path: "/", MaxAge: int(cfg.SessionTTL.Seconds()), HttpOnly: true})
	r.Use(sessions.Sessions("CamlinkSessions", store))
	r.Use(SessionMiddleware())

	r.Static("/static", cfg.StaticPath)
	r.GET("/", func(c *gin.Context) {
		c.File(cfg.StaticPath + "/index.html")
	})
	r.GET("/s/:id", func(c *gin.Context) {
		sid, err := domain.ParseSessionID(c.Param("id"))
		if err != nil {
			c.String(http.StatusBadRequest, "invalid session id")
			return
		}
		s := sessions.Default(c)
		s.Set(sessionKey, string(sid))
		if err := s.Save(); err != nil {
			log.Warn().Err(err).Str("module", "adapters.http").Msg("session save")
		}
		c.File(cfg.StaticPath + "/camera.html")
	})
	r.GET("/metrics", gin.WrapH(metrics.PrometheusHandler(d.Metrics,
		metrics.Gauge{Name: "sessions_active", Help: "Sessions with room state.", Value: func() float64 { return float64(d.Orch.Registry.Len()) }},
		metrics.Gauge{Name: "connections", Help: "Open event-channel connections.", Value: func() float64 { return float64(d.Orch.Registry.ConnCount()) }},
	)))

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	api := r.Group("/api")

	api.POST("/sessions", func(c *gin.Context) {
		sid := d.Orch.CreateSession()
		url := SessionURL(baseURL(cfg.PublicURL, c.Request), sid)
		qr, err := QRDataURL(url)
		if err != nil {
			log.Error().Err(err).Str("module", "adapters.http").Msg("qr")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "qr_failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"session_id": sid, "url": url, "qr": qr})
	})

	api.GET("/sessions", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"sessions": d.Orch.Registry.Sessions()})
	})

	api.GET("/sessions/:id/qr.png", func(c *gin.Context) {
		sid, err := domain.ParseSessionID(c.Param("id"))
		if err != nil || !d.Orch.Registry.Known(sid) {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown session"})
			return
		}
		png, err := QRCode(SessionURL(baseURL(cfg.PublicURL, c.Request), sid))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "qr_failed"})
			return
		}
		c.Data(http.StatusOK, "image/png", png)
	})

	api.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":   "ok",
			"sessions": d.Orch.Registry.Len(),
			"time":     time.Now().UTC().Format(time.RFC3339),
		})
	})

	api.GET("/ice-servers", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ice_servers": d.ICEServers})
	})

	api.GET("/ws", func(c *gin.Context) {
		a := ws.Accept{
			Session:  domain.SessionID(c.Query("session")),
			Role:     domain.ParseRole(c.Query("role")),
			CameraID: c.Query("camera_id"),
		}
		if a.Session == "" {
			a.Session = domain.SessionID(c.GetString(sessionKey))
		}
		log.Info().Str("module", "adapters.http").Str("sid", string(a.Session)).Msg("ws endpoint hit")
		d.Gateway.Handle(ctx, c.Writer, c.Request, a)
	})

	return r
}
