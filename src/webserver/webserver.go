// Package webserver exposes the governance engine over HTTP for members
// and ballot relayers.
package webserver

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/stake-plus/membership-dao/src/config"
	"github.com/stake-plus/membership-dao/src/dao"
	"github.com/stake-plus/membership-dao/src/data"
	"github.com/stake-plus/membership-dao/src/logging"
	"github.com/stake-plus/membership-dao/src/metrics"
)

// New builds the router. archive may be nil, in which case the history
// endpoints answer 503.
func New(cfg config.Config, engine *dao.Engine, archive *data.Archive, rdb *redis.Client) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	g := gin.New()
	g.Use(gin.Recovery(), requestLogger(), requestMetrics())
	attachRoutes(g, cfg, engine, archive, rdb)
	return g
}

func attachRoutes(r *gin.Engine, cfg config.Config, engine *dao.Engine, archive *data.Archive, rdb *redis.Client) {
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	secret := []byte(cfg.JWTSecret)
	authH := NewAuth(rdb, secret)
	memberH := NewMembers(engine)
	proposalH := NewProposals(engine, archive)
	voteH := NewVotes(engine)
	ipLimiter := NewRateLimiter(60, time.Minute)
	callerLimiter := NewRateLimiter(30, time.Minute)

	r.GET("/healthz", func(c *gin.Context) { c.JSON(200, gin.H{"ok": true}) })
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	v1 := r.Group("/v1")
	v1.Use(RateLimitMiddleware(ipLimiter))
	{
		v1.POST("/auth/challenge", authH.Challenge)
		v1.POST("/auth/verify", authH.Verify)

		v1.GET("/domain", memberH.Domain)
		v1.GET("/members/:address", memberH.Get)
		v1.POST("/proposal-id", proposalH.DeriveID)
		v1.GET("/proposals", proposalH.List)
		v1.GET("/proposals/:id", proposalH.Get)
		v1.GET("/proposals/:id/events", proposalH.Events)
		v1.GET("/proposals/:id/votes/:address", voteH.HasVoted)

		secured := v1.Group("")
		secured.Use(JWTMiddleware(secret), RateLimitMiddleware(callerLimiter))
		secured.POST("/members", memberH.Join)
		secured.POST("/proposals", proposalH.Create)
		secured.POST("/proposals/:id/revoke", proposalH.Revoke)
		secured.POST("/proposals/:id/votes", voteH.Cast)
		secured.POST("/executions", proposalH.Execute)
		secured.POST("/ballots", voteH.Relay)
		secured.POST("/ballots/batch", voteH.RelayBatch)
	}
}

func requestLogger() gin.HandlerFunc {
	log := logging.Component("http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		entry := log.Info()
		if c.Writer.Status() >= 500 {
			entry = log.Warn()
		}
		entry.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("took", time.Since(start)).
			Str("ip", c.ClientIP()).
			Msg("request")
	}
}

func requestMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.RecordHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
