package http

import (
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/suryabasnet/murmur/internal/feed"
	"github.com/suryabasnet/murmur/internal/ws"
)

// SetupRoutes configures all application routes and middleware.
func SetupRoutes(router *gin.Engine, svc *feed.Service, hub *ws.Hub) {

	env := &Env{Svc: svc, Hub: hub}

	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(SecurityHeadersMiddleware())

	corsOrigin := os.Getenv("CORS_ORIGIN")
	if corsOrigin == "" {
		corsOrigin = "*" // Default to allow all for local dev
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{corsOrigin},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Admin-Token", "X-User-ID"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}))

	// Per-IP limiter on the write endpoints; stale entries are swept
	// every 10 minutes.
	limiter := NewIPRateLimiter(rate.Limit(rateLimitRPS), rateLimitBurst)
	go func() {
		for {
			time.Sleep(10 * time.Minute)
			limiter.mu.Lock()
			for ip, v := range limiter.visitors {
				if v.Allow() {
					delete(limiter.visitors, ip)
				}
			}
			limiter.mu.Unlock()
		}
	}()

	api := router.Group("/api")
	{
		api.GET("/feed", env.GetFeed)
		api.GET("/posts", env.GetGlobalFeed)
		api.GET("/posts/:id", env.GetPost)
		api.GET("/posts/:id/thread", env.GetThread)
		api.GET("/announcements", env.GetAnnouncements)
		api.GET("/users/:id/posts", env.GetTimeline)
		api.GET("/users/:id/likes", env.GetLiked)

		api.POST("/posts", RateLimitMiddleware(limiter), env.CreatePost)
		api.PATCH("/posts/:id", env.EditPost)
		api.DELETE("/posts/:id", env.DeletePost)
		api.POST("/posts/:id/like", env.LikePost)
		api.DELETE("/posts/:id/like", env.UnlikePost)
		api.POST("/posts/:id/vote", env.Vote)

		api.POST("/users/:id/follow", env.FollowUser)
		api.DELETE("/users/:id/follow", env.UnfollowUser)
		api.POST("/users/:id/block", env.BlockUser)
		api.DELETE("/users/:id/block", env.UnblockUser)

		api.GET("/notifications", env.GetNotifications)
		api.POST("/notifications/dismiss", env.DismissNotifications)
	}

	admin := router.Group("/api/admin", AdminAuthMiddleware())
	{
		admin.POST("/posts/:id/announce", env.Announce)
		admin.DELETE("/posts/:id", env.ModerationDeletePost)
	}

	router.GET("/ws", func(c *gin.Context) {
		ws.ServeWs(hub, c.Writer, c.Request)
	})
}
