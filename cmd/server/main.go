package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/suryabasnet/murmur/internal/db"
	"github.com/suryabasnet/murmur/internal/events"
	"github.com/suryabasnet/murmur/internal/feed"
	routes "github.com/suryabasnet/murmur/internal/http"
	"github.com/suryabasnet/murmur/internal/models"
	"github.com/suryabasnet/murmur/internal/tasks"
	"github.com/suryabasnet/murmur/internal/viewcache"
	"github.com/suryabasnet/murmur/internal/ws"
)

func main() {
	// Load .env first. We don't panic if it's missing: production sets
	// env vars directly.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment")
	}

	database, err := db.Init()
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	log.Println("Running database migrations...")
	if err := database.AutoMigrate(models.All()...); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("Migrations complete.")

	// View cache: shared Redis accumulator when configured (multi-worker
	// deployments need one flush owner seeing all increments), otherwise
	// process-local memory.
	flushInterval := time.Hour
	if v := os.Getenv("VIEW_FLUSH_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			flushInterval = d
		}
	}
	var views viewcache.Cache
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: os.Getenv("REDIS_PASSWORD"),
		})
		if err := client.Ping(context.Background()).Err(); err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		log.Println("Redis connected successfully")
		views = viewcache.NewRedis(client, flushInterval)
	} else {
		views = viewcache.NewMemory()
	}

	// Event publishing is optional.
	var publisher *events.Publisher
	if url := os.Getenv("NATS_URL"); url != "" {
		publisher, err = events.Connect(url)
		if err != nil {
			log.Fatalf("Failed to connect to NATS: %v", err)
		}
		defer publisher.Close()
	}

	svc := feed.NewService(database, views, publisher)

	hub := ws.NewHub()
	go hub.Run()

	runner := tasks.NewRunner(
		&tasks.ViewFlusher{DB: database, Cache: views, Every: flushInterval},
		&tasks.AccountPurger{Svc: svc, Every: time.Hour},
	)
	runner.Start()

	router := gin.Default()
	routes.SetupRoutes(router, svc, hub)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Server listening on :%s", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	// Stop background tasks after the server; an in-flight flush batch
	// completes whole.
	runner.Stop()

	log.Println("Server exiting")
}
