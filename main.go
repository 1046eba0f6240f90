package main

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"collabhive-sync/api"
)

// main runs the bundled workspace dev server: the same HTTP surface
// the hosted service exposes, over in-memory demo data.
func main() {
	if dbg, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && dbg {
		log.SetLevel(log.DebugLevel)
	}

	projectID := os.Getenv("PROJECT_ID")
	if projectID == "" {
		projectID = "proj-1"
	}

	st := api.Seed(projectID)
	if os.Getenv("EMPTY_WORKSPACE") == "1" {
		st = api.NewState(projectID)
	}

	// SNAPSHOT_REDIS only needs to be reachable by clients of this
	// server; pinging it here catches a bad address at startup.
	if redisConn := os.Getenv("SNAPSHOT_REDIS"); redisConn != "" {
		redisOpts, err := redis.ParseURL(redisConn)
		if err != nil {
			log.Fatalf("invalid SNAPSHOT_REDIS: %v", err)
		}
		rc := redis.NewClient(redisOpts)
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := rc.Ping(pingCtx).Err(); err != nil {
			log.Warnf("snapshot redis unreachable: %v", err)
		}
		cancel()
		_ = rc.Close()
	}

	e := echo.New()
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
	}))

	logger := log.New()
	api.Register(e, st, logger)

	listenAddr := ":8080"
	if val, ok := os.LookupEnv("PORT"); ok {
		listenAddr = ":" + val
	}

	e.Logger.Fatal(e.Start(listenAddr))
}
