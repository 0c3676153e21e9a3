// Package main is the entry point for the payments service. It wires
// the database, Redis and HTTP server, and runs the periodic expiry
// sweep for boosts and protections.
package main

import (
	"context"
	"time"

	"gearted/internal/config"
	"gearted/internal/repositories"
	"gearted/internal/repositories/cache"
	"gearted/internal/routes"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/sirupsen/logrus"
)

func main() {
	config.LoadEnv()

	if config.IsProduction() {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}

	db, err := repositories.InitDB(repositories.DefaultDBConfig())
	if err != nil {
		logrus.WithError(err).Fatal("database initialization failed")
	}

	sqlDB, err := db.DB()
	if err != nil {
		logrus.WithError(err).Fatal("failed to get database instance")
	}

	if err := sqlDB.Ping(); err != nil {
		logrus.WithError(err).Fatal("database ping failed")
	}
	logrus.Info("connected to database")

	var cacheSvc *cache.CacheService
	if config.GetEnv("REDIS_DISABLED", "false") != "true" {
		client := cache.NewRedisClient(&cache.RedisConfig{
			Host:     config.GetEnv("REDIS_HOST", "localhost"),
			Port:     config.GetEnv("REDIS_PORT", "6379"),
			Password: config.GetEnv("REDIS_PASSWORD", ""),
			DB:       config.GetIntEnv("REDIS_DB", 0),
		})
		cacheSvc = cache.NewCacheService(client, config.GetDurationEnv("CACHE_TTL", 5*time.Minute))
		if err := cacheSvc.FlushAll(context.Background()); err != nil {
			logrus.WithError(err).Warn("failed to flush redis cache")
		} else {
			logrus.Info("redis cache flushed on startup")
		}
	}

	defer func() {
		if err := sqlDB.Close(); err != nil {
			logrus.WithError(err).Warn("failed to close database connection")
		}
		if cacheSvc != nil {
			if err := cacheSvc.Close(); err != nil {
				logrus.WithError(err).Warn("failed to close redis connection")
			}
		}
	}()

	app := fiber.New()

	app.Use(cors.New(cors.Config{
		AllowOrigins:     config.GetEnv("CORS_ORIGINS", "http://localhost:5173"),
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Stripe-Signature",
		AllowMethods:     "GET,POST,HEAD,PUT,DELETE,PATCH",
		AllowCredentials: true,
	}))

	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	app.Use("/api/payments/intent", limiter.New(limiter.Config{
		Max:        20,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(429).JSON(fiber.Map{
				"error": "Too many requests. Please try again later.",
			})
		},
	}))

	services := routes.SetupRoutes(app, db, cacheSvc)

	// Periodic expiry sweep for boosts and protections. Both sweeps are
	// guarded updates, so overlapping runs are harmless.
	go func() {
		interval := config.GetDurationEnv("SWEEP_INTERVAL", time.Hour)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for range ticker.C {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			if _, err := services.Boosts.ExpireOld(ctx); err != nil {
				logrus.WithError(err).Error("boost expiry sweep failed")
			}
			if _, err := services.Protections.ExpireOld(ctx); err != nil {
				logrus.WithError(err).Error("protection expiry sweep failed")
			}
			cancel()
		}
	}()

	logrus.Fatal(app.Listen(":" + config.GetEnv("PORT", "3000")))
}
