package main

import (
	"log"
	"time"

	"statement-reconciliation-backend/internal/config"
	"statement-reconciliation-backend/internal/jobs"
	"statement-reconciliation-backend/internal/logger"
	"statement-reconciliation-backend/internal/models"
	"statement-reconciliation-backend/internal/routes"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on system env")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger.InitLogger(cfg.Log.Level)

	db, err := config.InitDB(cfg.Database)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	if err := db.AutoMigrate(models.All()...); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	services := routes.NewServices(db, cfg)

	if cfg.Scheduler.Enabled {
		sweep := jobs.NewAutoReconcileSweep(services.Plans, services.Auto)
		c, err := jobs.StartScheduler(cfg.Scheduler, sweep)
		if err != nil {
			log.Fatalf("scheduler: %v", err)
		}
		defer c.Stop()
	}

	r := gin.New()
	r.Use(logger.GinMiddleware(), gin.Recovery())
	// CORS config
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.CorsOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE"},
		AllowHeaders:     []string{"Origin", "Content-Type", "X-User-ID"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	routes.RegisterRoutes(r, services)

	logger.L.Info("server starting", "port", cfg.Server.Port)
	if err := r.Run(":" + cfg.Server.Port); err != nil {
		logger.L.Error("server stopped", "error", err)
	}
}
