package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/gin-gonic/gin"

	"github.com/labtrack/labtrack_backend/internal/config"
	"github.com/labtrack/labtrack_backend/internal/database"
	"github.com/labtrack/labtrack_backend/internal/routes"
	"github.com/labtrack/labtrack_backend/internal/ws"
)

func main() {
	// Load .env (non-fatal if missing in production)
	_ = godotenv.Load()

	cfg := config.Load()

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}

	if err := database.Migrate(db); err != nil {
		log.Fatalf("database migration failed: %v", err)
	}

	if err := database.SeedAdmin(db, cfg); err != nil {
		log.Fatalf("admin seed failed: %v", err)
	}

	hub := ws.NewSessionHub()
	go hub.Run()

	r := gin.Default()
	routes.Register(r, db, cfg, hub)

	port := cfg.Port
	if port == "" {
		port = "8000"
	}

	if err := r.Run(":" + port); err != nil {
		log.Println("server exited with error:", err)
		os.Exit(1)
	}
}
