package main

import (
	"log"
	"time"

	"pg-recon-backend/internal/config"
	"pg-recon-backend/internal/models"
	"pg-recon-backend/internal/routes"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on system env")
	}

	db := config.InitDB()

	db.AutoMigrate(
		&models.PgTransaction{},
		&models.BankRecord{},
		&models.ReconciliationRun{},
		&models.MatchRecord{},
		&models.ExceptionRecord{},
		&models.ExceptionWorkflowState{},
		&models.ExceptionAuditLog{},
		&models.SettlementBatch{},
		&models.SettlementItem{},
		&models.MerchantConfig{},
	)

	r := gin.Default()
	// CORS config
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:3000"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE"},
		AllowHeaders:     []string{"Origin", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	svc := routes.RegisterRoutes(r, db)

	// SLA breach marking and snooze wake-ups run on a background ticker.
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for now := range ticker.C {
			svc.SweepSLA(now)
		}
	}()

	r.Run(config.ServerPort())
}
