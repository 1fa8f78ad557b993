package config

import (
	"fmt"
	"log"
	"os"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// InitDB opens the Postgres connection from env. DATABASE_URL wins; the
// discrete PG* variables are the local-dev fallback.
func InitDB() *gorm.DB {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		dsn = fmt.Sprintf(
			"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
			envOr("PGHOST", "localhost"),
			envOr("PGUSER", "postgres"),
			envOr("PGPASSWORD", "postgres"),
			envOr("PGDATABASE", "pg_recon"),
			envOr("PGPORT", "5432"),
		)
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	return db
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// ServerPort returns the HTTP listen address.
func ServerPort() string {
	return ":" + envOr("PORT", "8080")
}
