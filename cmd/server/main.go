package main

import (
	"net/http"
	"os"

	"github.com/mariibrb/dizimeiro/internal/api"
	"github.com/mariibrb/dizimeiro/internal/audit"
	"github.com/mariibrb/dizimeiro/internal/difal"
	"github.com/mariibrb/dizimeiro/internal/logger"
	"github.com/mariibrb/dizimeiro/internal/repository"
)

func main() {
	log := logger.New()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = "dizimeiro.db"
	}

	log.Info().Str("path", dbPath).Msg("initializing database")
	db, err := repository.InitDB(dbPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init DB")
	}
	defer db.Close()

	tables := difal.DefaultTables()
	auditRepo := repository.NewAuditRepo(db)
	auditSvc := audit.NewService(auditRepo, tables, logger.ForComponent(log, "audit"))

	router := api.NewRouter(auditSvc, auditRepo, tables, logger.ForComponent(log, "api"))

	log.Info().Msg("Dizimeiro DIFAL Entry Auditor")
	log.Info().Str("addr", "http://localhost:"+port).Msg("listening")
	log.Info().Msg("endpoints:")
	log.Info().Msg("  POST   /api/v1/audits")
	log.Info().Msg("  GET    /api/v1/audits")
	log.Info().Msg("  GET    /api/v1/audits/{id}")
	log.Info().Msg("  GET    /api/v1/audits/{id}/results")
	log.Info().Msg("  GET    /api/v1/audits/{id}/export")
	log.Info().Msg("  GET    /api/v1/rates")

	if err := http.ListenAndServe(":"+port, router); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}
}
