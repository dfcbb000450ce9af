// Command bootstrap initializes the Postgres schemas the control plane
// depends on (audit event store, consent store) and exits. Run once per
// environment before starting cmd/ingest-service or cmd/worker.
package main

import (
	"context"
	"database/sql"
	"log"

	_ "github.com/lib/pq"

	"github.com/julian-najas/clinical-agentic-control-plane/pkg/audit"
	"github.com/julian-najas/clinical-agentic-control-plane/pkg/config"
	"github.com/julian-najas/clinical-agentic-control-plane/pkg/consent"
)

func main() {
	cfg := config.Load()

	db, err := sql.Open("postgres", cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("[bootstrap] failed to open db: %v", err)
	}
	defer func() { _ = db.Close() }()

	ctx := context.Background()

	log.Println("[bootstrap] initializing audit event store schema...")
	auditStore := audit.NewPostgresStore(db)
	if err := auditStore.Init(ctx); err != nil {
		log.Fatalf("[bootstrap] failed to init audit store: %v", err)
	}

	log.Println("[bootstrap] initializing consent store schema...")
	consentStore := consent.NewPostgresStore(db)
	if err := consentStore.Init(ctx); err != nil {
		log.Fatalf("[bootstrap] failed to init consent store: %v", err)
	}

	log.Println("[bootstrap] schemas initialized.")
}
