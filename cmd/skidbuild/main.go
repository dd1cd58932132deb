package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"skidbuild/infrastructure/audit"
	httpserver "skidbuild/infrastructure/http"
	"skidbuild/infrastructure/sqlite"
	"skidbuild/shipment"
	"skidbuild/workflow"
)

func main() {
	addr := getenv("APP_ADDR", ":8080")
	dbPath := getenv("SQLITE_PATH", "skidbuild.db")
	shipmentURL := getenv("SHIPMENT_API_URL", "http://localhost:9090")

	db, err := sqlite.OpenDB(dbPath)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	if err := sqlite.ApplyMigrations(context.Background(), db); err != nil {
		log.Fatalf("apply migrations: %v", err)
	}

	auditSvc := audit.NewService()
	submitter := shipment.NewClient(shipmentURL)
	sessions := workflow.NewManager(db, auditSvc, submitter)

	server := httpserver.NewServer(addr, db, auditSvc, sessions)
	if err := server.Start(); err != nil {
		log.Fatalf("start server: %v", err)
	}
	log.Printf("skidbuild listening on %s", addr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	if err := server.Stop(); err != nil {
		log.Printf("graceful shutdown error: %v", err)
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
