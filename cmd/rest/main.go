package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"chat-handoff-be/internal/bootstrap"
	"chat-handoff-be/internal/config"
	"chat-handoff-be/internal/server"
	"chat-handoff-be/internal/tracer"
	"chat-handoff-be/pkg/database"

	"github.com/fatih/color"
)

func main() {
	color.Cyan("chat-handoff-be")

	// 0. Initialize Tracer (no-op unless OTEL_ENABLED=true)
	shutdownTracer := tracer.InitTracer()
	defer shutdownTracer(context.Background())

	// 1. Load Configuration
	cfg := config.Load()

	// 2. Initialize Database
	gormDB, err := database.NewGormDBFromDSN(cfg.Database.Connection)
	if err != nil {
		log.Panicf("Unable to connect to GORM DB: %v", err)
	}

	// 3. Bootstrap Dependencies (Container)
	container := bootstrap.NewContainer(gormDB, cfg)

	// 4. Start Background Services
	go func() {
		log.Println("Background: Starting Notifier Service...")
		if err := container.NotifierService.Consume(context.Background()); err != nil {
			log.Printf("Background Notifier Error: %v", err)
		}
	}()
	go func() {
		log.Println("Background: Starting Alert Service...")
		if err := container.AlertService.Start(); err != nil {
			log.Printf("Background Alert Error: %v", err)
		}
	}()
	if err := container.Reclaimer.Start(); err != nil {
		log.Printf("Reclaimer Error: %v", err)
	}

	// 5. Initialize Server
	srv := server.New(cfg, container)

	// 6. Run Server, shut the orchestrator down cleanly on SIGINT/SIGTERM
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig
		log.Println("Shutting down...")
		container.Reclaimer.Stop()
		container.Orchestrator.Shutdown()
		_ = srv.GetApp().Shutdown()
	}()

	if err := srv.Run(); err != nil {
		log.Fatal(err)
	}
}
