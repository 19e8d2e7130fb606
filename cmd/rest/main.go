package main

import (
	"context"
	"log"

	"writeup-rag-be/internal/bootstrap"
	"writeup-rag-be/internal/config"
	"writeup-rag-be/internal/server"
	"writeup-rag-be/internal/tracer"
	"writeup-rag-be/pkg/database"
	"writeup-rag-be/pkg/events"
	pktNats "writeup-rag-be/pkg/nats"
)

func main() {
	// 0. Initialize Tracer (enabled via OTEL_ENABLED=true)
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
		log.Println("Background: Starting Index Job Consumer...")
		if err := container.IndexerService.Consume(context.Background()); err != nil {
			log.Printf("Background Consumer Error: %v", err)
		}
	}()

	// Mirror pipeline events from NATS into the server log so operators can
	// follow runs started from the CLI.
	natsSub, err := pktNats.NewSubscriber(cfg.App.NatsURL)
	if err != nil {
		log.Printf("Warn: Failed to connect to NATS Subscriber: %v", err)
	} else {
		err = natsSub.Subscribe("events.>", "rest-event-log", func(_ context.Context, event events.Event) error {
			log.Printf("Event: %s %v", event.EventType(), event.Payload())
			return nil
		})
		if err != nil {
			log.Printf("Warn: Failed to subscribe to pipeline events: %v", err)
		}
	}

	// 5. Initialize Server
	srv := server.New(cfg, container)

	// 6. Run Server
	log.Fatal(srv.Run())
}
