package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"writeup-rag-be/internal/bootstrap"
	"writeup-rag-be/internal/config"
	"writeup-rag-be/internal/entity"
	"writeup-rag-be/pkg/database"

	"github.com/fatih/color"
)

func main() {
	runId := flag.String("run", "", "resume an existing run instead of starting a new one")
	flag.Parse()

	// Ctrl+C cancels the run; progress is resumable via -run.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. Load Configuration
	cfg := config.Load()

	// 2. Initialize Database
	gormDB, err := database.NewGormDBFromDSN(cfg.Database.Connection)
	if err != nil {
		log.Panicf("Unable to connect to GORM DB: %v", err)
	}

	// 3. Bootstrap Dependencies (Container)
	container := bootstrap.NewContainer(gormDB, cfg)

	// 4. Start the index job consumer so stored write-ups get embedded
	// within the same process.
	go func() {
		if err := container.IndexerService.Consume(ctx); err != nil {
			log.Printf("Background Consumer Error: %v", err)
		}
	}()

	id := *runId
	if id == "" {
		id = fmt.Sprintf("run_%s", time.Now().Format("20060102_150405"))
	}

	color.Cyan("🚀 Starting ingestion run %s\n", id)

	report, err := container.PipelineService.Run(ctx, id)
	if err != nil {
		color.Red("Run failed: %v", err)
		log.Fatalf("run %s: %v", id, err)
	}

	// 5. Print the run summary
	color.Cyan("\nRun %s finished", report.RunId)
	for _, stage := range []entity.Stage{
		entity.StageDiscovered,
		entity.StageFetched,
		entity.StageCleaned,
		entity.StageEnriched,
		entity.StageStored,
		entity.StageRejected,
		entity.StageFailed,
	} {
		count := report.Stages[stage]
		if count == 0 {
			continue
		}
		switch stage {
		case entity.StageStored:
			color.Green("  %-20s %d", stage, count)
		case entity.StageRejected:
			color.Yellow("  %-20s %d", stage, count)
		case entity.StageFailed:
			color.Red("  %-20s %d", stage, count)
		default:
			fmt.Printf("  %-20s %d\n", stage, count)
		}
	}
}
