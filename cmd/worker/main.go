package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"mops/internal/config"
	"mops/internal/db"
	"mops/internal/tasks"

	"github.com/hibiken/asynq"
	_ "github.com/joho/godotenv/autoload"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	dbConn, err := db.InitDB(cfg.DatabaseURL)
	if err != nil {
		log.Printf("Warning: worker running without statement cache: %v", err)
		dbConn = nil
	} else {
		if err := db.Migrate(dbConn); err != nil {
			log.Fatalf("Failed to migrate database: %v", err)
		}
		log.Println("Worker connected to database.")
	}

	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to parse Redis URL: %v", err)
	}

	asynqClient := asynq.NewClient(redisOpt)
	defer asynqClient.Close()

	scheduler := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{})
	refreshTask := tasks.NewRefreshTaxonomiesTask()

	// MOPS publishes new taxonomy packages a few times a year, a daily
	// check is plenty.
	entryID, err := scheduler.Register("0 3 * * *", refreshTask, asynq.Queue("default"))
	if err != nil {
		log.Fatalf("Failed to register periodic task: %v", err)
	}
	log.Printf("Registered periodic task: %s (EntryID: %s)", refreshTask.Type(), entryID)

	srv := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Queues: map[string]int{
				"default": 3,
			},
			Concurrency: 10, // Max 10 concurrent jobs
		},
	)

	taskProcessor := tasks.NewTaskProcessor(dbConn, cfg)

	mux := asynq.NewServeMux()
	mux.HandleFunc(
		tasks.TypeTaskRefreshTaxonomies,
		taskProcessor.HandleRefreshTaxonomiesTask,
	)

	mux.HandleFunc(
		tasks.TypeTaskPrefetchStatement,
		taskProcessor.HandlePrefetchStatementTask,
	)

	go func() {
		log.Println("Starting Asynq scheduler...")
		if err := scheduler.Run(); err != nil {
			log.Fatalf("Could not run Asynq scheduler: %v", err)
		}
	}()

	go func() {
		log.Println("Starting Asynq worker server...")
		if err := srv.Run(mux); err != nil {
			log.Fatalf("Could not run Asynq worker server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	<-quit

	log.Println("Shutdown signal received, shutting down gracefully...")

	scheduler.Shutdown()
	log.Println("Asynq scheduler shut down.")

	srv.Shutdown()
	log.Println("Asynq worker server shut down.")

	asynqClient.Close()
	log.Println("Asynq client closed.")

	log.Println("Worker process shut down complete.")
}
