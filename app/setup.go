package app

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/sahilchouksey/course-storefront/api"
	"github.com/sahilchouksey/course-storefront/config"
	"github.com/sahilchouksey/course-storefront/database"
	"github.com/sahilchouksey/course-storefront/router"
	"github.com/sahilchouksey/course-storefront/services/cron"
)

func SetupAndRunServer() error {

	// Load ENV
	if err := config.LoadENV(); err != nil {
		log.Printf("No .env file loaded: %v", err)
	}

	env, err := config.Get()
	if err != nil {
		return err
	}

	// Initialize GORM database connection
	store, err := database.StartGORM()
	if err != nil {
		log.Printf("Could not reach Postgres at %s:%s, check DB_HOST/DB_PORT and that the server is running", env.DB_HOST, env.DB_PORT)
		return err
	}

	if err := store.Init(); err != nil {
		log.Printf("Failed to initialize database tables: %v", err)
		return err
	}

	svc, err := router.BuildServices(store, env)
	if err != nil {
		store.Close()
		return err
	}

	// In-process scheduler. Deployments that call /cron/cleanup externally set CRON_ENABLED=false.
	var cronManager *cron.CronManager
	if env.CRON_ENABLED {
		cronManager = cron.NewCronManager(store.DB(), svc.Cleanup, svc.Tokens)
		if err := cronManager.Start(); err != nil {
			log.Printf("Warning: Failed to start cron jobs: %v", err)
			cronManager = nil
		}
	}

	// Defer Closing DB and stopping cron jobs
	defer func() {
		if cronManager != nil {
			cronManager.Stop()
		}
		if svc.RedisCache != nil {
			svc.RedisCache.Close()
		}
		store.Close()
	}()

	// Init API
	server := api.NewAPIServer(fmt.Sprintf(":%d", env.PORT))
	router.SetupRoutes(server.GetEngine(), store, svc, env)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Println("Shutting down server...")
		if err := server.Shutdown(); err != nil {
			log.Printf("Shutdown error: %v", err)
		}
	}()

	return server.Run()
}
