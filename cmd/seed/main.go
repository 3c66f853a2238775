// Command seed fills the configured document store with demo data.
package main

import (
	"context"
	"flag"
	"log"

	"go.uber.org/zap"

	"github.com/noah-isme/mentormatch-api/internal/seed"
	"github.com/noah-isme/mentormatch-api/internal/service"
	"github.com/noah-isme/mentormatch-api/pkg/config"
	"github.com/noah-isme/mentormatch-api/pkg/database"
	"github.com/noah-isme/mentormatch-api/pkg/docstore"
	"github.com/noah-isme/mentormatch-api/pkg/logger"
)

func main() {
	students := flag.Int("students", 40, "Number of students to create")
	supervisors := flag.Int("supervisors", 8, "Number of supervisors to create")
	projects := flag.Int("projects", 2, "Projects per supervisor")
	fakeSeed := flag.Int64("seed", 0, "Random seed; 0 picks one from the clock")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Store.Driver == config.StoreDriverMemory {
		logr.Fatal("seeding the in-memory store has no effect; set STORE_DRIVER=postgres")
	}
	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	if err := database.Migrate(db, logr); err != nil {
		logr.Fatal("failed to run migrations", zap.Error(err))
	}
	store := docstore.NewPostgresStore(db)
	defer store.Close() //nolint:errcheck

	res, err := seed.New(service.NewRepositories(store), logr).Run(context.Background(), seed.Options{
		Students:              *students,
		Supervisors:           *supervisors,
		ProjectsPerSupervisor: *projects,
		Seed:                  *fakeSeed,
	})
	if err != nil {
		logr.Fatal("seed failed", zap.Error(err))
	}
	logr.Info("demo accounts ready",
		zap.String("admin", res.AdminEmail),
		zap.String("password", seed.DefaultPassword),
	)
}
