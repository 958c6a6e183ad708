package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"

	"github.com/joho/godotenv"
	_ "github.com/mattn/go-sqlite3"

	"github.com/poselab/swinglab/internal/config"
	"github.com/poselab/swinglab/internal/logging"
	"github.com/poselab/swinglab/internal/store"
)

func main() {
	var (
		dbPath = flag.String("db", "", "Database path (default: DB_PATH env)")
		status = flag.Bool("status", false, "Show migration status only")
	)
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	path := *dbPath
	if path == "" {
		path = cfg.DatabasePath
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		log.Fatal("Failed to open database:", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	if *status {
		migrations, applied, err := store.MigrationStatus(db)
		if err != nil {
			log.Fatal("Failed to get migration status:", err)
		}

		fmt.Println("Migration Status:")
		fmt.Println("=================")
		for _, m := range migrations {
			state := "pending"
			if applied[m.Version] {
				state = "applied"
			}
			fmt.Printf("%s - %s [%s]\n", m.Version, m.Name, state)
		}
		return
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	defer logger.Sync()

	fmt.Printf("Running migrations on %s...\n", path)
	if err := store.Migrate(db, logger); err != nil {
		log.Fatal("Failed to run migrations:", err)
	}
	fmt.Println("Migrations completed successfully!")
}
