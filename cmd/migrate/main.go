// Command migrate applies the embedded schema migrations out of band.
//
//	migrate [up|down|status|version|reset]
package main

import (
	"database/sql"
	"fmt"
	"os"

	_ "github.com/lib/pq"

	"github.com/EgehanKilicarslan/shopmetrics/backend-go/internal/config"
	"github.com/EgehanKilicarslan/shopmetrics/backend-go/internal/database"
	"github.com/EgehanKilicarslan/shopmetrics/backend-go/internal/logger"
)

var allowedCommands = map[string]bool{
	"up":      true,
	"down":    true,
	"status":  true,
	"version": true,
	"reset":   true,
}

func main() {
	command := "up"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}
	if !allowedCommands[command] {
		fmt.Fprintf(os.Stderr, "unknown command %q (want up, down, status, version or reset)\n", command)
		os.Exit(2)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	appLogger := logger.New(cfg)

	sqlDB, err := sql.Open("postgres", cfg.PostgresDSN())
	if err != nil {
		appLogger.Error("❌ [Migrate] Failed to open database", "error", err)
		os.Exit(1)
	}
	defer sqlDB.Close()

	if err := sqlDB.Ping(); err != nil {
		appLogger.Error("❌ [Migrate] Database unreachable", "error", err)
		os.Exit(1)
	}

	appLogger.Info("🔄 [Migrate] Running migrations", "command", command)
	if err := database.RunMigrations(sqlDB, command); err != nil {
		appLogger.Error("❌ [Migrate] Migration failed", "command", command, "error", err)
		os.Exit(1)
	}
	appLogger.Info("✅ [Migrate] Done", "command", command)
}
