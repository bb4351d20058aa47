package main

import (
	"database/sql"
	"flag"
	"log"
	"path/filepath"

	"staff_srv/internal/config"
	"staff_srv/internal/database"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose"
)

// goose-диалект и имя database/sql драйвера для каждого драйвера конфигурации
var dialects = map[string]struct {
	goose  string
	driver string
}{
	database.DriverPostgres: {goose: "postgres", driver: "postgres"},
	database.DriverSQLite:   {goose: "sqlite3", driver: "sqlite3"},
}

func main() {
	dir := flag.String("dir", "migrations", "каталог с миграциями")
	command := flag.String("command", "up", "up, down или status")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	d, ok := dialects[cfg.DB.Driver]
	if !ok {
		log.Fatalf("Unsupported database driver: %s", cfg.DB.Driver)
	}

	db, err := sql.Open(d.driver, cfg.DB.DSN)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := goose.SetDialect(d.goose); err != nil {
		log.Fatalf("Failed to set dialect: %v", err)
	}

	// у postgres и sqlite разный DDL, миграции лежат в подкаталогах
	path := filepath.Join(*dir, cfg.DB.Driver)

	switch *command {
	case "up":
		err = goose.Up(db, path)
	case "down":
		err = goose.Down(db, path)
	case "status":
		err = goose.Status(db, path)
	default:
		log.Fatalf("Unknown command: %s", *command)
	}
	if err != nil {
		log.Fatalf("Migration %s failed: %v", *command, err)
	}

	log.Println("Migrations completed successfully")
}
