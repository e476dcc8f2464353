package main

import (
	"flag"
	"log"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	pg "github.com/NordCoder/Gorev/internal/repository/postgres"
)

func main() {
	down := flag.Bool("down", false, "roll back the last migration")
	flag.Parse()

	dbURL := os.Getenv("DB_DSN")
	if dbURL == "" {
		log.Fatal("DB_DSN is empty")
	}

	goose.SetBaseFS(pg.Migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		log.Fatalf("set dialect: %v", err)
	}
	db, err := goose.OpenDBWithDriver("pgx", dbURL)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	if *down {
		if err := goose.Down(db, pg.MigrationsDir); err != nil {
			log.Fatalf("migrate down: %v", err)
		}
		log.Println("migrations: down OK")
		return
	}
	if err := goose.Up(db, pg.MigrationsDir); err != nil {
		log.Fatalf("migrate up: %v", err)
	}
	log.Println("migrations: up OK")
}
