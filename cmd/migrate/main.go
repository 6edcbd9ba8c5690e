package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"

	"aijudge-backend/config"
	"aijudge-backend/migrations"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

const usage = `Usage: migrate [flags] <command> [args]

Commands:
  up        apply all pending migrations
  down      roll back the latest migration
  status    print the state of every migration
  version   print the current schema version
`

func main() {
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
	}
	dsn := flag.String("database-url", "", "Postgres connection string (defaults to DATABASE_URL)")
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}
	command := flag.Arg(0)
	switch command {
	case "up", "down", "status", "version":
	default:
		log.Fatalf("unknown command %q", command)
	}

	if !config.LoadDotEnv() {
		log.Printf("Warning: No .env file found, using environment variables")
	}
	connString := *dsn
	if connString == "" {
		connString = os.Getenv("DATABASE_URL")
	}
	if connString == "" {
		log.Fatal("DATABASE_URL is required")
	}

	db, err := sql.Open("pgx", connString)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		log.Fatalf("Failed to set dialect: %v", err)
	}

	if err := goose.RunContext(context.Background(), command, db, ".", flag.Args()[1:]...); err != nil {
		log.Fatalf("migrate %s: %v", command, err)
	}
}
