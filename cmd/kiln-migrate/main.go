package main

import (
	"database/sql"
	"flag"
	"fmt"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/akriventsev/kiln/framework/migrations"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	dbURL := flag.String("database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")
	if err := flag.CommandLine.Parse(os.Args[2:]); err != nil {
		os.Exit(1)
	}

	if *dbURL == "" {
		fmt.Fprintf(os.Stderr, "Error: --database-url or DATABASE_URL is required\n")
		os.Exit(1)
	}

	db, err := sql.Open("pgx", *dbURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	switch command {
	case "up":
		if err := migrations.Up(db); err != nil {
			fmt.Fprintf(os.Stderr, "Error applying migrations: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Migrations applied successfully")
	case "down":
		if err := migrations.Down(db); err != nil {
			fmt.Fprintf(os.Stderr, "Error rolling back migration: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Rolled back 1 migration")
	case "status":
		statuses, err := migrations.Status(db)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error getting status: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Migration Status:")
		fmt.Println("================")
		for _, status := range statuses {
			fmt.Printf("[%s] %d - %s", status.Status, status.Version, status.Name)
			if status.AppliedAt != nil {
				fmt.Printf(" (applied at %s)", status.AppliedAt.Format("2006-01-02 15:04:05"))
			}
			fmt.Println()
		}
	case "version":
		version, err := migrations.Version(db)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error getting version: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(version)
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Kiln Migration Tool")
	fmt.Println()
	fmt.Println("Usage: kiln-migrate <command> [flags]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  up      - Apply all pending migrations")
	fmt.Println("  down    - Rollback the last migration")
	fmt.Println("  status  - Show status of all migrations")
	fmt.Println("  version - Show current schema version")
	fmt.Println()
	fmt.Println("Flags:")
	fmt.Println("  --database-url - PostgreSQL connection string (or DATABASE_URL env)")
}
