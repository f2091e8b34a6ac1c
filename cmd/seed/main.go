// Package main seeds the account pool from a JSON file.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"time"

	"github.com/insight-scraper/internal/config"
	"github.com/insight-scraper/internal/models"
	"github.com/insight-scraper/internal/storage"
)

type seedAccount struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

func main() {
	file := flag.String("file", "accounts.json", "Path to the seed account file")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	data, err := os.ReadFile(*file)
	if err != nil {
		log.Fatalf("Failed to read seed file: %v", err)
	}

	var seeds []seedAccount
	if err := json.Unmarshal(data, &seeds); err != nil {
		log.Fatalf("Failed to parse seed file: %v", err)
	}
	if len(seeds) == 0 {
		log.Fatalf("Seed file %s contains no accounts", *file)
	}

	db, err := storage.NewPostgresDB(&cfg.Database.Postgres)
	if err != nil {
		log.Fatalf("Failed to connect to Postgres: %v", err)
	}
	defer db.Close()

	accounts := make([]models.Account, 0, len(seeds))
	for _, s := range seeds {
		if s.Username == "" || s.Email == "" {
			log.Fatalf("Seed account missing username or email: %+v", s)
		}
		accounts = append(accounts, models.Account{
			Username: s.Username,
			Email:    s.Email,
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	inserted, err := storage.NewAccountRepository(db).Seed(ctx, accounts)
	if err != nil {
		log.Fatalf("Failed to seed accounts: %v", err)
	}

	log.Printf("Seeded %d of %d accounts (%d already present)", inserted, len(accounts), len(accounts)-inserted)
}
