// seed inserts a verified test user and a handful of tasks into the local
// dev database. Run: go run ./cmd/seed
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/abakirov/taskhub/internal/infrastructure/postgres"
)

const (
	seedEmail    = "seed@test.local"
	seedPassword = "Password123!"
	seedName     = "Seed User"
)

type taskSpec struct {
	title   string
	dueIn   time.Duration // 0 = no due date
	hasDesc bool
}

var tasks = []taskSpec{
	// Due soon — picked up by the reminder sweep
	{"Pay rent", 2 * time.Hour, false},
	{"Submit expense report", 6 * time.Hour, true},
	{"Call dentist", 20 * time.Hour, false},

	// Due later
	{"Renew passport", 72 * time.Hour, true},
	{"Plan weekend trip", 120 * time.Hour, false},

	// No due date
	{"Read 'The Go Programming Language'", 0, false},
	{"Clean out garage", 0, true},
	{"Learn to make sourdough", 0, false},
}

func main() {
	ctx := context.Background()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set — run: direnv allow")
	}

	pool, err := postgres.NewPool(ctx, dbURL)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer pool.Close()

	hash, err := bcrypt.GenerateFromPassword([]byte(seedPassword), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}

	// Upsert test user
	var userID string
	err = pool.QueryRow(ctx, `
		INSERT INTO users (email, password_hash, name)
		VALUES ($1, $2, $3)
		ON CONFLICT (email) DO UPDATE SET updated_at = NOW()
		RETURNING id`,
		seedEmail, string(hash), seedName,
	).Scan(&userID)
	if err != nil {
		log.Fatalf("upsert user: %v", err)
	}

	var inserted int
	for _, spec := range tasks {
		var dueAt *time.Time
		if spec.dueIn > 0 {
			t := time.Now().Add(spec.dueIn)
			dueAt = &t
		}
		var desc *string
		if spec.hasDesc {
			d := "Seeded task for local development."
			desc = &d
		}

		_, err := pool.Exec(ctx, `
			INSERT INTO tasks (user_id, title, description, due_at)
			VALUES ($1, $2, $3, $4)`,
			userID, spec.title, desc, dueAt,
		)
		if err != nil {
			log.Fatalf("insert task %q: %v", spec.title, err)
		}
		inserted++
	}

	fmt.Println("Seed complete")
	fmt.Println()
	fmt.Printf("  User:          %s  (password: %s)\n", seedEmail, seedPassword)
	fmt.Printf("  User ID:       %s\n", userID)
	fmt.Printf("  Tasks created: %d\n", inserted)
}
