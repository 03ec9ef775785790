//go:build ignore

package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
)

type seedUser struct {
	email      string
	fullName   string
	nationalID string
	role       string
	kycStatus  string
}

// Seeds a verified customer and an operations employee for local development.
// User provisioning normally happens in the identity service; this script only
// exists so the banking API has someone to authenticate as.
func main() {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	users := []seedUser{
		{
			email:      "alice@example.com",
			fullName:   "Alice Customer",
			nationalID: "CU100001",
			role:       "customer",
			kycStatus:  "verified",
		},
		{
			email:      "ops@example.com",
			fullName:   "Olivia Operations",
			nationalID: "EM100001",
			role:       "employee",
			kycStatus:  "verified",
		},
	}

	for _, u := range users {
		id := uuid.New()
		_, err := db.ExecContext(ctx, `
			INSERT INTO users (id, email, full_name, national_id, role, kyc_status, is_active, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, TRUE, NOW(), NOW())
			ON CONFLICT (email) DO NOTHING
		`, id, u.email, u.fullName, u.nationalID, u.role, u.kycStatus)
		if err != nil {
			log.Fatalf("Failed to seed user %s: %v", u.email, err)
		}
		fmt.Printf("✓ Seeded %s (%s)\n", u.email, u.role)
	}

	fmt.Println("\n✅ Seed users created")
}
