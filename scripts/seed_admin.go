// Seeds the initial administrator account.
//
// Run once after the first migration, before any admin routes are usable.
//
// Usage: go run scripts/seed_admin.go -email admin@example.com -password <pw>

package main

import (
	"context"
	"flag"
	"log"

	"online_quiz_backend/internal/config"
	"online_quiz_backend/internal/model"
	"online_quiz_backend/internal/repository"
	"online_quiz_backend/pkg/database"

	"golang.org/x/crypto/bcrypt"
)

func main() {
	name := flag.String("name", "Administrator", "display name")
	email := flag.String("email", "", "admin email (required)")
	password := flag.String("password", "", "admin password (required)")
	flag.Parse()

	if *email == "" || *password == "" {
		log.Fatal("both -email and -password are required")
	}

	cfg, err := config.LoadConfig("configs")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	db, err := database.InitDB(&cfg.Database)
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}

	users := repository.NewUserRepository(db)
	ctx := context.Background()

	if existing, err := users.FindByEmail(ctx, *email); err == nil && existing != nil {
		log.Fatalf("user %s already exists (id %d)", *email, existing.ID)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(*password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}

	admin := &model.User{
		Name:     *name,
		Email:    *email,
		Password: string(hash),
		Role:     model.RoleAdmin,
	}
	if err := users.Create(ctx, admin); err != nil {
		log.Fatalf("create admin: %v", err)
	}

	log.Printf("admin %s created (id %d)", *email, admin.ID)
}
