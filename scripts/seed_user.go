package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/linesmerrill/primecare-chat/config"
	"github.com/linesmerrill/primecare-chat/databases"
	"github.com/linesmerrill/primecare-chat/models"
)

// Quick utility to create a chat user with a bcrypt hashed password
// Usage: go run scripts/seed_user.go <email> <patient|admin> <password> <full name...>
// Set SEED_USER_ID to pin the id, e.g. for the care-team admin the patient widget targets.
func main() {
	if len(os.Args) < 5 {
		fmt.Println("Usage: go run scripts/seed_user.go <email> <patient|admin> <password> <full name...>")
		fmt.Println("Example: SEED_USER_ID=4e0a4401-c205-4bdb-8edf-3d6c24bf6951 go run scripts/seed_user.go care@primecare.health admin s3cret PrimeCare Admin")
		os.Exit(1)
	}

	email := strings.ToLower(strings.TrimSpace(os.Args[1]))
	role := os.Args[2]
	password := os.Args[3]
	fullName := strings.Join(os.Args[4:], " ")

	if role != models.RolePatient && role != models.RoleAdmin {
		fmt.Printf("Unknown role %q, expected patient or admin\n", role)
		os.Exit(1)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		fmt.Printf("Error generating hash: %v\n", err)
		os.Exit(1)
	}

	config.LoadEnv()
	conf := config.New()
	client, err := databases.NewClient(conf)
	if err != nil {
		fmt.Printf("Error creating database client: %v\n", err)
		os.Exit(1)
	}
	if err := client.Connect(); err != nil {
		fmt.Printf("Error connecting to database: %v\n", err)
		os.Exit(1)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	defer client.Disconnect(ctx)

	user := models.User{
		ID:           config.Getenv("SEED_USER_ID", uuid.New().String()),
		Email:        email,
		FullName:     fullName,
		Role:         role,
		PasswordHash: string(hashedPassword),
		CreatedAt:    time.Now().UTC(),
	}
	if _, err := databases.NewUserDatabase(databases.NewDatabase(conf, client)).InsertOne(ctx, user); err != nil {
		fmt.Printf("Error inserting user: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Created %s %s (%s) with id %s\n", role, fullName, email, user.ID)
}
