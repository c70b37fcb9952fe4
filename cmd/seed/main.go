package main

import (
	"context"
	"log"
	"os"

	"chat-handoff-be/internal/repository/implementation"
	"chat-handoff-be/internal/service"
	"chat-handoff-be/pkg/database"

	"github.com/joho/godotenv"
)

// Seeds the first operator account so the dashboard has a login.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Info: No .env file found, using system env")
	}

	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		log.Fatal("Error: DB_CONNECTION_STRING is not set")
	}

	email := os.Getenv("SEED_OPERATOR_EMAIL")
	password := os.Getenv("SEED_OPERATOR_PASSWORD")
	fullName := os.Getenv("SEED_OPERATOR_NAME")
	if email == "" || password == "" {
		log.Fatal("Error: SEED_OPERATOR_EMAIL and SEED_OPERATOR_PASSWORD must be set")
	}
	if fullName == "" {
		fullName = "Operator"
	}

	db, err := database.NewGormDBFromDSN(dsn)
	if err != nil {
		log.Fatal("Error: Failed to connect to database:", err)
	}

	operators := implementation.NewOperatorRepository(db)
	auth := service.NewAuthService(operators, os.Getenv("JWT_SECRET"))

	created, err := auth.CreateOperator(context.Background(), email, fullName, password, "operator")
	if err != nil {
		log.Fatalf("Error: Failed to seed operator: %v", err)
	}

	log.Printf("✅ Seeded operator %s (%s)", created.Email, created.ID)
}
