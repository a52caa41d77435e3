package main

import (
	"log"
	"net/http"
	"os"
	"time"

	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"
	"github.com/dkrasnov/pickpool/internal/db"
	"github.com/dkrasnov/pickpool/internal/payment"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	dsn := os.Getenv("DATABASE_PATH")
	if dsn == "" {
		dsn = "pickpool.db?_journal_mode=WAL"
	}

	database := db.InitDB(dsn)
	defer database.Close()

	if err := db.RunMigrations(database.DB, "file://migrations"); err != nil {
		log.Fatal("Failed to run migrations:", err)
	}

	operatorToken := os.Getenv("OPERATOR_TOKEN")
	if operatorToken == "" {
		log.Fatal("OPERATOR_TOKEN must be set")
	}

	sessionManager := scs.New()
	sessionManager.Lifetime = 24 * time.Hour
	sessionManager.Store = sqlite3store.New(database.DB)

	linkBuilder := payment.BuilderForStyle(os.Getenv("PAYMENT_LINK_STYLE"))

	router := newRouter(database, sessionManager, operatorToken, linkBuilder)

	addr := os.Getenv("LISTEN_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	log.Println("Server starting on", addr)
	if err := http.ListenAndServe(addr, router); err != nil {
		log.Fatal(err)
	}
}
