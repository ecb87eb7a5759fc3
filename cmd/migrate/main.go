package main

import (
	"log"
	"os"

	"plant-assistant-be/internal/model"
	"plant-assistant-be/pkg/database"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Info: No .env file found, using system env")
	}

	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		log.Fatal("Error: DB_CONNECTION_STRING is not set")
	}

	db, err := database.NewGormDBFromDSN(dsn)
	if err != nil {
		log.Fatal("Error: Failed to connect to database:", err)
	}

	log.Println("Step 1: Extensions...")
	for _, sql := range []string{
		`CREATE EXTENSION IF NOT EXISTS pgcrypto;`,
		`CREATE EXTENSION IF NOT EXISTS vector;`,
	} {
		if err := db.Exec(sql).Error; err != nil {
			log.Fatalf("Error: %s: %v", sql, err)
		}
	}

	log.Println("Step 2: AutoMigrate...")
	if err := db.AutoMigrate(
		&model.ChatSession{},
		&model.ChatMessage{},
		&model.UserProfile{},
		&model.MessageFeedback{},
		&model.MemoryRecord{},
	); err != nil {
		log.Fatal("Error: AutoMigrate failed:", err)
	}

	log.Println("Step 3: Vector index...")
	// cosine distance is what MemoryRecordRepository.SearchSimilar orders by
	indexSQL := `CREATE INDEX IF NOT EXISTS idx_memory_records_vector ON memory_records USING hnsw (vector vector_cosine_ops);`
	if err := db.Exec(indexSQL).Error; err != nil {
		log.Printf("Warn: vector index not created: %v", err)
	}

	log.Println("Migration finished")
}
