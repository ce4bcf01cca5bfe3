// Command purge deletes expired refresh-token records. It is meant to be run
// periodically by an external scheduler (cron or similar); the service itself
// never purges.
package main

import (
	"bookstore-api/config"
	"bookstore-api/db"
	"bookstore-api/logger"
	"bookstore-api/repository"
)

func main() {
	config.LoadConfig(".")
	logger.Init()

	database, err := db.Connect()
	if err != nil {
		logger.Log.Fatalf("Error connecting to the database: %v", err)
	}
	defer database.Close()

	tokenRepo := repository.NewTokenRepository(database)
	deleted, err := tokenRepo.DeleteExpired()
	if err != nil {
		logger.Log.Fatalf("Error purging expired refresh tokens: %v", err)
	}

	logger.Log.WithField("deleted", deleted).Info("Expired refresh tokens purged")
}
