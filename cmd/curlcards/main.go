package main

import (
	"log/slog"

	"curlcards-backend/cmd/curlcards/cmd"

	"github.com/joho/godotenv"
)

func main() {
	err := godotenv.Load()
	if err != nil {
		slog.Debug("no .env file found, using process environment")
	}

	cmd.Execute()
}
