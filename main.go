package main

import (
	"os"

	"github.com/joho/godotenv"

	"grantio/grantscraper/cmd"
)

func main() {
	// Load environment variables from the optional .env file
	_ = godotenv.Load()

	os.Exit(cmd.Execute())
}
