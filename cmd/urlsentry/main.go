package main

import (
	"github.com/joho/godotenv"

	"github.com/urlsentry/urlsentry-go/internal/cli"
)

func main() {
	_ = godotenv.Load()
	cli.Execute()
}
