package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

func main() {
	// Best effort: SMTP credentials may live in a .env next to the binary.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
