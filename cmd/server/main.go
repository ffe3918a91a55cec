package main

import (
	"fmt"
	"log"
	"os"

	"github.com/leonj1/scribe-crush/internal/server/app"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func run(logger *log.Logger) error {
	a, err := app.New(version, buildDate, logger)
	if err != nil {
		return fmt.Errorf("startup: %w", err)
	}
	return a.Run()
}

func main() {
	if len(os.Args) > 1 && (os.Args[1] == "version" || os.Args[1] == "--version") {
		fmt.Printf("scribe-server %s (%s)\n", version, buildDate)
		return
	}
	logger := log.New(os.Stdout, "scribe ", log.LstdFlags|log.LUTC|log.Lshortfile)
	if err := run(logger); err != nil {
		logger.Fatal(err)
	}
}
