package main

import (
	"log"

	"github.com/patric-chuzhbe/blogsbook/internal/app"
)

func main() {
	theApp, err := app.New()
	if err != nil {
		log.Fatalf("failed to initialize app: %v", err)
	}
	defer theApp.Close()

	if err := theApp.Run(); err != nil {
		log.Printf("app stopped with error: %v", err)
	}
}
