package main

import (
	"log"

	_ "tasktrack/docs"
	"tasktrack/internal/config"
	"tasktrack/internal/server"
)

// @title           TaskTrack API
// @version         1.0
// @description     API for tracking tasks, their dependencies, and the audit timeline of changes.

// @host      localhost:8080
// @BasePath  /

// @schemes http
func main() {
	cfg := config.Load()

	s, err := server.Init(cfg)
	if err != nil {
		log.Fatalf("❌ Server initialization failed: %v", err)
	}

	s.Run()
}
