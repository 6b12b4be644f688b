// Package cmd provides CLI commands for f1gpt.
//
// Commands:
//   - serve: HTTP API server with SSE streaming
//   - ingest: load the F1 source corpus into the vector store
//
// Signal handling and graceful shutdown are implemented for all
// commands via context cancellation.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
)

// Version information (injected at build time via ldflags).
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// Execute is the main entry point for the f1gpt CLI.
func Execute() error {
	// Initialize logger once at entry point
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if len(os.Args) < 2 {
		runHelp()
		return nil
	}

	switch os.Args[1] {
	case "serve":
		return runServe()
	case "ingest":
		return runIngest()
	case "version", "--version", "-v":
		runVersion()
		return nil
	case "help", "--help", "-h":
		runHelp()
		return nil
	default:
		return fmt.Errorf("unknown command: %s", os.Args[1])
	}
}

// runVersion displays version information.
func runVersion() {
	fmt.Printf("f1gpt v%s\n", Version)
	fmt.Printf("Build: %s\n", BuildTime)
	fmt.Printf("Commit: %s\n", GitCommit)
}

// runHelp displays the help message.
func runHelp() {
	fmt.Println("f1gpt - Formula One chat assistant with retrieval-augmented answers")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  f1gpt serve [addr]  Start HTTP API server (default: 127.0.0.1:3400)")
	fmt.Println("  f1gpt ingest        Load the F1 source corpus into the vector store")
	fmt.Println("  f1gpt --version     Show version information")
	fmt.Println("  f1gpt --help        Show this help")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  GEMINI_API_KEY      Required: Gemini API key")
	fmt.Println("  DATABASE_URL        Optional: overrides postgres_* config settings")
	fmt.Println("  DEBUG               Optional: Enable debug logging")
}
