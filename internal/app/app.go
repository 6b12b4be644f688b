// Package app provides application initialization and dependency
// injection. Setup wires configuration, the database pool, Genkit,
// and the retrieval pipeline into an App container; Close releases
// everything in reverse order.
package app

import (
	"log/slog"

	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pitlane/f1gpt/internal/chat"
	"github.com/pitlane/f1gpt/internal/config"
	"github.com/pitlane/f1gpt/internal/embedding"
	"github.com/pitlane/f1gpt/internal/session"
	"github.com/pitlane/f1gpt/internal/vectorstore"
)

// App is the core application container.
type App struct {
	Config *config.Config
	Logger *slog.Logger

	Genkit      *genkit.Genkit
	DBPool      *pgxpool.Pool
	Embedding   *embedding.Client
	VectorStore *vectorstore.Store
	Sessions    *session.Store
	Chat        *chat.Pipeline

	otelCleanup func()
	dbCleanup   func()
}

// Close gracefully shuts down all resources.
func (a *App) Close() error {
	if a.Logger != nil {
		a.Logger.Info("shutting down application")
	}

	if a.dbCleanup != nil {
		a.dbCleanup()
		a.dbCleanup = nil
	}
	if a.otelCleanup != nil {
		a.otelCleanup()
		a.otelCleanup = nil
	}
	return nil
}
