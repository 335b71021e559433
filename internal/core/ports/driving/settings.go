package driving

import (
	"context"

	"github.com/hearthvtt/hearth-cli/internal/core/domain"
)

// SettingsService manages registered game settings across client and world
// scope.
type SettingsService interface {
	// Get retrieves the current value of a registered setting.
	Get(namespace, key string) (any, error)

	// Set validates, coerces, and persists a new value, then fires the
	// setting's onChange callback.
	Set(namespace, key string, value any) (any, error)

	// Keys lists registered setting keys as "namespace.key".
	Keys() []string
}

// CompendiumService manages compendium packs and their contents.
type CompendiumService interface {
	// Packs lists the ids of known packs.
	Packs() []string

	// Index returns the cached or freshly built index rows for a pack.
	Index(ctx context.Context, pack string, fields []string) ([]map[string]any, error)

	// Import copies a pack document into the world and returns it.
	Import(ctx context.Context, pack, id string) (*domain.Document, error)
}
