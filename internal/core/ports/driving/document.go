package driving

import (
	"context"

	"github.com/hearthvtt/hearth-cli/internal/core/domain"
)

// DocumentService exposes the CRUD pipeline to external actors.
type DocumentService interface {
	// Create submits proposed records and returns the constructed documents
	// in input order.
	Create(ctx context.Context, documentType string, data []map[string]any, opts *domain.RequestOptions) ([]*domain.Document, error)

	// Update submits patches (each carrying _id) and returns the changed
	// documents. No-op patches are dropped unless opts disables diffing.
	Update(ctx context.Context, documentType string, updates []map[string]any, opts *domain.RequestOptions) ([]*domain.Document, error)

	// Delete removes documents by id and returns the deleted ids.
	Delete(ctx context.Context, documentType string, ids []string, opts *domain.RequestOptions) ([]string, error)

	// Get queries the server without registering results locally.
	Get(ctx context.Context, documentType string, query map[string]any, opts *domain.RequestOptions) ([]map[string]any, error)

	// Collection returns the world collection for a primary document type.
	Collection(documentType string) (*domain.Collection, error)
}
