package driven

import (
	"context"

	"github.com/hearthvtt/hearth-cli/internal/core/domain"
)

// SocketTransport is the replication channel to the authoritative server.
// Every durable mutation travels through it; the client never applies a
// durable change it has not seen echoed back.
type SocketTransport interface {
	// ModifyDocument submits one CRUD request and waits for the server's
	// acknowledgement. The returned response carries the authoritative
	// post-state, or an error string when the server rejected the request.
	ModifyDocument(ctx context.Context, req *domain.Request) (*domain.Response, error)

	// ManageCompendium submits a compendium pack lifecycle request.
	ManageCompendium(ctx context.Context, req *domain.CompendiumRequest) (*domain.CompendiumResponse, error)

	// ShareImage broadcasts an image popout to all connected peers.
	ShareImage(ctx context.Context, img *domain.SharedImage) error

	// OnModifyDocument registers the handler for inbound replication
	// messages: broadcasts of other users' mutations and server-initiated
	// changes. The acknowledgement of this client's own request is returned
	// by ModifyDocument, never replayed through the handler. Only one
	// handler is active at a time.
	OnModifyDocument(fn func(resp *domain.Response))

	// OnShareImage registers the handler for inbound image broadcasts.
	OnShareImage(fn func(img *domain.SharedImage))

	// Close tears down the connection. Pending requests fail.
	Close() error
}
