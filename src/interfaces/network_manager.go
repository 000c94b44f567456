package interfaces

import (
	"context"

	"mt5-gateway/src/network"
)

// -----------------------------------------------------------------------------
// INetworkManager defines the contract for HTTP round trips to a peer.
// -----------------------------------------------------------------------------

type INetworkManager interface {

	// -----------------------------------------------------------------------------

	// Get performs a GET request to the specified URL with query parameters.
	Get(ctx context.Context, url string, params map[string]string, headers map[string]string) (*network.Response, error)

	// -----------------------------------------------------------------------------

	// PostJSON sends body as JSON.
	PostJSON(ctx context.Context, url string, body interface{}, headers map[string]string) (*network.Response, error)

	// -----------------------------------------------------------------------------

	// Do performs an arbitrary request; body, when non-nil, is JSON encoded.
	Do(ctx context.Context, method, url string, headers map[string]string, body interface{}) (*network.Response, error)
}
