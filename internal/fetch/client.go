// Package fetch provides clients for retrieving reserve and user-position
// snapshots from the off-chain protocol indexer.
package fetch

import (
	"context"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/yourorg/lendpool-health-ea/internal/config"
	"github.com/yourorg/lendpool-health-ea/internal/model"
)

// SnapshotSource is the interface the server consumes for snapshot retrieval
type SnapshotSource interface {
	// FetchReserves retrieves the current reserve snapshot set and the
	// ETH/USD price supplied alongside it
	FetchReserves(ctx context.Context) (*ReserveBundle, error)

	// FetchUserReserves retrieves one user's position snapshots
	FetchUserReserves(ctx context.Context, userID string) ([]*model.UserReservePosition, error)
}

// newRetryClient creates a new HTTP client with retry capabilities
func newRetryClient() *retryablehttp.Client {
	c := retryablehttp.NewClient()
	c.RetryMax = 3
	c.RetryWaitMin = 500 * time.Millisecond
	c.RetryWaitMax = 3 * time.Second
	c.Logger = nil
	return c
}

// StandardClient converts a retryablehttp.Client to a standard http.Client
func StandardClient(retryClient *retryablehttp.Client) *http.Client {
	return retryClient.StandardClient()
}

// getAPIKey retrieves an API key for a specific upstream from configuration
func getAPIKey(cfg config.Config, upstream string) string {
	if k, ok := cfg.APIKeys[upstream]; ok {
		return k
	}
	return ""
}
