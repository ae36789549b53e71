package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/yourorg/lendpool-health-ea/internal/config"
	"github.com/yourorg/lendpool-health-ea/internal/model"
)

// ReserveBundle is a parsed reserve snapshot set together with the ETH/USD
// price the indexer reported for the same instant.
type ReserveBundle struct {
	Reserves    []*model.ReserveSnapshot
	UsdPriceEth *big.Int
	Timestamp   int64
}

// IndexerClient implements SnapshotSource against the protocol indexer API
type IndexerClient struct {
	baseURL    string
	httpClient *http.Client
	apiKey     string
}

// NewIndexerClient creates a new indexer API client
func NewIndexerClient(cfg config.Config) *IndexerClient {
	retryClient := newRetryClient()
	return &IndexerClient{
		baseURL:    cfg.IndexerURL,
		httpClient: StandardClient(retryClient),
		apiKey:     getAPIKey(cfg, "indexer"),
	}
}

// FetchReserves retrieves and parses the current reserve snapshot set.
func (c *IndexerClient) FetchReserves(ctx context.Context) (*ReserveBundle, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/v1/reserves", nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	c.setHeaders(req)

	logrus.Debugf("Fetching reserve snapshots from indexer: %s", c.baseURL)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error fetching reserves: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("indexer API error: status %d, body: %s", resp.StatusCode, string(body))
	}

	var response struct {
		Data        []model.ReserveData `json:"data"`
		UsdPriceEth string              `json:"usdPriceEth"`
		Timestamp   int64               `json:"timestamp"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("error decoding reserves response: %w", err)
	}

	if len(response.Data) == 0 {
		return nil, fmt.Errorf("no reserves returned from indexer")
	}

	usdPriceEth, ok := new(big.Int).SetString(response.UsdPriceEth, 10)
	if !ok {
		return nil, fmt.Errorf("invalid usdPriceEth in response: %q", response.UsdPriceEth)
	}

	reserves := make([]*model.ReserveSnapshot, 0, len(response.Data))
	for _, raw := range response.Data {
		snap, err := model.ParseReserveSnapshot(raw)
		if err != nil {
			return nil, fmt.Errorf("error parsing reserve snapshot: %w", err)
		}
		reserves = append(reserves, snap)
	}

	logrus.Debugf("Received %d reserve snapshots from indexer", len(reserves))
	return &ReserveBundle{
		Reserves:    reserves,
		UsdPriceEth: usdPriceEth,
		Timestamp:   response.Timestamp,
	}, nil
}

// FetchUserReserves retrieves and parses one user's position snapshots.
func (c *IndexerClient) FetchUserReserves(ctx context.Context, userID string) ([]*model.UserReservePosition, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/v1/users/"+userID+"/reserves", nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error fetching user reserves: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("indexer API error: status %d, body: %s", resp.StatusCode, string(body))
	}

	var response struct {
		Data []model.UserReserveData `json:"data"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("error decoding user reserves response: %w", err)
	}

	positions := make([]*model.UserReservePosition, 0, len(response.Data))
	for _, raw := range response.Data {
		pos, err := model.ParseUserReservePosition(raw)
		if err != nil {
			return nil, fmt.Errorf("error parsing position snapshot: %w", err)
		}
		positions = append(positions, pos)
	}

	logrus.Debugf("Received %d position snapshots for user %s", len(positions), userID)
	return positions, nil
}

// setHeaders applies auth and content headers to an indexer request
func (c *IndexerClient) setHeaders(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	req.Header.Set("Content-Type", "application/json")
}
