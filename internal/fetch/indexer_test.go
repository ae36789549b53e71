package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/lendpool-health-ea/internal/config"
)

const reservesBody = `{
	"data": [{
		"id": "0xdai",
		"symbol": "DAI",
		"decimals": 18,
		"liquidityIndex": "1001723339484196023531781973",
		"liquidityRate": "22461069120446605265174349",
		"variableBorrowIndex": "1050000000000000000000000000",
		"variableBorrowRate": "38568743388028395681971229",
		"lastUpdateTimestamp": 1700000000,
		"baseLTVasCollateral": "7500",
		"reserveLiquidationThreshold": "8000",
		"reserveLiquidationBonus": "10500",
		"reserveFactor": "1000",
		"usageAsCollateralEnabled": true,
		"priceInEth": "500000000000000",
		"averageStableRate": "0",
		"totalPrincipalStableDebt": "0"
	}],
	"usdPriceEth": "500000000000000",
	"timestamp": 1700000100
}`

const userReservesBody = `{
	"data": [{
		"reserveId": "0xdai",
		"scaledATokenBalance": "161316503206059870",
		"scaledVariableDebt": "0",
		"principalStableDebt": "0",
		"stableBorrowRate": "0",
		"stableBorrowLastUpdateTimestamp": 1700000000,
		"usageAsCollateralEnabledOnUser": true
	}]
}`

func testClient(t *testing.T, handler http.HandlerFunc) *IndexerClient {
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return NewIndexerClient(config.Config{
		IndexerURL: ts.URL,
		APIKeys:    map[string]string{"indexer": "test-key"},
	})
}

func TestFetchReserves(t *testing.T) {
	var gotAuth string
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/reserves", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(reservesBody))
	})

	bundle, err := client.FetchReserves(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, int64(1700000100), bundle.Timestamp)
	assert.Equal(t, "500000000000000", bundle.UsdPriceEth.String())

	require.Len(t, bundle.Reserves, 1)
	assert.Equal(t, "DAI", bundle.Reserves[0].Symbol)
	assert.Equal(t, "1001723339484196023531781973", bundle.Reserves[0].LiquidityIndex.String())
}

func TestFetchReservesErrors(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	})
	_, err := client.FetchReserves(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")

	client = testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data": [], "usdPriceEth": "1", "timestamp": 0}`))
	})
	_, err = client.FetchReserves(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no reserves")

	client = testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(reservesBody[:50]))
	})
	_, err = client.FetchReserves(context.Background())
	assert.Error(t, err, "truncated body should fail decoding")
}

func TestFetchUserReserves(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/users/0xuser/reserves", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(userReservesBody))
	})

	positions, err := client.FetchUserReserves(context.Background(), "0xuser")
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, "0xdai", positions[0].ReserveID)
	assert.Equal(t, "161316503206059870", positions[0].ScaledATokenBalance.String())
	assert.True(t, positions[0].UsageAsCollateralEnabledOnUser)
}
