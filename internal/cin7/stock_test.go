package cin7

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStockLookupSumsBranchProducts(t *testing.T) {
	client := testClient(func(r *http.Request) (*http.Response, error) {
		assert.Equal(t, "/api/v1/Products", r.URL.Path)
		switch r.URL.Query().Get("where") {
		case "code='P1'":
			return jsonResponse(http.StatusOK, `[{"id":5,"code":"P1","name":"Lever","branchProducts":[
				{"branchId":3,"stockOnHand":12},
				{"branchId":230,"stockOnHand":1.5},
				{"branchId":230,"stockOnHand":0.5},
				{"branchId":0,"stockOnHand":99}
			]}]`), nil
		case "code='BROKEN'":
			return jsonResponse(http.StatusBadRequest, `bad`), nil
		}
		return jsonResponse(http.StatusOK, `[]`), nil
	})
	lookup := StockLookup{Client: client}

	levels, err := lookup.StockOnHand(context.Background(), "P1")
	require.NoError(t, err)
	assert.Equal(t, map[int]float64{3: 12, 230: 2}, levels)

	levels, err = lookup.StockOnHand(context.Background(), "NOPE")
	require.NoError(t, err)
	assert.Empty(t, levels)

	_, err = lookup.StockOnHand(context.Background(), "BROKEN")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Contains(t, err.Error(), "lookup stock for BROKEN")
}
