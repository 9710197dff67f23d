package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tierdx/tierdx/internal/domain"
)

func TestMyVariantFetchNoHitsReturnsPresentEmptyFragment(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"hits": []}`))
	}))
	defer server.Close()

	client := NewMyVariantClient(server.URL, 5)
	req := domain.SourceRequest{Variant: domain.NormalizedVariant{Gene: "BRAF", VariantNormalized: "V600E"}}

	result, state, err := client.Fetch(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, domain.FetchPresent, state)
	require.NotNil(t, result, "a reachable source with no hits must not be conflated with an absent source")

	frag, ok := result.(*domain.MyVariantFragment)
	require.True(t, ok)
	assert.Equal(t, domain.FetchPresent, frag.State)
}
