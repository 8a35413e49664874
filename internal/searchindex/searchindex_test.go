package searchindex

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SunStone-Secure-LLC/workload-discovery-on-aws/internal/resource"
)

func TestIndexReturnsUnprocessedIdsWithoutError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_ = json.NewEncoder(w).Encode(bulkResponse{Items: []bulkItem{
			{ID: "good"},
			{ID: "bad", Error: "mapping conflict"},
		}})
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	unprocessed, err := client.Index(t.Context(), []resource.Projected{{ID: "good"}, {ID: "bad"}})

	require.NoError(t, err)
	assert.Equal(t, []string{"bad"}, unprocessed)
}

func TestIndexSurfacesServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	_, err := client.Index(t.Context(), []resource.Projected{{ID: "x"}})
	assert.Error(t, err)
}
