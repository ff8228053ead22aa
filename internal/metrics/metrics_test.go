package metrics

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_HandlerExposesAppCounters(t *testing.T) {
	m, err := New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Shutdown(context.Background()) })

	app, err := NewAppMetrics(m.Meter)
	require.NoError(t, err)

	app.MatchesFound.Add(context.Background(), 2)
	app.RegisteredIdentities.Add(context.Background(), 1)

	ts := httptest.NewServer(m.Handler)
	defer ts.Close()

	resp, err := ts.Client().Get(ts.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), "matches_found_total")
	assert.Contains(t, string(body), "registered_identities_total")
}
