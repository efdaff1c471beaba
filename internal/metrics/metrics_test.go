package metrics

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveBeforeInitIsNoop(t *testing.T) {
	// Must not panic even when Init has not run yet; library packages
	// observe unconditionally.
	ObservePage("listing", "ok")
	ObserveSkipped("empty")
	ObserveRateLimitDelay("example.com", time.Second)
	ObserveRowsAppended(2)
}

func TestInitIdempotentAndHandlerServes(t *testing.T) {
	Init()
	Init()

	ObservePage("detail", "ok")
	ObserveExtracted()
	ObserveRowsAppended(3)
	IncActiveWorkers()
	DecActiveWorkers()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	Handler().ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "harvester_pages_total")
	assert.Contains(t, body, "harvester_lots_extracted_total")
	assert.Contains(t, body, "harvester_rows_appended_total")
}
