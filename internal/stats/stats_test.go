package stats

import (
	"encoding/json"
	"expvar"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// A single updater for the whole test: expvar map names are global to
// the process and cannot be registered twice.
func Test_StatsUpdater(t *testing.T) {
	mux := http.NewServeMux()
	su := NewStatsUpdater(mux)
	su.RegisterMetric(MessagesSent)
	su.RegisterMetric(ActiveConnections)
	su.Run()
	defer su.Stop()

	su.Incr(MessagesSent)
	su.Incr(MessagesSent)
	su.Incr(ActiveConnections)
	su.Decr(ActiveConnections)

	// Updates flow through a channel; wait for the worker to apply them.
	assert.Eventually(t, func() bool {
		return su.vars.Get(MessagesSent).(*expvar.Int).Value() == 2 &&
			su.vars.Get(ActiveConnections).(*expvar.Int).Value() == 0
	}, time.Second, 10*time.Millisecond, "expected the worker to drain the update queue")

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/debug/vars", nil))

	assert.Equal(t, http.StatusOK, rr.Code)

	var data map[string]any
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &data))
	assert.EqualValues(t, 2, data[MessagesSent])
	assert.EqualValues(t, 0, data[ActiveConnections])
	assert.Contains(t, data, "Uptime")
}
