package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/lucashicks1/cssebot/cmd/internal/studio"
)

func TestRegistry_Counters(t *testing.T) {
	t.Parallel()

	r := New()

	guilds := r.Cache("guild_studio")
	guilds.Hit()
	guilds.Hit()
	guilds.Miss()
	guilds.Expire()
	require.Equal(t, 2.0, testutil.ToFloat64(r.cacheEvents.WithLabelValues("guild_studio", "hit")))
	require.Equal(t, 1.0, testutil.ToFloat64(r.cacheEvents.WithLabelValues("guild_studio", "miss")))
	require.Equal(t, 1.0, testutil.ToFloat64(r.cacheEvents.WithLabelValues("guild_studio", "expire")))

	obs := r.Wizard("studio_setup")
	obs.Transition("render")
	obs.Transition("render")
	obs.Transition("finish")
	require.Equal(t, 2.0, testutil.ToFloat64(r.wizardEvents.WithLabelValues("studio_setup", "render")))
	require.Equal(t, 1.0, testutil.ToFloat64(r.wizardEvents.WithLabelValues("studio_setup", "finish")))

	r.Reconciled(studio.OutcomeJoined)
	require.Equal(t, 1.0, testutil.ToFloat64(r.reconciles.WithLabelValues("joined")))

	r.Interaction("command", "ok")
	r.GatewayEvent("GUILD_CREATE")
	require.Equal(t, 1.0, testutil.ToFloat64(r.interactions.WithLabelValues("command", "ok")))
	require.Equal(t, 1.0, testutil.ToFloat64(r.gateway.WithLabelValues("GUILD_CREATE")))
}

func TestRegistry_Handler(t *testing.T) {
	t.Parallel()

	r := New()
	r.Reconciled(studio.OutcomeCreated)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	require.True(t, strings.Contains(body, `cssebot_studio_reconcile_total{outcome="created"} 1`), body)
	require.True(t, strings.Contains(body, "go_goroutines"))
}
