package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/streetgrid/gridnode/internal/core/domain"
	"github.com/streetgrid/gridnode/internal/util"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestServer(t *testing.T, healthy bool) *Server {
	t.Helper()
	as := actor.NewActorSystem()
	t.Cleanup(as.Shutdown)
	pid := as.Root.Spawn(actor.PropsFromFunc(func(ctx actor.Context) {
		switch ctx.Message().(type) {
		case domain.ActorHealthRequest:
			ctx.Respond(domain.ActorHealthResponse{Id: domain.ACTOR_ID_MASTER, Healthy: healthy})
		case domain.GetNodeStatusRequest:
			ctx.Respond(domain.GetNodeStatusResponse{Status: domain.NodeStatus{
				NodeId: "n1",
				State:  "islanded",
				Relays: []domain.Relay{{Id: "grid", RelayType: domain.RelayTypeGrid}},
			}})
		}
	}))
	return &Server{
		httpLog:     true,
		nodeId:      "n1",
		version:     "v1.2.0",
		rootContext: as.Root,
		masterActor: pid,
		logger:      zap.NewNop(),
	}
}

func get(s *Server, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.RegisterRoutes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthCheckHandler(t *testing.T) {
	rec := get(newTestServer(t, true), "/healthcheck")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "health_check: OK", rec.Body.String())

	rec = get(newTestServer(t, false), "/healthcheck")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestStatusHandler(t *testing.T) {
	rec := get(newTestServer(t, true), "/status")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "n1", body["node_id"])
	assert.Equal(t, "islanded", body["state"])
	relays, ok := body["relays"].([]any)
	require.True(t, ok)
	require.Len(t, relays, 1)
	assert.Equal(t, "grid", relays[0].(map[string]any)["relay_type"])
}

func TestResponsesNameTheNode(t *testing.T) {
	s := newTestServer(t, false)
	for _, path := range []string{"/healthcheck", "/status", "/missing"} {
		rec := get(s, path)
		assert.Equal(t, "gridnode/v1.2.0", rec.Header().Get(echo.HeaderServer), path)
		assert.Equal(t, "n1", rec.Header().Get("X-Node-Id"), path)
	}

	s.version = ""
	assert.Equal(t, "gridnode", get(s, "/status").Header().Get(echo.HeaderServer))
}

func TestNewServer(t *testing.T) {
	cfg := util.LoadTestConfig()
	cfg.Port = 8181
	srv := NewServer(&cfg, "v1.2.0", nil, nil, zap.NewNop())
	assert.Equal(t, ":8181", srv.Addr)
	assert.NotZero(t, srv.ReadHeaderTimeout)
	assert.NotNil(t, srv.Handler)
}
