package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hivechat/swarm/config"
	"github.com/hivechat/swarm/internal/storage"
	"github.com/hivechat/swarm/swarm"
)

func newTestAPI(t *testing.T) *http.ServeMux {
	t.Helper()
	store, err := storage.Open(config.DatabaseConfig{Driver: "sqlite", DSN: ":memory:"}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	settings := config.NewStore(config.DefaultConfig(), "", zap.NewNop())
	s, err := swarm.New(swarm.Options{Storage: store, Settings: settings})
	require.NoError(t, err)

	return NewAPI(s, settings, zap.NewNop()).Routes()
}

func doJSON(t *testing.T, mux *http.ServeMux, method, path, owner string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if owner != "" {
		req.Header.Set("X-Owner-ID", owner)
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var resp struct {
		Success bool           `json:"success"`
		Data    map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Data
}

func registerAgent(t *testing.T, mux *http.ServeMux, owner, name string) string {
	t.Helper()
	rec := doJSON(t, mux, http.MethodPost, "/api/v1/agents", owner, map[string]any{
		"name":   name,
		"skills": []string{"search"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeData(t, rec)["id"].(string)
}

func TestMissingOwnerHeader(t *testing.T) {
	mux := newTestAPI(t)
	rec := doJSON(t, mux, http.MethodGet, "/api/v1/agents", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegisterAndListAgents(t *testing.T) {
	mux := newTestAPI(t)
	id := registerAgent(t, mux, "o1", "worker-1")
	assert.NotEmpty(t, id)

	rec := doJSON(t, mux, http.MethodGet, "/api/v1/agents?status=idle", "o1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "worker-1")

	// Other owners never see it.
	rec = doJSON(t, mux, http.MethodGet, "/api/v1/agents", "o2", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "worker-1")
}

func TestHeartbeatUnknownAgent(t *testing.T) {
	mux := newTestAPI(t)
	rec := doJSON(t, mux, http.MethodPost, "/api/v1/agents/ghost/heartbeat", "o1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTaskLifecycleOverAPI(t *testing.T) {
	mux := newTestAPI(t)
	agentID := registerAgent(t, mux, "o1", "worker")

	rec := doJSON(t, mux, http.MethodPost, "/api/v1/tasks", "o1", map[string]any{
		"title":       "summarize the incident",
		"auto_assign": true,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	data := decodeData(t, rec)
	taskID := data["id"].(string)
	assert.Equal(t, "assigned", data["status"])
	assert.Equal(t, agentID, data["assigned_agent_id"])

	rec = doJSON(t, mux, http.MethodPost, "/api/v1/tasks/"+taskID+"/start", "o1", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, mux, http.MethodPost, "/api/v1/tasks/"+taskID+"/complete", "o1", map[string]any{
		"result": map[string]any{"summary": "done"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "completed", decodeData(t, rec)["status"])
}

func TestDirectAssignToBusyAgentConflicts(t *testing.T) {
	mux := newTestAPI(t)
	agentID := registerAgent(t, mux, "o1", "worker")

	rec := doJSON(t, mux, http.MethodPost, "/api/v1/tasks", "o1", map[string]any{
		"title":    "first",
		"agent_id": agentID,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// The agent is busy now; a direct assignment still creates the task but
	// reports the conflict.
	rec = doJSON(t, mux, http.MethodPost, "/api/v1/tasks", "o1", map[string]any{
		"title":    "second",
		"agent_id": agentID,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "AGENT_UNAVAILABLE")
	assert.Contains(t, rec.Body.String(), "second")
}

func TestHandoffAcceptOverAPI(t *testing.T) {
	mux := newTestAPI(t)
	from := registerAgent(t, mux, "o1", "from")
	to := registerAgent(t, mux, "o1", "to")

	rec := doJSON(t, mux, http.MethodPost, "/api/v1/handoffs", "o1", map[string]any{
		"from_agent_id": from,
		"to_agent_id":   to,
		"reason":        "needs escalation",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	handoffID := decodeData(t, rec)["id"].(string)

	// Only the target agent may accept.
	rec = doJSON(t, mux, http.MethodPost, "/api/v1/handoffs/"+handoffID+"/accept", "o1", map[string]any{
		"agent_id": from,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, mux, http.MethodPost, "/api/v1/handoffs/"+handoffID+"/accept", "o1", map[string]any{
		"agent_id": to,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "accepted", decodeData(t, rec)["status"])
}

func TestConsensusVoteOverAPI(t *testing.T) {
	mux := newTestAPI(t)

	rec := doJSON(t, mux, http.MethodPost, "/api/v1/consensus", "o1", map[string]any{
		"question":  "ship it?",
		"options":   []string{"yes", "no"},
		"agent_ids": []string{"a1", "a2"},
		"threshold": 1.0,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	requestID := decodeData(t, rec)["id"].(string)

	rec = doJSON(t, mux, http.MethodPost, "/api/v1/consensus/"+requestID+"/votes", "o1", map[string]any{
		"agent_id": "a1",
		"choice":   "yes",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"resolved":false`)

	rec = doJSON(t, mux, http.MethodPost, "/api/v1/consensus/"+requestID+"/votes", "o1", map[string]any{
		"agent_id": "a2",
		"choice":   "yes",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"resolved":true`)

	// Ineligible voters are rejected.
	rec = doJSON(t, mux, http.MethodPost, "/api/v1/consensus/"+requestID+"/votes", "o1", map[string]any{
		"agent_id": "outsider",
		"choice":   "yes",
	})
	assert.NotEqual(t, http.StatusOK, rec.Code)
}

func TestCollabOutOfTurnOverAPI(t *testing.T) {
	mux := newTestAPI(t)

	rec := doJSON(t, mux, http.MethodPost, "/api/v1/collaborations", "o1", map[string]any{
		"agent_ids":  []string{"a1", "a2"},
		"task":       "write the changelog",
		"mode":       "sequential",
		"max_rounds": 2,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	collabID := decodeData(t, rec)["id"].(string)

	rec = doJSON(t, mux, http.MethodPost, "/api/v1/collaborations/"+collabID+"/contributions", "o1", map[string]any{
		"agent_id": "a2",
		"content":  "me first",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "OUT_OF_TURN")

	rec = doJSON(t, mux, http.MethodPost, "/api/v1/collaborations/"+collabID+"/contributions", "o1", map[string]any{
		"agent_id": "a1",
		"content":  "draft",
	})
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestStatusEndpoint(t *testing.T) {
	mux := newTestAPI(t)
	registerAgent(t, mux, "o1", "worker")

	rec := doJSON(t, mux, http.MethodGet, "/api/v1/status", "o1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeData(t, rec)
	agents := data["agents"].(map[string]any)
	assert.Equal(t, float64(1), agents["idle"])
}

func TestHealthEndpoint(t *testing.T) {
	mux := newTestAPI(t)
	rec := doJSON(t, mux, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"healthy":true`)
}

func TestUnknownTaskReturns404(t *testing.T) {
	mux := newTestAPI(t)
	rec := doJSON(t, mux, http.MethodGet, fmt.Sprintf("/api/v1/tasks/%s", "missing"), "o1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
