package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/hivechat/swarm/config"
	"github.com/hivechat/swarm/swarm"
)

// API serves the coordination endpoints over the swarm facade.
type API struct {
	swarm    *swarm.Swarm
	settings *config.Store
	logger   *zap.Logger
}

// NewAPI creates the handler set.
func NewAPI(s *swarm.Swarm, settings *config.Store, logger *zap.Logger) *API {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &API{
		swarm:    s,
		settings: settings,
		logger:   logger.With(zap.String("component", "api")),
	}
}

// Routes builds the route table.
func (a *API) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", a.handleHealth)
	mux.HandleFunc("GET /api/v1/status", a.handleStatus)

	mux.HandleFunc("POST /api/v1/agents", a.handleRegisterAgent)
	mux.HandleFunc("GET /api/v1/agents", a.handleListAgents)
	mux.HandleFunc("GET /api/v1/agents/{id}", a.handleGetAgent)
	mux.HandleFunc("POST /api/v1/agents/{id}/heartbeat", a.handleHeartbeat)

	mux.HandleFunc("POST /api/v1/tasks", a.handleCreateTask)
	mux.HandleFunc("GET /api/v1/tasks", a.handleListTasks)
	mux.HandleFunc("GET /api/v1/tasks/{id}", a.handleGetTask)
	mux.HandleFunc("POST /api/v1/tasks/{id}/assign", a.handleAssignTask)
	mux.HandleFunc("POST /api/v1/tasks/{id}/start", a.handleStartTask)
	mux.HandleFunc("POST /api/v1/tasks/{id}/complete", a.handleCompleteTask)
	mux.HandleFunc("POST /api/v1/tasks/{id}/fail", a.handleFailTask)
	mux.HandleFunc("POST /api/v1/tasks/{id}/cancel", a.handleCancelTask)

	mux.HandleFunc("POST /api/v1/handoffs", a.handleCreateHandoff)
	mux.HandleFunc("GET /api/v1/handoffs", a.handleListHandoffs)
	mux.HandleFunc("GET /api/v1/handoffs/{id}", a.handleGetHandoff)
	mux.HandleFunc("POST /api/v1/handoffs/{id}/accept", a.handleAcceptHandoff)
	mux.HandleFunc("POST /api/v1/handoffs/{id}/reject", a.handleRejectHandoff)

	mux.HandleFunc("POST /api/v1/consensus", a.handleCreateConsensus)
	mux.HandleFunc("GET /api/v1/consensus", a.handleListConsensus)
	mux.HandleFunc("GET /api/v1/consensus/{id}", a.handleGetConsensus)
	mux.HandleFunc("POST /api/v1/consensus/{id}/votes", a.handleSubmitVote)

	mux.HandleFunc("POST /api/v1/collaborations", a.handleCreateCollab)
	mux.HandleFunc("GET /api/v1/collaborations", a.handleListCollabs)
	mux.HandleFunc("GET /api/v1/collaborations/{id}", a.handleGetCollab)
	mux.HandleFunc("POST /api/v1/collaborations/{id}/contributions", a.handleAddContribution)
	mux.HandleFunc("POST /api/v1/collaborations/{id}/advance", a.handleAdvanceCollab)
	mux.HandleFunc("POST /api/v1/collaborations/{id}/complete", a.handleCompleteCollab)

	return mux
}
