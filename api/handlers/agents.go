package handlers

import (
	"net/http"

	"github.com/hivechat/swarm/swarm/registry"
)

type registerAgentRequest struct {
	Name   string   `json:"name"`
	Skills []string `json:"skills,omitempty"`
}

func (a *API) handleRegisterAgent(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerID(r)
	if err != nil {
		WriteError(w, err, a.logger)
		return
	}
	var req registerAgentRequest
	if err := decodeBody(r, &req); err != nil {
		WriteError(w, err, a.logger)
		return
	}

	agent, err := a.swarm.Agents.Register(r.Context(), &registry.Agent{
		OwnerID: owner,
		Name:    req.Name,
		Skills:  req.Skills,
	}, a.settings.Swarm().MaxAgentsPerUser)
	if err != nil {
		WriteError(w, err, a.logger)
		return
	}
	WriteCreated(w, agent)
}

func (a *API) handleListAgents(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerID(r)
	if err != nil {
		WriteError(w, err, a.logger)
		return
	}

	var statuses []registry.Status
	if s := r.URL.Query().Get("status"); s != "" {
		statuses = append(statuses, registry.Status(s))
	}

	agents, err := a.swarm.Agents.List(r.Context(), owner, statuses...)
	if err != nil {
		WriteError(w, err, a.logger)
		return
	}
	WriteSuccess(w, agents)
}

func (a *API) handleGetAgent(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerID(r)
	if err != nil {
		WriteError(w, err, a.logger)
		return
	}

	agent, err := a.swarm.Agents.Get(r.Context(), r.PathValue("id"), owner)
	if err != nil {
		WriteError(w, err, a.logger)
		return
	}
	WriteSuccess(w, agent)
}

func (a *API) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	if err := a.swarm.Agents.Heartbeat(r.Context(), r.PathValue("id")); err != nil {
		WriteError(w, err, a.logger)
		return
	}
	WriteSuccess(w, map[string]string{"status": "ok"})
}
