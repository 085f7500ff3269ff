package handlers

import (
	"net/http"
	"time"

	"github.com/hivechat/swarm/swarm/consensus"
)

type createConsensusRequest struct {
	Question         string   `json:"question"`
	Options          []string `json:"options"`
	AgentIDs         []string `json:"agent_ids"`
	Threshold        float64  `json:"threshold,omitempty"`
	ExpiresInSeconds int      `json:"expires_in_seconds,omitempty"`
}

func (a *API) handleCreateConsensus(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerID(r)
	if err != nil {
		WriteError(w, err, a.logger)
		return
	}
	var req createConsensusRequest
	if err := decodeBody(r, &req); err != nil {
		WriteError(w, err, a.logger)
		return
	}

	request, err := a.swarm.Consensus.Create(r.Context(), consensus.CreateInput{
		OwnerID:   owner,
		Question:  req.Question,
		Options:   req.Options,
		AgentIDs:  req.AgentIDs,
		Threshold: req.Threshold,
		ExpiresIn: time.Duration(req.ExpiresInSeconds) * time.Second,
	})
	if err != nil {
		WriteError(w, err, a.logger)
		return
	}
	WriteCreated(w, request)
}

func (a *API) handleListConsensus(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerID(r)
	if err != nil {
		WriteError(w, err, a.logger)
		return
	}

	var statuses []consensus.Status
	if s := r.URL.Query().Get("status"); s != "" {
		statuses = append(statuses, consensus.Status(s))
	}

	requests, err := a.swarm.Consensus.List(r.Context(), owner, statuses...)
	if err != nil {
		WriteError(w, err, a.logger)
		return
	}
	WriteSuccess(w, requests)
}

func (a *API) handleGetConsensus(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerID(r)
	if err != nil {
		WriteError(w, err, a.logger)
		return
	}

	request, err := a.swarm.Consensus.Get(r.Context(), r.PathValue("id"), owner)
	if err != nil {
		WriteError(w, err, a.logger)
		return
	}
	WriteSuccess(w, request)
}

func (a *API) handleSubmitVote(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AgentID   string `json:"agent_id"`
		Choice    string `json:"choice"`
		Reasoning string `json:"reasoning,omitempty"`
	}
	if err := decodeBody(r, &req); err != nil {
		WriteError(w, err, a.logger)
		return
	}

	result, err := a.swarm.Consensus.SubmitVote(r.Context(), r.PathValue("id"), req.AgentID, req.Choice, req.Reasoning)
	if err != nil {
		WriteError(w, err, a.logger)
		return
	}
	WriteSuccess(w, result)
}
