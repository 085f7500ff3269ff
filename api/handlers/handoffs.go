package handlers

import (
	"net/http"

	"github.com/hivechat/swarm/swarm/handoff"
)

type createHandoffRequest struct {
	ConversationID *string `json:"conversation_id,omitempty"`
	FromAgentID    string  `json:"from_agent_id"`
	ToAgentID      string  `json:"to_agent_id"`
	Reason         string  `json:"reason"`
	AutoAccept     bool    `json:"auto_accept"`
	TimeoutSeconds int     `json:"timeout_seconds,omitempty"`
}

func (a *API) handleCreateHandoff(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerID(r)
	if err != nil {
		WriteError(w, err, a.logger)
		return
	}
	var req createHandoffRequest
	if err := decodeBody(r, &req); err != nil {
		WriteError(w, err, a.logger)
		return
	}

	h, err := a.swarm.Handoffs.Create(r.Context(), handoff.CreateInput{
		OwnerID:        owner,
		ConversationID: req.ConversationID,
		FromAgentID:    req.FromAgentID,
		ToAgentID:      req.ToAgentID,
		Reason:         req.Reason,
		AutoAccept:     req.AutoAccept,
		TimeoutSeconds: req.TimeoutSeconds,
	})
	if err != nil {
		WriteError(w, err, a.logger)
		return
	}
	WriteCreated(w, h)
}

func (a *API) handleListHandoffs(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerID(r)
	if err != nil {
		WriteError(w, err, a.logger)
		return
	}

	var statuses []handoff.Status
	if s := r.URL.Query().Get("status"); s != "" {
		statuses = append(statuses, handoff.Status(s))
	}

	handoffs, err := a.swarm.Handoffs.List(r.Context(), owner, statuses...)
	if err != nil {
		WriteError(w, err, a.logger)
		return
	}
	WriteSuccess(w, handoffs)
}

func (a *API) handleGetHandoff(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerID(r)
	if err != nil {
		WriteError(w, err, a.logger)
		return
	}

	h, err := a.swarm.Handoffs.Get(r.Context(), r.PathValue("id"), owner)
	if err != nil {
		WriteError(w, err, a.logger)
		return
	}
	WriteSuccess(w, h)
}

func (a *API) handleAcceptHandoff(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AgentID string `json:"agent_id"`
	}
	if err := decodeBody(r, &req); err != nil {
		WriteError(w, err, a.logger)
		return
	}

	h, err := a.swarm.Handoffs.Accept(r.Context(), r.PathValue("id"), req.AgentID)
	if err != nil {
		WriteError(w, err, a.logger)
		return
	}
	WriteSuccess(w, h)
}

func (a *API) handleRejectHandoff(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AgentID string `json:"agent_id"`
		Reason  string `json:"reason,omitempty"`
	}
	if err := decodeBody(r, &req); err != nil {
		WriteError(w, err, a.logger)
		return
	}

	h, err := a.swarm.Handoffs.Reject(r.Context(), r.PathValue("id"), req.AgentID, req.Reason)
	if err != nil {
		WriteError(w, err, a.logger)
		return
	}
	WriteSuccess(w, h)
}
