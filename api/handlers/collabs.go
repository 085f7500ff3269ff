package handlers

import (
	"net/http"

	"github.com/hivechat/swarm/swarm/collab"
)

type createCollabRequest struct {
	AgentIDs  []string `json:"agent_ids"`
	Task      string   `json:"task"`
	Context   string   `json:"context,omitempty"`
	Mode      string   `json:"mode,omitempty"`
	MaxRounds int      `json:"max_rounds"`
}

func (a *API) handleCreateCollab(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerID(r)
	if err != nil {
		WriteError(w, err, a.logger)
		return
	}
	var req createCollabRequest
	if err := decodeBody(r, &req); err != nil {
		WriteError(w, err, a.logger)
		return
	}

	c, err := a.swarm.Collabs.Create(r.Context(), collab.CreateInput{
		OwnerID:   owner,
		AgentIDs:  req.AgentIDs,
		Task:      req.Task,
		Context:   req.Context,
		Mode:      collab.Mode(req.Mode),
		MaxRounds: req.MaxRounds,
	})
	if err != nil {
		WriteError(w, err, a.logger)
		return
	}
	WriteCreated(w, c)
}

func (a *API) handleListCollabs(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerID(r)
	if err != nil {
		WriteError(w, err, a.logger)
		return
	}

	var statuses []collab.Status
	if s := r.URL.Query().Get("status"); s != "" {
		statuses = append(statuses, collab.Status(s))
	}

	sessions, err := a.swarm.Collabs.List(r.Context(), owner, statuses...)
	if err != nil {
		WriteError(w, err, a.logger)
		return
	}
	WriteSuccess(w, sessions)
}

func (a *API) handleGetCollab(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerID(r)
	if err != nil {
		WriteError(w, err, a.logger)
		return
	}

	c, err := a.swarm.Collabs.Get(r.Context(), r.PathValue("id"), owner)
	if err != nil {
		WriteError(w, err, a.logger)
		return
	}
	WriteSuccess(w, c)
}

func (a *API) handleAddContribution(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AgentID  string         `json:"agent_id"`
		Content  string         `json:"content"`
		Metadata map[string]any `json:"metadata,omitempty"`
	}
	if err := decodeBody(r, &req); err != nil {
		WriteError(w, err, a.logger)
		return
	}

	c, err := a.swarm.Collabs.AddContribution(r.Context(), r.PathValue("id"), req.AgentID, collab.ContributionInput{
		Content:  req.Content,
		Metadata: req.Metadata,
	})
	if err != nil {
		WriteError(w, err, a.logger)
		return
	}
	WriteSuccess(w, c)
}

func (a *API) handleAdvanceCollab(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerID(r)
	if err != nil {
		WriteError(w, err, a.logger)
		return
	}

	c, err := a.swarm.Collabs.AdvanceRound(r.Context(), r.PathValue("id"), owner)
	if err != nil {
		WriteError(w, err, a.logger)
		return
	}
	WriteSuccess(w, c)
}

func (a *API) handleCompleteCollab(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerID(r)
	if err != nil {
		WriteError(w, err, a.logger)
		return
	}
	var req struct {
		Reason string `json:"reason,omitempty"`
	}
	if err := decodeBody(r, &req); err != nil {
		WriteError(w, err, a.logger)
		return
	}

	c, err := a.swarm.Collabs.Complete(r.Context(), r.PathValue("id"), owner, req.Reason)
	if err != nil {
		WriteError(w, err, a.logger)
		return
	}
	WriteSuccess(w, c)
}
