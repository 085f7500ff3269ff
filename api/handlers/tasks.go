package handlers

import (
	"net/http"
	"strconv"

	"github.com/hivechat/swarm/swarm/orchestrator"
)

type createTaskRequest struct {
	Title          string         `json:"title"`
	Description    string         `json:"description,omitempty"`
	Priority       string         `json:"priority,omitempty"`
	AgentID        string         `json:"agent_id,omitempty"`
	AutoAssign     bool           `json:"auto_assign"`
	RequiredSkills []string       `json:"required_skills,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

func (a *API) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerID(r)
	if err != nil {
		WriteError(w, err, a.logger)
		return
	}
	var req createTaskRequest
	if err := decodeBody(r, &req); err != nil {
		WriteError(w, err, a.logger)
		return
	}

	task, err := a.swarm.Tasks.CreateTask(r.Context(), orchestrator.CreateTaskInput{
		OwnerID:        owner,
		Title:          req.Title,
		Description:    req.Description,
		Priority:       orchestrator.Priority(req.Priority),
		AgentID:        req.AgentID,
		AutoAssign:     req.AutoAssign,
		RequiredSkills: req.RequiredSkills,
		Metadata:       req.Metadata,
	})
	if err != nil && task == nil {
		WriteError(w, err, a.logger)
		return
	}
	// A task can be created yet left pending when the requested agent was
	// unavailable; surface both.
	if err != nil {
		WriteJSON(w, http.StatusConflict, Response{
			Success: true,
			Data:    task,
			Error:   errorInfoFor(err),
		})
		return
	}
	WriteCreated(w, task)
}

func (a *API) handleListTasks(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerID(r)
	if err != nil {
		WriteError(w, err, a.logger)
		return
	}

	q := r.URL.Query()
	filter := orchestrator.Filter{
		OwnerID: owner,
		AgentID: q.Get("agent_id"),
	}
	if s := q.Get("status"); s != "" {
		filter.Statuses = append(filter.Statuses, orchestrator.Status(s))
	}
	if limit, err := strconv.Atoi(q.Get("limit")); err == nil {
		filter.Limit = limit
	}
	if offset, err := strconv.Atoi(q.Get("offset")); err == nil {
		filter.Offset = offset
	}

	tasks, err := a.swarm.Tasks.ListTasks(r.Context(), filter)
	if err != nil {
		WriteError(w, err, a.logger)
		return
	}
	WriteSuccess(w, tasks)
}

func (a *API) handleGetTask(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerID(r)
	if err != nil {
		WriteError(w, err, a.logger)
		return
	}

	task, err := a.swarm.Tasks.GetTask(r.Context(), r.PathValue("id"), owner)
	if err != nil {
		WriteError(w, err, a.logger)
		return
	}
	WriteSuccess(w, task)
}

func (a *API) handleAssignTask(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerID(r)
	if err != nil {
		WriteError(w, err, a.logger)
		return
	}
	var req struct {
		AgentID string `json:"agent_id"`
	}
	if err := decodeBody(r, &req); err != nil {
		WriteError(w, err, a.logger)
		return
	}

	task, err := a.swarm.Tasks.AssignTask(r.Context(), r.PathValue("id"), req.AgentID, owner)
	if err != nil {
		WriteError(w, err, a.logger)
		return
	}
	WriteSuccess(w, task)
}

func (a *API) handleStartTask(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerID(r)
	if err != nil {
		WriteError(w, err, a.logger)
		return
	}

	task, err := a.swarm.Tasks.StartTask(r.Context(), r.PathValue("id"), owner)
	if err != nil {
		WriteError(w, err, a.logger)
		return
	}
	WriteSuccess(w, task)
}

func (a *API) handleCompleteTask(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerID(r)
	if err != nil {
		WriteError(w, err, a.logger)
		return
	}
	var req struct {
		Result map[string]any `json:"result,omitempty"`
	}
	if err := decodeBody(r, &req); err != nil {
		WriteError(w, err, a.logger)
		return
	}

	task, err := a.swarm.Tasks.CompleteTask(r.Context(), r.PathValue("id"), owner, req.Result)
	if err != nil {
		WriteError(w, err, a.logger)
		return
	}
	WriteSuccess(w, task)
}

func (a *API) handleFailTask(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerID(r)
	if err != nil {
		WriteError(w, err, a.logger)
		return
	}
	var req struct {
		Reason string `json:"reason"`
	}
	if err := decodeBody(r, &req); err != nil {
		WriteError(w, err, a.logger)
		return
	}

	task, err := a.swarm.Tasks.FailTask(r.Context(), r.PathValue("id"), owner, req.Reason)
	if err != nil {
		WriteError(w, err, a.logger)
		return
	}
	WriteSuccess(w, task)
}

func (a *API) handleCancelTask(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerID(r)
	if err != nil {
		WriteError(w, err, a.logger)
		return
	}

	task, err := a.swarm.Tasks.CancelTask(r.Context(), r.PathValue("id"), owner)
	if err != nil {
		WriteError(w, err, a.logger)
		return
	}
	WriteSuccess(w, task)
}
