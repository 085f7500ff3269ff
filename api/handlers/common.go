// Package handlers implements the HTTP API over the swarm facade.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/hivechat/swarm/types"
)

// ownerHeader identifies the calling tenant. Authentication happens at the
// gateway in front of this service; here the header is trusted.
const ownerHeader = "X-Owner-ID"

// Response is the envelope for every API response.
type Response struct {
	Success   bool       `json:"success"`
	Data      any        `json:"data,omitempty"`
	Error     *ErrorInfo `json:"error,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

// ErrorInfo is the serialized error payload.
type ErrorInfo struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
}

// WriteJSON writes data as a JSON response.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteSuccess writes a 200 envelope around data.
func WriteSuccess(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusOK, Response{
		Success:   true,
		Data:      data,
		Timestamp: time.Now(),
	})
}

// WriteCreated writes a 201 envelope around data.
func WriteCreated(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusCreated, Response{
		Success:   true,
		Data:      data,
		Timestamp: time.Now(),
	})
}

// WriteError writes an error envelope, mapping domain error codes to HTTP
// statuses.
func WriteError(w http.ResponseWriter, err error, logger *zap.Logger) {
	var domainErr *types.Error
	if !errors.As(err, &domainErr) {
		domainErr = types.NewError(types.ErrInternalError, "internal error").WithCause(err)
	}

	status := domainErr.HTTPStatus
	if status == 0 {
		status = httpStatusFor(domainErr.Code)
	}

	if logger != nil && status >= http.StatusInternalServerError {
		logger.Error("request failed",
			zap.String("code", string(domainErr.Code)),
			zap.Error(err),
		)
	}

	WriteJSON(w, status, Response{
		Success: false,
		Error: &ErrorInfo{
			Code:      string(domainErr.Code),
			Message:   domainErr.Message,
			Retryable: domainErr.Retryable,
		},
		Timestamp: time.Now(),
	})
}

// errorInfoFor builds the error payload without writing a response. Used
// when a partial success carries both data and an error.
func errorInfoFor(err error) *ErrorInfo {
	var domainErr *types.Error
	if !errors.As(err, &domainErr) {
		domainErr = types.NewError(types.ErrInternalError, "internal error")
	}
	return &ErrorInfo{
		Code:      string(domainErr.Code),
		Message:   domainErr.Message,
		Retryable: domainErr.Retryable,
	}
}

func httpStatusFor(code types.ErrorCode) int {
	switch code {
	case types.ErrValidation:
		return http.StatusBadRequest
	case types.ErrNotFound:
		return http.StatusNotFound
	case types.ErrInvalidState, types.ErrAgentUnavailable, types.ErrOutOfTurn:
		return http.StatusConflict
	case types.ErrExpired:
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}

// decodeBody parses a JSON request body into dst.
func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return types.NewError(types.ErrValidation, "invalid request body").WithCause(err)
	}
	return nil
}

// ownerID extracts the calling tenant, or fails with a validation error.
func ownerID(r *http.Request) (string, error) {
	owner := r.Header.Get(ownerHeader)
	if owner == "" {
		return "", types.NewErrorf(types.ErrValidation, "%s header is required", ownerHeader)
	}
	return owner, nil
}
