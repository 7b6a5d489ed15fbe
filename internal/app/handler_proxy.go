package app

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/thushan/ladle/internal/app/middleware"
	"github.com/thushan/ladle/internal/core/constants"
	"github.com/thushan/ladle/internal/core/domain"
	"github.com/thushan/ladle/internal/logger"
	"github.com/thushan/ladle/internal/util"
)

// dispatchHandler forwards one JSON-RPC request to the named upstream.
// The upstream's answer travels back verbatim at 200, error payloads
// included; only gateway faults map onto HTTP status codes.
func (a *Application) dispatchHandler(w http.ResponseWriter, r *http.Request) {
	server := r.PathValue("server")
	requestStartTime := time.Now()

	requestLogger := a.logger.WithRequestID(middleware.GetRequestID(r.Context()))

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		a.writeRPC(w, http.StatusBadRequest,
			domain.NewErrorResponse(nil, domain.CodeParseError, "failed to read request body: "+err.Error(), nil))
		return
	}

	req, err := domain.ParseRequest(body)
	if err != nil {
		a.writeRPC(w, http.StatusBadRequest,
			domain.NewErrorResponse(nil, domain.CodeParseError, "parse error: "+err.Error(), nil))
		return
	}

	srv := a.getConfig().Server
	requestLogger.Info("Request received",
		"client_ip", util.GetClientIP(r, srv.TrustProxyHeaders, srv.TrustedProxyCIDRsParsed),
		"server", server,
		"method", req.Method,
		"content_length", r.ContentLength)

	response, err := a.registry.Call(r.Context(), server, req)
	if err != nil {
		duration := time.Since(requestStartTime)
		requestLogger.WarnWithServer("Dispatch failed", server,
			"method", req.Method,
			"error", err,
			"duration_ms", duration.Milliseconds())

		a.writeRPC(w, dispatchStatus(err), domain.ResponseForError(req.ID, err))
		return
	}

	duration := time.Since(requestStartTime)
	requestLogger.InfoWithContext("Request completed", server, logger.LogContext{
		UserArgs: []any{
			"method", req.Method,
			"duration_ms", duration.Milliseconds(),
		},
		DetailedArgs: []any{
			"upstream_error", response.IsError(),
			"content_length", r.ContentLength,
		},
	})

	a.writeRPC(w, http.StatusOK, response)
}

// writeRPC encodes a JSON-RPC response at the given HTTP status.
func (a *Application) writeRPC(w http.ResponseWriter, status int, response domain.Response) {
	w.Header().Set(constants.ContentTypeHeader, constants.ContentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(response)
}

// dispatchStatus maps gateway faults onto HTTP status codes. Upstream
// error payloads never reach here, they return verbatim at 200.
func dispatchStatus(err error) int {
	var unknown *domain.UnknownServerError
	if errors.As(err, &unknown) {
		return http.StatusNotFound
	}

	var open *domain.BreakerOpenError
	if errors.As(err, &open) {
		return http.StatusServiceUnavailable
	}

	var transport *domain.TransportError
	if errors.As(err, &transport) {
		if transport.Timeout {
			return http.StatusGatewayTimeout
		}
		return http.StatusBadGateway
	}

	var exhausted *domain.RestartExhaustedError
	if errors.As(err, &exhausted) {
		return http.StatusBadGateway
	}

	return http.StatusInternalServerError
}
