// Copyright (C) 2025 Clearspan Analytics (engineering@clearspan.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package delay

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/clearspan/slipline/pkg/validation"
	"github.com/clearspan/slipline/services/delay/snapshot"
)

// ServiceVersion is the delay service version.
const ServiceVersion = "0.1.0"

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// CompareRequest is the body of POST /v1/delay/compare.
type CompareRequest struct {
	PreviousID string `json:"previous_snapshot_id" binding:"required"`
	CurrentID  string `json:"current_snapshot_id" binding:"required"`
}

// Handlers contains the HTTP handlers for the delay service.
type Handlers struct {
	svc *Service
}

// NewHandlers creates handlers for the given service.
func NewHandlers(svc *Service) *Handlers {
	return &Handlers{svc: svc}
}

// getOrCreateRequestID returns the inbound X-Request-ID or mints one.
func getOrCreateRequestID(c *gin.Context) string {
	if id := c.GetHeader("X-Request-ID"); id != "" {
		return id
	}
	return uuid.NewString()
}

// HandleCompare handles POST /v1/delay/compare.
//
// Description:
//
//	Runs a full comparison of two snapshots by id.
//
// Request Body:
//
//	CompareRequest
//
// Response:
//
//	200 OK: AnalysisResult
//	400 Bad Request: Validation error or non-comparable pair
//	404 Not Found: Unknown snapshot id
//	500 Internal Server Error: Processing error
func (h *Handlers) HandleCompare(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleCompare")

	var req CompareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}
	if err := validation.ValidateSnapshotID(req.PreviousID); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "INVALID_SNAPSHOT_ID"})
		return
	}
	if err := validation.ValidateSnapshotID(req.CurrentID); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "INVALID_SNAPSHOT_ID"})
		return
	}

	logger.Info("Comparing snapshots", "previous", req.PreviousID, "current", req.CurrentID)

	result, err := h.svc.Compare(c.Request.Context(), req.PreviousID, req.CurrentID)
	if err != nil {
		h.writeCompareError(c, logger, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// HandlePeriod handles GET /v1/delay/period/:year/:month.
//
// Description:
//
//	Compares the snapshots bracketing the given calendar month.
//
// Response:
//
//	200 OK: AnalysisResult
//	400 Bad Request: Malformed year/month
//	404 Not Found: Period not bracketed by stored snapshots
//	500 Internal Server Error: Processing error
func (h *Handlers) HandlePeriod(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandlePeriod")

	year, err := strconv.Atoi(c.Param("year"))
	if err != nil || year < 1900 || year > 2200 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid year", Code: "INVALID_PERIOD"})
		return
	}
	month, err := strconv.Atoi(c.Param("month"))
	if err != nil || month < 1 || month > 12 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid month", Code: "INVALID_PERIOD"})
		return
	}

	logger.Info("Comparing period", "year", year, "month", month)

	result, err := h.svc.CompareByCalendarPeriod(c.Request.Context(), year, month)
	if err != nil {
		if errors.Is(err, snapshot.ErrPeriodNotBracketed) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: "PERIOD_NOT_BRACKETED"})
			return
		}
		h.writeCompareError(c, logger, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// HandleListSnapshots handles GET /v1/delay/snapshots.
func (h *Handlers) HandleListSnapshots(c *gin.Context) {
	infos, err := h.svc.store.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: "LIST_FAILED"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"snapshots": infos, "count": len(infos)})
}

// HandleHealth handles GET /v1/delay/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "version": ServiceVersion})
}

// HandleReady handles GET /v1/delay/ready. Ready means at least two
// snapshots are loaded, since no comparison is possible with fewer.
func (h *Handlers) HandleReady(c *gin.Context) {
	infos, err := h.svc.store.List(c.Request.Context())
	if err != nil || len(infos) < 2 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":    "not_ready",
			"snapshots": len(infos),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready", "snapshots": len(infos)})
}

// writeCompareError maps comparison errors to HTTP responses.
func (h *Handlers) writeCompareError(c *gin.Context, logger *slog.Logger, err error) {
	statusCode := http.StatusInternalServerError
	errCode := "COMPARE_FAILED"

	if errors.Is(err, snapshot.ErrNotFound) {
		statusCode = http.StatusNotFound
		errCode = "SNAPSHOT_NOT_FOUND"
	} else if errors.Is(err, ErrSameSnapshot) {
		statusCode = http.StatusBadRequest
		errCode = "SAME_SNAPSHOT"
	} else if errors.Is(err, ErrSnapshotMismatch) {
		statusCode = http.StatusBadRequest
		errCode = "SNAPSHOT_MISMATCH"
	}

	logger.Error("Compare failed", "error", err)
	c.JSON(statusCode, ErrorResponse{Error: err.Error(), Code: errCode})
}
