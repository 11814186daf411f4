// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AleutianAI/flagforge/internal/domain"
	"github.com/AleutianAI/flagforge/internal/publish"
	"github.com/AleutianAI/flagforge/internal/repository"
	"github.com/AleutianAI/flagforge/internal/signing"
	"github.com/AleutianAI/flagforge/internal/storage"
)

// ServiceVersion is the flagforge service version.
const ServiceVersion = "1.0.0"

// Handlers contains the HTTP handlers for the flagforge API.
type Handlers struct {
	apps         repository.AppRepository
	records      repository.PublishRecordRepository
	keys         *signing.Manager
	pipeline     *publish.Pipeline
	bootstrapper *publish.Bootstrapper
	store        storage.ArtifactStore

	// endpointURL is the externally visible base URL embedded in
	// bootstrap descriptors, e.g. "https://flags.example.com".
	endpointURL string

	// ready reports whether dependencies are reachable. Nil means
	// always ready.
	ready func() error
}

// NewHandlers creates handlers over the given components.
func NewHandlers(
	apps repository.AppRepository,
	records repository.PublishRecordRepository,
	keys *signing.Manager,
	pipeline *publish.Pipeline,
	bootstrapper *publish.Bootstrapper,
	store storage.ArtifactStore,
	endpointURL string,
) *Handlers {
	return &Handlers{
		apps:         apps,
		records:      records,
		keys:         keys,
		pipeline:     pipeline,
		bootstrapper: bootstrapper,
		store:        store,
		endpointURL:  endpointURL,
	}
}

// WithReadiness sets the readiness probe used by HandleReady.
func (h *Handlers) WithReadiness(ready func() error) *Handlers {
	h.ready = ready
	return h
}

// HandleCreateApp handles POST /v1/apps.
//
// Creates the app and runs the bootstrap saga: signing key plus baseline
// publish. A failure anywhere rolls the whole creation back.
//
// Response:
//
//	201 Created: CreateAppResponse
//	400 Bad Request: validation error
//	409 Conflict: identifier already in use
//	500 Internal Server Error: bootstrap failed and was rolled back
func (h *Handlers) HandleCreateApp(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleCreateApp")

	var req CreateAppRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	app := &domain.App{
		Identifier:      req.Identifier,
		StoragePrefix:   req.StoragePrefix,
		MinPollSeconds:  req.MinPollSeconds,
		CacheTTLSeconds: req.CacheTTLSeconds,
	}
	if app.MinPollSeconds <= 0 {
		app.MinPollSeconds = 300
	}
	if app.CacheTTLSeconds <= 0 {
		app.CacheTTLSeconds = 86400
	}

	result, err := h.bootstrapper.CreateApp(c.Request.Context(), app)
	if err != nil {
		statusCode := http.StatusInternalServerError
		errCode := "BOOTSTRAP_FAILED"
		if errors.Is(err, domain.ErrAppExists) {
			statusCode = http.StatusConflict
			errCode = "APP_EXISTS"
		}
		logger.Error("App creation failed", "identifier", req.Identifier, "error", err)
		c.JSON(statusCode, ErrorResponse{Error: err.Error(), Code: errCode})
		return
	}

	logger.Info("App created", "identifier", app.Identifier, "version", result.Version)
	c.JSON(http.StatusCreated, CreateAppResponse{App: *app, Publish: result})
}

// HandlePublish handles POST /v1/apps/:app/publish.
//
// Response:
//
//	200 OK: publish.Result
//	400 Bad Request: validation error
//	404 Not Found: unknown app
//	409 Conflict: no active signing key
//	422 Unprocessable Entity: migration required
//	500 Internal Server Error: upload or audit write failed
func (h *Handlers) HandlePublish(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandlePublish")

	var req PublishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	result, err := h.pipeline.Publish(c.Request.Context(), publish.Request{
		AppIdentifier: c.Param("app"),
		Author:        req.Author,
		Changelog:     req.Changelog,
	})
	if err != nil {
		statusCode := http.StatusInternalServerError
		errCode := "PUBLISH_FAILED"

		var validationErr *domain.ValidationError
		var migrationErr *domain.MigrationRequiredError
		var auditErr *domain.AuditWriteError
		switch {
		case errors.Is(err, domain.ErrAppNotFound):
			statusCode = http.StatusNotFound
			errCode = "APP_NOT_FOUND"
		case errors.Is(err, domain.ErrSigningKeyMissing):
			statusCode = http.StatusConflict
			errCode = "SIGNING_KEY_MISSING"
		case errors.As(err, &validationErr):
			statusCode = http.StatusBadRequest
			errCode = "VALIDATION_FAILED"
		case errors.As(err, &migrationErr):
			statusCode = http.StatusUnprocessableEntity
			errCode = "MIGRATION_REQUIRED"
		case errors.As(err, &auditErr):
			// The artifact is live; only the audit trail is incomplete.
			errCode = "AUDIT_WRITE_FAILED"
		}

		logger.Error("Publish failed", "app", c.Param("app"), "error", err)
		c.JSON(statusCode, ErrorResponse{Error: err.Error(), Code: errCode})
		return
	}

	logger.Info("Published", "app", c.Param("app"), "version", result.Version)
	c.JSON(http.StatusOK, result)
}

// HandleListPublishes handles GET /v1/apps/:app/publishes.
func (h *Handlers) HandleListPublishes(c *gin.Context) {
	app, ok := h.findApp(c)
	if !ok {
		return
	}

	records, err := h.records.ListByApp(c.Request.Context(), app.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: err.Error(), Code: "LIST_FAILED",
		})
		return
	}
	c.JSON(http.StatusOK, PublishesResponse{Publishes: records})
}

// HandleListKeys handles GET /v1/apps/:app/keys.
//
// Returns every key the app has, active and retired, so clients can
// verify artifacts signed by a retired-but-not-deleted key.
func (h *Handlers) HandleListKeys(c *gin.Context) {
	app, ok := h.findApp(c)
	if !ok {
		return
	}

	keys, err := h.keys.PublicKeys(c.Request.Context(), app.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: err.Error(), Code: "LIST_FAILED",
		})
		return
	}
	c.JSON(http.StatusOK, KeysResponse{Keys: keys})
}

// HandleBootstrap handles GET /v1/apps/:app/bootstrap.
func (h *Handlers) HandleBootstrap(c *gin.Context) {
	app, ok := h.findApp(c)
	if !ok {
		return
	}

	keys, err := h.keys.PublicKeys(c.Request.Context(), app.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: err.Error(), Code: "BOOTSTRAP_FAILED",
		})
		return
	}

	c.JSON(http.StatusOK, BootstrapResponse{
		AppIdentifier: app.Identifier,
		EndpointURL:   h.endpointURL + "/v1/apps/" + app.Identifier + "/config",
		PublicKeys:    keys,
		FetchPolicy:   app.Policy(),
	})
}

// HandleGetConfig handles GET /v1/apps/:app/config.
//
// Serves the raw signed envelope exactly as uploaded. Clients verify the
// signature themselves; the server never re-serializes the payload.
func (h *Handlers) HandleGetConfig(c *gin.Context) {
	app, ok := h.findApp(c)
	if !ok {
		return
	}

	envelope, err := h.store.Get(c.Request.Context(), app.ArtifactPath())
	if err != nil {
		if errors.Is(err, storage.ErrNotExist) {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error: "no published configuration", Code: "CONFIG_NOT_FOUND",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: err.Error(), Code: "FETCH_FAILED",
		})
		return
	}

	c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
	c.Data(http.StatusOK, "application/jose", envelope)
}

// HandleHealth handles GET /v1/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "healthy", Version: ServiceVersion})
}

// HandleReady handles GET /v1/ready.
func (h *Handlers) HandleReady(c *gin.Context) {
	if h.ready != nil {
		if err := h.ready(); err != nil {
			c.JSON(http.StatusServiceUnavailable, HealthResponse{
				Status: "not ready", Version: ServiceVersion,
			})
			return
		}
	}
	c.JSON(http.StatusOK, HealthResponse{Status: "ready", Version: ServiceVersion})
}

// findApp resolves the :app path parameter, writing the 404 itself when
// the app does not exist.
func (h *Handlers) findApp(c *gin.Context) (*domain.App, bool) {
	app, err := h.apps.FindByIdentifier(c.Request.Context(), c.Param("app"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error: "unknown app", Code: "APP_NOT_FOUND",
			})
			return nil, false
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: err.Error(), Code: "LOOKUP_FAILED",
		})
		return nil, false
	}
	return app, true
}

func getOrCreateRequestID(c *gin.Context) string {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Header("X-Request-ID", requestID)
	return requestID
}
