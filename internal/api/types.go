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
	"github.com/AleutianAI/flagforge/internal/domain"
	"github.com/AleutianAI/flagforge/internal/publish"
)

// ErrorResponse is the standard error body.
type ErrorResponse struct {
	// Error is a human-readable error message.
	Error string `json:"error"`

	// Code is a machine-readable error code.
	Code string `json:"code"`
}

// CreateAppRequest is the body for POST /v1/apps.
type CreateAppRequest struct {
	// Identifier is the globally unique app name, e.g. "ios-client".
	Identifier string `json:"identifier" binding:"required,min=1,max=128"`

	// StoragePrefix optionally namespaces the app's artifacts in the
	// object store.
	StoragePrefix string `json:"storage_prefix" binding:"omitempty,max=255"`

	// MinPollSeconds defaults to 300 when omitted.
	MinPollSeconds int `json:"min_poll_seconds" binding:"omitempty,min=1"`

	// CacheTTLSeconds defaults to 86400 when omitted.
	CacheTTLSeconds int `json:"cache_ttl_seconds" binding:"omitempty,min=1"`
}

// CreateAppResponse reports the created app and its baseline publish.
type CreateAppResponse struct {
	App     domain.App      `json:"app"`
	Publish *publish.Result `json:"publish"`
}

// PublishRequest is the body for POST /v1/apps/:app/publish.
type PublishRequest struct {
	// Author is the identity recorded in the audit log.
	Author string `json:"author" binding:"required,min=1,max=128"`

	// Changelog describes the change being published.
	Changelog string `json:"changelog" binding:"required,min=1"`
}

// KeysResponse lists an app's public keys, active and retired.
type KeysResponse struct {
	Keys []domain.PublicKeyInfo `json:"keys"`
}

// BootstrapResponse is the descriptor an SDK embeds or fetches once to
// start polling: where to fetch, which keys to trust, and how often to
// poll.
type BootstrapResponse struct {
	AppIdentifier string                 `json:"app_identifier"`
	EndpointURL   string                 `json:"endpoint_url"`
	PublicKeys    []domain.PublicKeyInfo `json:"public_keys"`
	FetchPolicy   domain.FetchPolicy     `json:"fetch_policy"`
}

// PublishesResponse is the audit history, newest first.
type PublishesResponse struct {
	Publishes []domain.PublishRecord `json:"publishes"`
}

// HealthResponse reports service liveness.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}
