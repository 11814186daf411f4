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
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers all flagforge routes with the router group.
//
// App Endpoints:
//
//	POST /v1/apps - Create an app (bootstraps key + baseline publish)
//
// Per-App Endpoints:
//
//	POST /v1/apps/:app/publish - Compile, sign, and publish the config
//	GET  /v1/apps/:app/publishes - Publish history (audit records)
//	GET  /v1/apps/:app/keys - Public keys, active and retired
//	GET  /v1/apps/:app/bootstrap - SDK bootstrap descriptor
//	GET  /v1/apps/:app/config - Latest signed configuration envelope
//
// Health Endpoints:
//
//	GET /v1/health - Liveness check
//	GET /v1/ready - Readiness check
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	apps := rg.Group("/apps")
	{
		apps.POST("", handlers.HandleCreateApp)

		app := apps.Group("/:app")
		{
			app.POST("/publish", handlers.HandlePublish)
			app.GET("/publishes", handlers.HandleListPublishes)
			app.GET("/keys", handlers.HandleListKeys)
			app.GET("/bootstrap", handlers.HandleBootstrap)
			app.GET("/config", handlers.HandleGetConfig)
		}
	}

	rg.GET("/health", handlers.HandleHealth)
	rg.GET("/ready", handlers.HandleReady)
}
