// Copyright (C) 2025 Clearspan Analytics (engineering@clearspan.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package delay

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers all delay analysis routes with the router.
//
// Description:
//
//	Registers all /v1/delay/* endpoints with the given Gin router group.
//	The router group should already have any required middleware applied.
//
// Inputs:
//
//	rg - Gin router group (typically /v1)
//	handlers - The handlers instance
//
// Endpoints:
//
//	POST /v1/delay/compare - Compare two snapshots by id
//	GET  /v1/delay/period/:year/:month - Compare the snapshots bracketing a month
//	GET  /v1/delay/snapshots - List loaded snapshots
//	GET  /v1/delay/health - Health check
//	GET  /v1/delay/ready - Readiness check
//
// Example:
//
//	svc, _ := delay.NewService(cfg)
//	handlers := delay.NewHandlers(svc)
//
//	v1 := router.Group("/v1")
//	delay.RegisterRoutes(v1, handlers)
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	group := rg.Group("/delay")
	{
		group.POST("/compare", handlers.HandleCompare)
		group.GET("/period/:year/:month", handlers.HandlePeriod)
		group.GET("/snapshots", handlers.HandleListSnapshots)

		group.GET("/health", handlers.HandleHealth)
		group.GET("/ready", handlers.HandleReady)
	}
}
