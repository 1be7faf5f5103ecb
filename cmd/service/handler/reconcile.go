package handler

import (
	"github.com/gin-gonic/gin"

	v1 "github.com/lapomascherj/atmo-core/app/logic/v1"
	"github.com/lapomascherj/atmo-core/app/response"
)

// TriggerReconcile kicks a sweep of pending parsed entities. With
// ?dry_run=true the report describes the sweep without applying it,
// regardless of server config.
func (s *HttpSrv) TriggerReconcile(c *gin.Context) {
	logic := v1.NewReconcileLogic(c, s.Core)

	var report any
	var err error
	if c.Query("dry_run") == "true" {
		report, err = logic.DryRun()
	} else {
		report, err = logic.Reconcile()
	}
	if err != nil {
		response.APIError(c, err)
		return
	}

	response.APISuccess(c, report)
}
