package handler

import (
	"github.com/gin-gonic/gin"

	v1 "github.com/lapomascherj/atmo-core/app/logic/v1"
	"github.com/lapomascherj/atmo-core/app/response"
)

func (s *HttpSrv) ListProjects(c *gin.Context) {
	list, err := v1.NewWorkspaceLogic(c, s.Core).ListProjects()
	if err != nil {
		response.APIError(c, err)
		return
	}
	response.APISuccess(c, list)
}

func (s *HttpSrv) ListTasks(c *gin.Context) {
	list, err := v1.NewWorkspaceLogic(c, s.Core).ListTasks()
	if err != nil {
		response.APIError(c, err)
		return
	}
	response.APISuccess(c, list)
}

func (s *HttpSrv) ListGoals(c *gin.Context) {
	list, err := v1.NewWorkspaceLogic(c, s.Core).ListGoals()
	if err != nil {
		response.APIError(c, err)
		return
	}
	response.APISuccess(c, list)
}

func (s *HttpSrv) ListMilestones(c *gin.Context) {
	list, err := v1.NewWorkspaceLogic(c, s.Core).ListMilestones()
	if err != nil {
		response.APIError(c, err)
		return
	}
	response.APISuccess(c, list)
}

func (s *HttpSrv) ListKnowledgeItems(c *gin.Context) {
	list, err := v1.NewWorkspaceLogic(c, s.Core).ListKnowledgeItems()
	if err != nil {
		response.APIError(c, err)
		return
	}
	response.APISuccess(c, list)
}

func (s *HttpSrv) ListInsights(c *gin.Context) {
	list, err := v1.NewWorkspaceLogic(c, s.Core).ListInsights()
	if err != nil {
		response.APIError(c, err)
		return
	}
	response.APISuccess(c, list)
}
