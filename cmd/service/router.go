package service

import (
	"github.com/lapomascherj/atmo-core/app/core"
	"github.com/lapomascherj/atmo-core/app/response"
	"github.com/lapomascherj/atmo-core/cmd/service/handler"
	"github.com/lapomascherj/atmo-core/cmd/service/middleware"
	"github.com/lapomascherj/atmo-core/pkg/metrics"
)

func serve(core *core.Core) {
	httpSrv := &handler.HttpSrv{
		Core:   core,
		Engine: core.HttpEngine(),
	}
	setupHttpRouter(httpSrv)

	core.HttpEngine().Run(core.Cfg().Addr)
}

func setupHttpRouter(s *handler.HttpSrv) {
	s.Engine.Use(middleware.I18n(), response.NewResponse())
	s.Engine.Use(middleware.Cors)
	s.Engine.Use(middleware.AcceptLanguage())
	s.Engine.Use(middleware.SetAppid(s.Core))

	s.Engine.GET("/metrics", metrics.DefaultExportHandler())

	apiV1 := s.Engine.Group("/api/v1")
	{
		authed := apiV1.Group("")
		authed.Use(middleware.Authorization(s.Core))

		chat := authed.Group("/chat")
		{
			chat.GET("/session", s.GetActiveSession)
			chat.POST("/session", s.CreateChatSession)
			chat.POST("/session/active", s.EnsureActiveSession)
			chat.GET("/sessions/archived", s.ListArchivedSessions)
			chat.POST("/session/:session/activate", s.ActivateChatSession)
			chat.DELETE("/session/:session", s.DeleteChatSession)
			chat.GET("/session/:session/messages", s.GetChatSessionHistory)
			chat.POST("/message", s.CreateChatMessage)
		}

		authed.POST("/reconcile", s.TriggerReconcile)

		workspace := authed.Group("/workspace")
		{
			workspace.GET("/projects", s.ListProjects)
			workspace.GET("/tasks", s.ListTasks)
			workspace.GET("/goals", s.ListGoals)
			workspace.GET("/milestones", s.ListMilestones)
			workspace.GET("/knowledge", s.ListKnowledgeItems)
			workspace.GET("/insights", s.ListInsights)
		}
	}
}
