package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/lapomascherj/atmo-core/app/core"
)

type HttpSrv struct {
	Core   *core.Core
	Engine *gin.Engine
}
