package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	v1 "github.com/lapomascherj/atmo-core/app/logic/v1"
	"github.com/lapomascherj/atmo-core/app/response"
	"github.com/lapomascherj/atmo-core/pkg/errors"
	"github.com/lapomascherj/atmo-core/pkg/i18n"
	"github.com/lapomascherj/atmo-core/pkg/types"
	"github.com/lapomascherj/atmo-core/pkg/utils"
)

type CreateChatMessageRequest struct {
	SessionID string `json:"session_id" form:"session_id" binding:"required"`
	types.CreateChatMessageArgs
}

// CreateChatMessage submits one user message. Resubmits with the same
// client message id are answered from storage.
func (s *HttpSrv) CreateChatMessage(c *gin.Context) {
	var (
		err error
		req CreateChatMessageRequest
	)

	if err = utils.BindArgsWithGin(c, &req); err != nil {
		response.APIError(c, err)
		return
	}

	logic := v1.NewChatLogic(c, s.Core)
	result, err := logic.SubmitMessage(req.SessionID, req.CreateChatMessageArgs)
	if err != nil {
		response.APIError(c, err)
		return
	}

	response.APISuccess(c, result)
}

type GetChatSessionHistoryRequest struct {
	Page     uint64 `json:"page" form:"page" binding:"required"`
	PageSize uint64 `json:"pagesize" form:"pagesize" binding:"required"`
}

type GetChatSessionHistoryResponse struct {
	List  []*types.ChatMessage `json:"list"`
	Total int64                `json:"total"`
}

func (s *HttpSrv) GetChatSessionHistory(c *gin.Context) {
	sessionID, exist := c.Params.Get("session")
	if !exist || sessionID == "" {
		response.APIError(c, errors.New("api.GetChatSessionHistory", i18n.ERROR_INVALIDARGUMENT, nil).Code(http.StatusBadRequest))
		return
	}

	var (
		err error
		req GetChatSessionHistoryRequest
	)
	if err = utils.BindArgsWithGin(c, &req); err != nil {
		response.APIError(c, err)
		return
	}

	logic := v1.NewChatLogic(c, s.Core)
	list, total, err := logic.ListSessionMessages(sessionID, req.Page, req.PageSize)
	if err != nil {
		response.APIError(c, err)
		return
	}

	response.APISuccess(c, GetChatSessionHistoryResponse{
		List:  list,
		Total: total,
	})
}
