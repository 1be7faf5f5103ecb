package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	v1 "github.com/lapomascherj/atmo-core/app/logic/v1"
	"github.com/lapomascherj/atmo-core/app/response"
	"github.com/lapomascherj/atmo-core/pkg/errors"
	"github.com/lapomascherj/atmo-core/pkg/i18n"
	"github.com/lapomascherj/atmo-core/pkg/types"
)

// GetActiveSession returns the user's active session, 404 when none
// exists. Clients decide whether to create one.
func (s *HttpSrv) GetActiveSession(c *gin.Context) {
	logic := v1.NewChatSessionLogic(c, s.Core)
	session, err := logic.GetActiveSession()
	if err != nil {
		response.APIError(c, err)
		return
	}

	response.APISuccess(c, session)
}

// EnsureActiveSession returns the active session, creating one first when
// the user has none yet.
func (s *HttpSrv) EnsureActiveSession(c *gin.Context) {
	logic := v1.NewChatSessionLogic(c, s.Core)
	session, err := logic.GetOrCreateActiveSession()
	if err != nil {
		response.APIError(c, err)
		return
	}

	response.APISuccess(c, session)
}

// CreateChatSession archives the current active session and opens a new one.
func (s *HttpSrv) CreateChatSession(c *gin.Context) {
	logic := v1.NewChatSessionLogic(c, s.Core)
	session, err := logic.CreateNewSession()
	if err != nil {
		response.APIError(c, err)
		return
	}

	response.APISuccess(c, session)
}

type ListArchivedSessionsResponse struct {
	List []types.ChatSession `json:"list"`
}

func (s *HttpSrv) ListArchivedSessions(c *gin.Context) {
	logic := v1.NewChatSessionLogic(c, s.Core)
	list, err := logic.ListArchivedSessions()
	if err != nil {
		response.APIError(c, err)
		return
	}

	response.APISuccess(c, ListArchivedSessionsResponse{
		List: list,
	})
}

func (s *HttpSrv) ActivateChatSession(c *gin.Context) {
	sessionID, exist := c.Params.Get("session")
	if !exist || sessionID == "" {
		response.APIError(c, errors.New("api.ActivateChatSession", i18n.ERROR_INVALIDARGUMENT, nil).Code(http.StatusBadRequest))
		return
	}

	logic := v1.NewChatSessionLogic(c, s.Core)
	session, err := logic.ActivateArchivedSession(sessionID)
	if err != nil {
		response.APIError(c, err)
		return
	}

	response.APISuccess(c, session)
}

func (s *HttpSrv) DeleteChatSession(c *gin.Context) {
	sessionID, exist := c.Params.Get("session")
	if !exist || sessionID == "" {
		response.APIError(c, errors.New("api.DeleteChatSession", i18n.ERROR_INVALIDARGUMENT, nil).Code(http.StatusBadRequest))
		return
	}

	logic := v1.NewChatSessionLogic(c, s.Core)
	if err := logic.DeleteSession(sessionID); err != nil {
		response.APIError(c, err)
		return
	}

	response.APISuccess(c, response.EmptyStruct{})
}
