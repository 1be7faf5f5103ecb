package v1

import (
	"context"
	"log/slog"

	"github.com/lapomascherj/atmo-core/app/core"
	"github.com/lapomascherj/atmo-core/pkg/security"
)

type _userInfo struct {
	ctx  context.Context
	core *core.Core
	u    *security.TokenClaims
}

func (u *_userInfo) GetUserInfo() security.TokenClaims {
	return *u.u
}

func SetupUserInfo(ctx context.Context, core *core.Core) UserInfo {
	userInfo, ok := InjectTokenClaim(ctx)
	if !ok {
		slog.Error("Not found user in context", slog.String("component", "logic.v1.setupUserInfo"))
		userInfo = security.TokenClaims{}
	}
	return &_userInfo{
		ctx:  ctx,
		core: core,
		u:    &userInfo,
	}
}

type UserInfo interface {
	GetUserInfo() security.TokenClaims
}
