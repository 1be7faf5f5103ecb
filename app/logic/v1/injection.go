package v1

import (
	"context"

	"github.com/samber/lo"

	"github.com/lapomascherj/atmo-core/pkg/security"
	"github.com/lapomascherj/atmo-core/pkg/types"
)

const (
	TOKEN_CONTEXT_KEY = "__atmo.access_token"
	LANGUAGE_KEY      = "__atmo.accept_language"
	APPID_KEY         = "__atmo.appid"
)

func InjectAppid(ctx context.Context) (string, bool) {
	val, ok := ctx.Value(APPID_KEY).(string)
	return val, ok
}

// InjectTokenClaim get user token claims from context
func InjectTokenClaim(ctx context.Context) (security.TokenClaims, bool) {
	val, ok := ctx.Value(TOKEN_CONTEXT_KEY).(security.TokenClaims)
	return val, ok
}

func InjectLanguage(ctx context.Context) (string, bool) {
	val, ok := ctx.Value(LANGUAGE_KEY).(string)
	return val, ok
}

func GetContentByClientLanguage[T any](c context.Context, enRes T, cnRes T) T {
	clientLang, _ := InjectLanguage(c)
	return lo.If(clientLang == types.LANGUAGE_EN_KEY, enRes).Else(cnRes)
}
