package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	"github.com/lapomascherj/atmo-core/app/core"
	v1 "github.com/lapomascherj/atmo-core/app/logic/v1"
	"github.com/lapomascherj/atmo-core/app/response"
	"github.com/lapomascherj/atmo-core/pkg/errors"
	"github.com/lapomascherj/atmo-core/pkg/i18n"
	"github.com/lapomascherj/atmo-core/pkg/security"
	"github.com/lapomascherj/atmo-core/pkg/types"
	"github.com/lapomascherj/atmo-core/pkg/utils"
)

func I18n() gin.HandlerFunc {
	var allowList []string
	for k := range i18n.ALLOW_LANG {
		allowList = append(allowList, k)
	}
	l := i18n.NewLocalizer(allowList...)

	return response.ProvideResponseLocalizer(l)
}

func AcceptLanguage() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		lang := ctx.Request.Header.Get("Accept-Language")
		if lang == "" {
			ctx.Set(v1.LANGUAGE_KEY, types.LANGUAGE_EN_KEY)
			return
		}

		res := utils.ParseAcceptLanguage(lang)
		if len(res) == 0 {
			ctx.Set(v1.LANGUAGE_KEY, types.LANGUAGE_EN_KEY)
			return
		}

		ctx.Set(v1.LANGUAGE_KEY, lo.If(strings.Contains(res[0].Tag, "zh"), types.LANGUAGE_CN_KEY).Else(types.LANGUAGE_EN_KEY))
	}
}

func SetAppid(core *core.Core) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		ctx.Set(v1.APPID_KEY, core.Cfg().Security.Appid)
	}
}

// Authorization verifies the bearer JWT and injects its claims for the
// logic layer. Missing or broken tokens end the request with 401.
func Authorization(core *core.Core) gin.HandlerFunc {
	tracePrefix := "middleware.Authorization"
	return func(ctx *gin.Context) {
		tokenValue := ctx.GetHeader(security.TOKEN_KEY)
		tokenValue = strings.TrimPrefix(tokenValue, "Bearer ")
		if tokenValue == "" {
			response.APIError(ctx, errors.New(tracePrefix+".nil", i18n.ERROR_UNAUTHORIZED, nil).Code(http.StatusUnauthorized))
			return
		}

		claims, err := security.VerifyToken(tokenValue, core.JWTPublicKey())
		if err != nil {
			response.APIError(ctx, errors.New(tracePrefix+".VerifyToken", i18n.ERROR_INVALID_TOKEN, err).Code(http.StatusUnauthorized))
			return
		}

		if appid, _ := v1.InjectAppid(ctx); appid != "" && claims.Appid != appid {
			response.APIError(ctx, errors.New(tracePrefix+".appid", i18n.ERROR_FORBIDDEN, nil).Code(http.StatusForbidden))
			return
		}

		ctx.Set(v1.TOKEN_CONTEXT_KEY, *claims)
		ctx.Set("user", claims.User)
	}
}

func Cors(c *gin.Context) {
	method := c.Request.Method
	origin := c.Request.Header.Get("Origin")
	if origin != "" {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE, UPDATE")
		c.Header("Access-Control-Allow-Headers", "Origin, X-Requested-With, Content-Type, Accept, Authorization, X-Appid")
		c.Header("Access-Control-Expose-Headers", "Content-Length, Access-Control-Allow-Origin, Access-Control-Allow-Headers, Cache-Control, Content-Language, Content-Type")
		c.Header("Access-Control-Allow-Credentials", "true")
	}
	if method == "OPTIONS" {
		c.AbortWithStatus(http.StatusNoContent)
	}
	c.Next()
}
