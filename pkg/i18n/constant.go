package i18n

var ALLOW_LANG = map[string]bool{
	"en":    true,
	"zh-CN": true,
}

const DEFAULT_LANG = "en"

const (
	ERROR_INTERNAL        = "error.internal"
	ERROR_NOT_FOUND       = "error.notfound"
	ERROR_INVALIDARGUMENT = "error.invalidargument"
	ERROR_UNAUTHORIZED    = "error.unauthorized"
	ERROR_FORBIDDEN       = "error.forbidden"
	ERROR_EXIST           = "error.exist"
	ERROR_CONFLICT        = "error.conflict"
	ERROR_CHAT_DISABLED   = "error.chat.disabled"
	ERROR_EXTRACTION      = "error.extraction"
	ERROR_RECONCILIATION  = "error.reconciliation"
	ERROR_INVALID_TOKEN   = "error.invalid.token"
	ERROR_TOKEN_EXPIRED   = "error.token.expired"
)
