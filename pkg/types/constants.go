package types

const NO_PAGING = 0

const (
	LANGUAGE_EN_KEY = "en"
	LANGUAGE_CN_KEY = "zh-CN"
)

// DEFAULT_RECONCILE_BATCH_SIZE bounds a single reconciler pass.
const DEFAULT_RECONCILE_BATCH_SIZE = 100
