package featureflag

type Flag string

const (
	FlagDisableClear        Flag = "DISABLE_CLEAR"
	FlagDisableDebugInfo    Flag = "DISABLE_DEBUG_INFO"
	FlagDisableGeohashQuery Flag = "DISABLE_GEOHASH_QUERY"
	FlagDisableAutoJoin     Flag = "DISABLE_AUTO_JOIN"
)
