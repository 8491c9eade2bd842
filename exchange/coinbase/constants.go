package coinbase

const (
	AccessKeyHeader        = "CB-ACCESS-KEY"
	AccessSignHeader       = "CB-ACCESS-SIGN"
	AccessTimestampHeader  = "CB-ACCESS-TIMESTAMP"
	AccessPassphraseHeader = "CB-ACCESS-PASSPHRASE"

	BeforeHeader = "CB-BEFORE"
	AfterHeader  = "CB-AFTER"

	BaseURL = "https://api.exchange.coinbase.com"
	FeedURL = "wss://ws-feed.exchange.coinbase.com"

	AccountsPath  = "/accounts"
	OrdersPath    = "/orders"
	TransfersPath = "/transfers"
	FeesPath      = "/fees"
	VerifyPath    = "/users/self/verify"
)
