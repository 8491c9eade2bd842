package exchange

import (
	"time"

	"github.com/shopspring/decimal"
)

//
// Resource is an enum of the paginated collections that can be pulled from an exchange.
//
type Resource string

const (
	Accounts  Resource = "accounts"
	Ledger    Resource = "ledger"
	Orders    Resource = "orders"
	Transfers Resource = "transfers"
)

type Account struct {
	ID             string          `json:"id"`
	Currency       string          `json:"currency"`
	Balance        decimal.Decimal `json:"balance"`
	Hold           decimal.Decimal `json:"hold"`
	Available      decimal.Decimal `json:"available"`
	ProfileID      string          `json:"profile_id"`
	TradingEnabled bool            `json:"trading_enabled"`
}

//
// LedgerEntry is one line of an account's transaction history.
//
type LedgerEntry struct {
	ID        string          `json:"id"`
	CreatedAt time.Time       `json:"created_at"`
	Amount    decimal.Decimal `json:"amount"`
	Balance   decimal.Decimal `json:"balance"`
	Type      string          `json:"type"`
	Details   map[string]any  `json:"details"`
}

type Order struct {
	ID             string          `json:"id"`
	Price          decimal.Decimal `json:"price"`
	Size           decimal.Decimal `json:"size"`
	ProductID      string          `json:"product_id"`
	ProfileID      string          `json:"profile_id"`
	Side           string          `json:"side"`
	Funds          decimal.Decimal `json:"funds"`
	SpecifiedFunds decimal.Decimal `json:"specified_funds"`
	Type           string          `json:"type"`
	PostOnly       bool            `json:"post_only"`
	CreatedAt      time.Time       `json:"created_at"`
	DoneAt         time.Time       `json:"done_at"`
	DoneReason     string          `json:"done_reason"`
	RejectReason   string          `json:"reject_reason"`
	FillFees       decimal.Decimal `json:"fill_fees"`
	FilledSize     decimal.Decimal `json:"filled_size"`
	ExecutedValue  decimal.Decimal `json:"executed_value"`
	Status         string          `json:"status"`
	Settled        bool            `json:"settled"`
	Stop           string          `json:"stop"`
	StopPrice      decimal.Decimal `json:"stop_price"`
	FundingAmount  decimal.Decimal `json:"funding_amount"`
}

type Transfer struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	CreatedAt   time.Time       `json:"created_at"`
	CompletedAt *time.Time      `json:"completed_at"`
	CanceledAt  *time.Time      `json:"canceled_at"`
	ProcessedAt *time.Time      `json:"processed_at"`
	Amount      decimal.Decimal `json:"amount"`
	Details     map[string]any  `json:"details"`
}

//
// Fees holds the authenticated profile's current fee rates and trailing 30-day volume.
//
type Fees struct {
	MakerFeeRate decimal.Decimal `json:"maker_fee_rate"`
	TakerFeeRate decimal.Decimal `json:"taker_fee_rate"`
	USDVolume    decimal.Decimal `json:"usd_volume"`
}

//
// NonEmptyAccounts filters out accounts with a zero balance.
//
func NonEmptyAccounts(accounts []Account) []Account {
	ret := make([]Account, 0, len(accounts))

	for _, v := range accounts {
		if !v.Balance.IsZero() {
			ret = append(ret, v)
		}
	}

	return ret
}
