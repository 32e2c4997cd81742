package message

import (
	"time"

	"github.com/yanun0323/decimal"
)

var (
	_ SubscriptionRequest          = (*MarketDataRequest)(nil)
	_ SecurityIDMessage            = (*MarketDataRequest)(nil)
	_ SubscriptionRequest          = (*OrderStatusRequest)(nil)
	_ PortfolioNameMessage         = (*OrderStatusRequest)(nil)
	_ SecurityIDSetMessage         = (*BoardLookupRequest)(nil)
	_ SecurityTypesMessage         = (*BoardLookupRequest)(nil)
	_ TerminalMessage              = (*SubscriptionResponse)(nil)
	_ ErrorMessage                 = (*SubscriptionResponse)(nil)
	_ OriginalTransactionIDMessage = (*SubscriptionOnline)(nil)
	_ TerminalMessage              = (*SubscriptionFinished)(nil)
	_ TerminalMessage              = (*ErrorNotice)(nil)
	_ SystemMessage                = (*ErrorNotice)(nil)
	_ SubscriptionIDMessage        = (*OrderFact)(nil)
	_ SeqNumMessage                = (*OrderFact)(nil)
	_ CurrencyMessage              = (*OrderFact)(nil)
	_ StrategyIDMessage            = (*OrderFact)(nil)
	_ SubscriptionIDMessage        = (*TradeFact)(nil)
	_ ServerTimeMessage            = (*TradeFact)(nil)
	_ SubscriptionIDMessage        = (*Level1Change)(nil)
	_ SubscriptionIDMessage        = (*Candle)(nil)
	_ OriginalTransactionIDMessage = (*Board)(nil)
)

// MarketDataRequest subscribes to or unsubscribes from a market data feed.
// An unsubscribe points at the subscribe request with OriginalTransactionID.
type MarketDataRequest struct {
	Base
	TransactionFields
	ResponseFields
	DataType    DataType   `json:"dataType,omitempty"`
	SecurityID  SecurityID `json:"securityId,omitempty"`
	IsSubscribe bool       `json:"isSubscribe,omitempty"`
	From        time.Time  `json:"from,omitempty"`
	To          time.Time  `json:"to,omitempty"`
	Count       int64      `json:"count,omitempty"`
}

func (m *MarketDataRequest) GetKind() Kind { return KindMarketDataRequest }

func (m *MarketDataRequest) GetDataType() DataType { return m.DataType }

func (m *MarketDataRequest) GetSecurityID() SecurityID { return m.SecurityID }

func (m *MarketDataRequest) GetIsSubscribe() bool { return m.IsSubscribe }

// OrderStatusRequest subscribes to the transaction stream of a portfolio.
type OrderStatusRequest struct {
	Base
	TransactionFields
	OwnerFields
	IsSubscribe bool `json:"isSubscribe,omitempty"`
}

func (m *OrderStatusRequest) GetKind() Kind { return KindOrderStatusRequest }

func (m *OrderStatusRequest) GetDataType() DataType { return DataTypeTransactions }

func (m *OrderStatusRequest) GetIsSubscribe() bool { return m.IsSubscribe }

// BoardCriteria filters boards by code and exchange. Empty fields match all.
type BoardCriteria struct {
	Code     string `json:"code,omitempty"`
	Exchange string `json:"exchange,omitempty"`
}

// BoardLookupRequest enumerates boards. The enumeration ends with SubscriptionFinished.
type BoardLookupRequest struct {
	Base
	TransactionFields
	Criteria      BoardCriteria  `json:"criteria,omitempty"`
	SecurityIDs   []SecurityID   `json:"securityIds,omitempty"`
	SecurityTypes []SecurityType `json:"securityTypes,omitempty"`
}

func (m *BoardLookupRequest) GetKind() Kind { return KindBoardLookupRequest }

func (m *BoardLookupRequest) GetDataType() DataType { return DataTypeBoard }

func (m *BoardLookupRequest) GetSecurityIDs() []SecurityID { return m.SecurityIDs }

func (m *BoardLookupRequest) GetSecurityTypes() []SecurityType { return m.SecurityTypes }

// SubscriptionResponse acknowledges a request. A non-nil Error rejects it.
type SubscriptionResponse struct {
	Base
	ResponseFields
	ErrorFields
}

func (m *SubscriptionResponse) GetKind() Kind { return KindSubscriptionResponse }

func (m *SubscriptionResponse) IsOk() bool { return m.Error == nil }

func (m *SubscriptionResponse) IsTerminal() bool { return m.Error != nil }

// SubscriptionOnline signals that history is done and live data follows.
type SubscriptionOnline struct {
	Base
	ResponseFields
}

func (m *SubscriptionOnline) GetKind() Kind { return KindSubscriptionOnline }

// SubscriptionFinished is the "list finished" result of an enumeration request.
type SubscriptionFinished struct {
	Base
	ResponseFields
	NextFrom time.Time `json:"nextFrom,omitempty"`
}

func (m *SubscriptionFinished) GetKind() Kind { return KindSubscriptionFinished }

func (m *SubscriptionFinished) IsTerminal() bool { return true }

// ErrorNotice reports a failure, terminal when it correlates to a request.
type ErrorNotice struct {
	Base
	ResponseFields
	ErrorFields
	ServerTimeFields
}

func (m *ErrorNotice) GetKind() Kind { return KindError }

func (m *ErrorNotice) IsTerminal() bool { return m.OriginalTransactionID != 0 }

func (m *ErrorNotice) IsSystem() bool { return true }

// OrderFact is the order-state half of an order log entry.
type OrderFact struct {
	Base
	SubscriptionFields
	SeqFields
	ServerTimeFields
	OwnerFields
	OrderID    ComplexID       `json:"orderId,omitempty"`
	SecurityID SecurityID      `json:"securityId,omitempty"`
	Side       Side            `json:"side,omitempty"`
	State      OrderState      `json:"state,omitempty"`
	Price      decimal.Decimal `json:"price,omitempty"`
	Volume     decimal.Decimal `json:"volume,omitempty"`
	Balance    decimal.Decimal `json:"balance,omitempty"`
	Currency   Currency        `json:"currency,omitempty"`
}

func (m *OrderFact) GetKind() Kind { return KindOrderFact }

func (m *OrderFact) GetDataType() DataType { return DataTypeOrderLog }

func (m *OrderFact) GetSecurityID() SecurityID { return m.SecurityID }

func (m *OrderFact) GetCurrency() Currency { return m.Currency }

func (m *OrderFact) GetComplexID() ComplexID { return m.OrderID }

// TradeFact is the trade half of an order log entry, keyed by the order it filled.
type TradeFact struct {
	Base
	SubscriptionFields
	SeqFields
	ServerTimeFields
	OrderID    ComplexID       `json:"orderId,omitempty"`
	TradeID    ComplexID       `json:"tradeId,omitempty"`
	SecurityID SecurityID      `json:"securityId,omitempty"`
	Price      decimal.Decimal `json:"price,omitempty"`
	Volume     decimal.Decimal `json:"volume,omitempty"`
}

func (m *TradeFact) GetKind() Kind { return KindTradeFact }

func (m *TradeFact) GetDataType() DataType { return DataTypeOrderLog }

func (m *TradeFact) GetSecurityID() SecurityID { return m.SecurityID }

func (m *TradeFact) GetComplexID() ComplexID { return m.OrderID }

type Level1Change struct {
	Base
	SubscriptionFields
	SeqFields
	ServerTimeFields
	SecurityID SecurityID      `json:"securityId,omitempty"`
	BidPrice   decimal.Decimal `json:"bidPrice,omitempty"`
	AskPrice   decimal.Decimal `json:"askPrice,omitempty"`
	LastPrice  decimal.Decimal `json:"lastPrice,omitempty"`
}

func (m *Level1Change) GetKind() Kind { return KindLevel1Change }

func (m *Level1Change) GetDataType() DataType { return DataTypeLevel1 }

func (m *Level1Change) GetSecurityID() SecurityID { return m.SecurityID }

// Candle is one bar. DataType carries the candle source, e.g. TimeFrame("1m").
type Candle struct {
	Base
	SubscriptionFields
	SeqFields
	ServerTimeFields
	DataType   DataType        `json:"dataType,omitempty"`
	SecurityID SecurityID      `json:"securityId,omitempty"`
	OpenTime   time.Time       `json:"openTime,omitempty"`
	Open       decimal.Decimal `json:"open,omitempty"`
	High       decimal.Decimal `json:"high,omitempty"`
	Low        decimal.Decimal `json:"low,omitempty"`
	Close      decimal.Decimal `json:"close,omitempty"`
	Volume     decimal.Decimal `json:"volume,omitempty"`
}

func (m *Candle) GetKind() Kind { return KindCandle }

func (m *Candle) GetDataType() DataType { return m.DataType }

func (m *Candle) GetSecurityID() SecurityID { return m.SecurityID }

// Board describes an exchange board, the answer to BoardLookupRequest.
type Board struct {
	Base
	ResponseFields
	Code          string         `json:"code,omitempty"`
	Exchange      string         `json:"exchange,omitempty"`
	SecurityTypes []SecurityType `json:"securityTypes,omitempty"`
	Securities    []SecurityID   `json:"securities,omitempty"`
}

func (m *Board) GetKind() Kind { return KindBoard }

func (m *Board) GetSecurityTypes() []SecurityType { return m.SecurityTypes }
