package message

import (
	"slices"
	"time"
)

// Embeddable field sets. A concrete message embeds the ones matching its
// capabilities and the trait methods are promoted.

type TransactionFields struct {
	TransactionID int64 `json:"transactionId,omitempty"`
}

func (f *TransactionFields) GetTransactionID() int64 { return f.TransactionID }

func (f *TransactionFields) SetTransactionID(id int64) { f.TransactionID = id }

type ResponseFields struct {
	OriginalTransactionID int64 `json:"originalTransactionId,omitempty"`
}

func (f *ResponseFields) GetOriginalTransactionID() int64 { return f.OriginalTransactionID }

// SubscriptionFields satisfies SubscriptionIDMessage together with a GetDataType method.
type SubscriptionFields struct {
	OriginalTransactionID int64   `json:"originalTransactionId,omitempty"`
	SubscriptionID        int64   `json:"subscriptionId,omitempty"`
	SubscriptionIDs       []int64 `json:"subscriptionIds,omitempty"`
}

func (f *SubscriptionFields) GetOriginalTransactionID() int64 { return f.OriginalTransactionID }

func (f *SubscriptionFields) GetSubscriptionID() int64 { return f.SubscriptionID }

func (f *SubscriptionFields) GetSubscriptionIDs() []int64 { return f.SubscriptionIDs }

// HasSubscription reports whether id is the owning subscription or a member of the set.
func (f *SubscriptionFields) HasSubscription(id int64) bool {
	if id == 0 {
		return false
	}
	return f.SubscriptionID == id || slices.Contains(f.SubscriptionIDs, id)
}

type SeqFields struct {
	SeqNum uint64 `json:"seqNum,omitempty"`
}

func (f *SeqFields) GetSeqNum() uint64 { return f.SeqNum }

type ServerTimeFields struct {
	ServerTime time.Time `json:"serverTime,omitempty"`
}

func (f *ServerTimeFields) GetServerTime() time.Time { return f.ServerTime }

type ErrorFields struct {
	Error error `json:"-"`
}

func (f *ErrorFields) GetError() error { return f.Error }

func (f *ErrorFields) SetError(err error) { f.Error = err }

type OwnerFields struct {
	StrategyID    string `json:"strategyId,omitempty"`
	PortfolioName string `json:"portfolioName,omitempty"`
}

func (f *OwnerFields) GetStrategyID() string { return f.StrategyID }

func (f *OwnerFields) GetPortfolioName() string { return f.PortfolioName }
