package message

import "time"

// TransactionIDMessage is a request carrying a caller-assigned transaction id.
type TransactionIDMessage interface {
	Message
	GetTransactionID() int64
}

// OriginalTransactionIDMessage is a response pointing back at a TransactionIDMessage.
type OriginalTransactionIDMessage interface {
	Message
	GetOriginalTransactionID() int64
}

// DataTypeMessage carries a data type classification.
type DataTypeMessage interface {
	Message
	GetDataType() DataType
}

// SubscriptionIDMessage belongs to one or more subscriptions.
//
// A subscription is always the answer to some request and always carries a
// classification, so the trait embeds both.
type SubscriptionIDMessage interface {
	OriginalTransactionIDMessage
	DataTypeMessage
	// GetSubscriptionID returns the owning subscription, 0 when not yet assigned.
	GetSubscriptionID() int64
	// GetSubscriptionIDs returns every subscription this physical message satisfies.
	GetSubscriptionIDs() []int64
}

// SubscriptionRequest opens a subscription, or closes the one its
// OriginalTransactionID points at when GetIsSubscribe is false.
type SubscriptionRequest interface {
	TransactionIDMessage
	DataTypeMessage
	GetIsSubscribe() bool
}

// SeqNumMessage carries a per-subscription sequence number, 0 when untracked.
type SeqNumMessage interface {
	Message
	GetSeqNum() uint64
}

type CurrencyMessage interface {
	Message
	GetCurrency() Currency
}

type SecurityIDMessage interface {
	Message
	GetSecurityID() SecurityID
}

// SecurityIDSetMessage carries a security filter. An empty set means no filter.
type SecurityIDSetMessage interface {
	Message
	GetSecurityIDs() []SecurityID
}

// SecurityTypesMessage carries a security type filter. An empty set means no filter.
type SecurityTypesMessage interface {
	Message
	GetSecurityTypes() []SecurityType
}

type ServerTimeMessage interface {
	Message
	GetServerTime() time.Time
}

// ErrorMessage carries an error, nil on success.
type ErrorMessage interface {
	Message
	GetError() error
}

// SystemMessage marks messages produced by the infrastructure itself.
type SystemMessage interface {
	Message
	IsSystem() bool
}

type StrategyIDMessage interface {
	Message
	GetStrategyID() string
}

type PortfolioNameMessage interface {
	Message
	GetPortfolioName() string
}

// TerminalMessage may end the request it correlates to.
type TerminalMessage interface {
	OriginalTransactionIDMessage
	IsTerminal() bool
}

// WorkingTime answers whether a schedule is open at a given instant.
type WorkingTime interface {
	IsOpen(at time.Time) bool
}

// ScheduledTask exposes start/stop guards over a working-time schedule.
// The guards are read predicates; the running state belongs to the caller.
type ScheduledTask interface {
	WorkingTime() WorkingTime
	CanStart(at time.Time) bool
	CanStop(at time.Time) bool
}
