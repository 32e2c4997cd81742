package message

// SecurityID identifies an instrument on a board.
type SecurityID struct {
	SecurityCode string `json:"securityCode,omitempty"`
	BoardCode    string `json:"boardCode,omitempty"`
}

func (id SecurityID) IsZero() bool { return id.SecurityCode == "" && id.BoardCode == "" }

func (id SecurityID) String() string {
	if id.BoardCode == "" {
		return id.SecurityCode
	}
	return id.SecurityCode + "@" + id.BoardCode
}

// SecurityType stock, future, option, ...
type SecurityType string

const (
	SecurityTypeStock    SecurityType = "stock"
	SecurityTypeFuture   SecurityType = "future"
	SecurityTypeOption   SecurityType = "option"
	SecurityTypeIndex    SecurityType = "index"
	SecurityTypeCurrency SecurityType = "currency"
	SecurityTypeBond     SecurityType = "bond"
	SecurityTypeCrypto   SecurityType = "crypto"
)

// Currency is an ISO 4217 code.
type Currency string

const (
	CurrencyUSD  Currency = "USD"
	CurrencyEUR  Currency = "EUR"
	CurrencyRUB  Currency = "RUB"
	CurrencyUSDT Currency = "USDT"
)

// Side buy, sell
type Side uint8

const (
	_side_beg Side = iota
	SideBuy
	SideSell
	_side_end
)

func (s Side) IsAvailable() bool {
	return s > _side_beg && s < _side_end
}

// OrderState pending, active, done, failed
type OrderState uint8

const (
	_order_state_beg OrderState = iota
	OrderStatePending
	OrderStateActive
	OrderStateDone
	OrderStateFailed
	_order_state_end
)

func (s OrderState) IsAvailable() bool {
	return s > _order_state_beg && s < _order_state_end
}

func (s OrderState) String() string {
	switch s {
	case OrderStatePending:
		return "pending"
	case OrderStateActive:
		return "active"
	case OrderStateDone:
		return "done"
	case OrderStateFailed:
		return "failed"
	default:
		return "none"
	}
}

// IsTerminal reports whether the order can no longer change.
func (s OrderState) IsTerminal() bool {
	return s == OrderStateDone || s == OrderStateFailed
}

// CanBecome reports whether an order in state s may move to next.
//
//	none    -> pending, active, done, failed
//	pending -> active, failed
//	active  -> done
//
// A fact without a state carries no information and always passes.
func (s OrderState) CanBecome(next OrderState) bool {
	if s == next || !s.IsAvailable() || !next.IsAvailable() {
		return true
	}
	switch s {
	case OrderStatePending:
		return next == OrderStateActive || next == OrderStateFailed
	case OrderStateActive:
		return next == OrderStateDone
	default:
		return false
	}
}
