package message

import (
	"slices"

	"tradecore/pkg/exception"

	"github.com/yanun0323/errors"
)

// TransactionIDOf returns the transaction id if m is a request.
func TransactionIDOf(m Message) (int64, bool) {
	tm, ok := m.(TransactionIDMessage)
	if !ok {
		return 0, false
	}
	return tm.GetTransactionID(), true
}

// OriginalTransactionIDOf returns the correlation id if m is a response.
func OriginalTransactionIDOf(m Message) (int64, bool) {
	om, ok := m.(OriginalTransactionIDMessage)
	if !ok {
		return 0, false
	}
	return om.GetOriginalTransactionID(), true
}

// SeqNumOf returns the sequence number, 0 when m is not sequenced.
func SeqNumOf(m Message) uint64 {
	sm, ok := m.(SeqNumMessage)
	if !ok {
		return 0
	}
	return sm.GetSeqNum()
}

func DataTypeOf(m Message) (DataType, bool) {
	dm, ok := m.(DataTypeMessage)
	if !ok {
		return DataType{}, false
	}
	return dm.GetDataType(), true
}

// ErrorOf returns the carried error, nil when m carries none.
func ErrorOf(m Message) error {
	em, ok := m.(ErrorMessage)
	if !ok {
		return nil
	}
	return em.GetError()
}

// SubscriptionsOf returns every subscription m belongs to without duplicates.
// SubscriptionIDs wins when present; the single id is never guessed from it.
func SubscriptionsOf(m Message) []int64 {
	sm, ok := m.(SubscriptionIDMessage)
	if !ok {
		return nil
	}
	if ids := sm.GetSubscriptionIDs(); len(ids) != 0 {
		out := make([]int64, 0, len(ids))
		for _, id := range ids {
			if id != 0 && !slices.Contains(out, id) {
				out = append(out, id)
			}
		}
		return out
	}
	if id := sm.GetSubscriptionID(); id != 0 {
		return []int64{id}
	}
	return nil
}

// ValidateMembership checks that a non-empty SubscriptionIDs contains SubscriptionID,
// unless SubscriptionID is unassigned.
func ValidateMembership(m Message) error {
	sm, ok := m.(SubscriptionIDMessage)
	if !ok {
		return nil
	}
	id, ids := sm.GetSubscriptionID(), sm.GetSubscriptionIDs()
	if id == 0 || len(ids) == 0 || slices.Contains(ids, id) {
		return nil
	}
	return errors.Wrapf(exception.ErrMembershipViolation, "subscription %d, ids %v", id, ids)
}

// Result is the terminal outcome carried by a result signal.
type Result struct {
	OriginalTransactionID int64
	// Err is nil for "list finished".
	Err error
}

func (r Result) IsFinished() bool { return r.Err == nil }

// ResultOf reports whether m terminates the request it correlates to.
func ResultOf(m Message) (Result, bool) {
	tm, ok := m.(TerminalMessage)
	if !ok || !tm.IsTerminal() {
		return Result{}, false
	}
	id := tm.GetOriginalTransactionID()
	if id == 0 {
		return Result{}, false
	}
	return Result{OriginalTransactionID: id, Err: ErrorOf(m)}, true
}

// FactSide tells which half of an order log entry a fact carries.
type FactSide uint8

const (
	_fact_side_beg FactSide = iota
	FactSideOrder
	FactSideTrade
	_fact_side_end
)

func (s FactSide) String() string {
	switch s {
	case FactSideOrder:
		return "order"
	case FactSideTrade:
		return "trade"
	default:
		return "unknown"
	}
}

func (s FactSide) IsAvailable() bool {
	return s > _fact_side_beg && s < _fact_side_end
}

// OrderLogFact is a message that can be paired into an order log entry.
type OrderLogFact interface {
	SubscriptionIDMessage
	GetComplexID() ComplexID
	FactSide() FactSide
}

func (m *OrderFact) FactSide() FactSide { return FactSideOrder }

// OrderStateOf returns the order state an order fact reports.
func OrderStateOf(m Message) (OrderState, bool) {
	of, ok := m.(*OrderFact)
	if !ok || !of.State.IsAvailable() {
		return 0, false
	}
	return of.State, true
}

func (m *TradeFact) FactSide() FactSide { return FactSideTrade }
