package message

// Kind is the message discriminant.
//
// The set is open: any package may declare its own kinds. The core dispatches
// on capability interfaces and only uses Kind for diagnostics and routing hints.
type Kind string

const (
	KindUnknown              Kind = ""
	KindMarketDataRequest    Kind = "market_data_request"
	KindOrderStatusRequest   Kind = "order_status_request"
	KindBoardLookupRequest   Kind = "board_lookup_request"
	KindSubscriptionResponse Kind = "subscription_response"
	KindSubscriptionOnline   Kind = "subscription_online"
	KindSubscriptionFinished Kind = "subscription_finished"
	KindError                Kind = "error"
	KindOrderFact            Kind = "order_fact"
	KindTradeFact            Kind = "trade_fact"
	KindLevel1Change         Kind = "level1_change"
	KindCandle               Kind = "candle"
	KindBoard                Kind = "board"
)

func (k Kind) String() string {
	if k == KindUnknown {
		return "unknown"
	}
	return string(k)
}
