package codec

import (
	"encoding/json"
	"sync"
	"time"

	"tradecore/internal/message"
	"tradecore/pkg/exception"
	"tradecore/pkg/scanner"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/errors"
)

// Envelope is one captured message: a JSON object per line.
//
//	{"kind":"level1_change","recvTime":1700000000000000000,"body":{"subscriptionId":7}}
type Envelope struct {
	Kind message.Kind `json:"kind"`
	// RecvTime is the local receive time in unix nanoseconds.
	RecvTime int64           `json:"recvTime,omitempty"`
	Error    string          `json:"error,omitempty"`
	Body     json.RawMessage `json:"body,omitempty"`
}

func (e Envelope) ReceivedAt() time.Time {
	if e.RecvTime == 0 {
		return time.Time{}
	}
	return time.Unix(0, e.RecvTime)
}

type errorSetter interface {
	SetError(err error)
}

var (
	factoriesMu sync.RWMutex
	factories   = map[message.Kind]func() message.Message{
		message.KindMarketDataRequest:    func() message.Message { return &message.MarketDataRequest{} },
		message.KindOrderStatusRequest:   func() message.Message { return &message.OrderStatusRequest{} },
		message.KindBoardLookupRequest:   func() message.Message { return &message.BoardLookupRequest{} },
		message.KindSubscriptionResponse: func() message.Message { return &message.SubscriptionResponse{} },
		message.KindSubscriptionOnline:   func() message.Message { return &message.SubscriptionOnline{} },
		message.KindSubscriptionFinished: func() message.Message { return &message.SubscriptionFinished{} },
		message.KindError:                func() message.Message { return &message.ErrorNotice{} },
		message.KindOrderFact:            func() message.Message { return &message.OrderFact{} },
		message.KindTradeFact:            func() message.Message { return &message.TradeFact{} },
		message.KindLevel1Change:         func() message.Message { return &message.Level1Change{} },
		message.KindCandle:               func() message.Message { return &message.Candle{} },
		message.KindBoard:                func() message.Message { return &message.Board{} },
	}
)

// Register adds or replaces the decoder of a kind.
func Register(kind message.Kind, factory func() message.Message) {
	factoriesMu.Lock()
	factories[kind] = factory
	factoriesMu.Unlock()
}

func factoryOf(kind message.Kind) (func() message.Message, bool) {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	f, ok := factories[kind]
	return f, ok
}

// PeekKind reads the discriminant of a line without decoding it.
func PeekKind(line []byte) (message.Kind, bool) {
	v, ok := scanner.StringField(line, "kind")
	if !ok {
		return message.KindUnknown, false
	}
	return message.Kind(v), true
}

// Decode parses one captured line. Kinds without a registered decoder come
// back as *message.Raw holding the body.
func Decode(line []byte) (message.Message, Envelope, error) {
	var env Envelope
	if err := sonic.Unmarshal(line, &env); err != nil {
		return nil, Envelope{}, errors.Wrapf(exception.ErrMalformedCapture, "decode envelope, err: %+v", err)
	}
	if env.Kind == message.KindUnknown {
		return nil, env, errors.Wrap(exception.ErrMalformedCapture, "envelope has no kind")
	}

	factory, ok := factoryOf(env.Kind)
	if !ok {
		return &message.Raw{Kind: env.Kind, Payload: env.Body}, env, nil
	}
	m := factory()
	if len(env.Body) != 0 {
		if err := sonic.Unmarshal(env.Body, m); err != nil {
			return nil, env, errors.Wrapf(exception.ErrMalformedCapture, "decode %s body, err: %+v", env.Kind, err)
		}
	}
	if env.Error != "" {
		if es, ok := m.(errorSetter); ok {
			es.SetError(errors.New(env.Error))
		}
	}
	return m, env, nil
}

// Encode renders m as one capture line without the trailing newline.
func Encode(m message.Message, recvTime time.Time) ([]byte, error) {
	env := Envelope{Kind: m.GetKind()}
	if !recvTime.IsZero() {
		env.RecvTime = recvTime.UnixNano()
	}
	if err := message.ErrorOf(m); err != nil {
		env.Error = err.Error()
	}

	if raw, ok := m.(*message.Raw); ok {
		env.Body = raw.Payload
	} else {
		body, err := sonic.Marshal(m)
		if err != nil {
			return nil, errors.Wrapf(err, "encode %s body", env.Kind)
		}
		env.Body = body
	}

	line, err := sonic.Marshal(env)
	if err != nil {
		return nil, errors.Wrap(err, "encode envelope")
	}
	return line, nil
}
