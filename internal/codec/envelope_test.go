package codec

import (
	"testing"
	"time"

	"tradecore/internal/message"
	"tradecore/pkg/exception"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yanun0323/errors"
)

func TestDecode(t *testing.T) {
	line := []byte(`{"kind":"level1_change","recvTime":1700000000000000000,"body":{"subscriptionId":7,"subscriptionIds":[7,8],"seqNum":3}}`)

	m, env, err := Decode(line)
	require.NoError(t, err)
	assert.Equal(t, message.KindLevel1Change, env.Kind)
	assert.Equal(t, time.Unix(0, 1700000000000000000), env.ReceivedAt())

	l1, ok := m.(*message.Level1Change)
	require.True(t, ok)
	assert.Equal(t, int64(7), l1.GetSubscriptionID())
	assert.Equal(t, []int64{7, 8}, l1.GetSubscriptionIDs())
	assert.Equal(t, uint64(3), message.SeqNumOf(m))
}

func TestDecodeError(t *testing.T) {
	m, _, err := Decode([]byte(`{"kind":"subscription_response","error":"not entitled","body":{"originalTransactionId":5}}`))
	require.NoError(t, err)

	res, ok := message.ResultOf(m)
	require.True(t, ok)
	assert.Equal(t, int64(5), res.OriginalTransactionID)
	assert.ErrorContains(t, res.Err, "not entitled")
}

func TestDecodeUnknownKind(t *testing.T) {
	m, _, err := Decode([]byte(`{"kind":"news","body":{"headline":"x"}}`))
	require.NoError(t, err)

	raw, ok := m.(*message.Raw)
	require.True(t, ok)
	assert.Equal(t, message.Kind("news"), raw.GetKind())
	assert.JSONEq(t, `{"headline":"x"}`, string(raw.Payload))
}

func TestDecodeMalformed(t *testing.T) {
	for _, line := range []string{
		`not json`,
		`{"body":{}}`,
		`{"kind":"level1_change","body":{"subscriptionId":"seven"}}`,
	} {
		_, _, err := Decode([]byte(line))
		require.ErrorIs(t, err, exception.ErrMalformedCapture, line)
	}
}

func TestEncode(t *testing.T) {
	req := &message.MarketDataRequest{
		TransactionFields: message.TransactionFields{TransactionID: 11},
		DataType:          message.TimeFrame("1m"),
		SecurityID:        message.SecurityID{SecurityCode: "SBER", BoardCode: "TQBR"},
		IsSubscribe:       true,
	}
	recv := time.Unix(1700000000, 0)

	line, err := Encode(req, recv)
	require.NoError(t, err)
	kind, ok := PeekKind(line)
	require.True(t, ok)
	assert.Equal(t, message.KindMarketDataRequest, kind)

	m, env, err := Decode(line)
	require.NoError(t, err)
	assert.Equal(t, recv.UnixNano(), env.RecvTime)
	got := m.(*message.MarketDataRequest)
	assert.Equal(t, int64(11), got.GetTransactionID())
	assert.Equal(t, message.TimeFrame("1m"), got.GetDataType())
	assert.Equal(t, req.SecurityID, got.SecurityID)
	assert.True(t, got.GetIsSubscribe())
}

func TestEncodeCarriesError(t *testing.T) {
	line, err := Encode(&message.ErrorNotice{
		ResponseFields: message.ResponseFields{OriginalTransactionID: 3},
		ErrorFields:    message.ErrorFields{Error: errors.New("halted")},
	}, time.Time{})
	require.NoError(t, err)

	m, env, err := Decode(line)
	require.NoError(t, err)
	assert.Zero(t, env.RecvTime)
	assert.ErrorContains(t, message.ErrorOf(m), "halted")
}

type customNotice struct {
	message.Base
	message.ResponseFields
}

func (*customNotice) GetKind() message.Kind { return "custom_notice" }

func TestRegister(t *testing.T) {
	Register("custom_notice", func() message.Message { return &customNotice{} })

	m, _, err := Decode([]byte(`{"kind":"custom_notice","body":{"originalTransactionId":4}}`))
	require.NoError(t, err)
	id, ok := message.OriginalTransactionIDOf(m)
	require.True(t, ok)
	assert.Equal(t, int64(4), id)
}
