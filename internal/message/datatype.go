package message

import "strings"

const candlePrefix = "candle."

// DataType classifies a subscription. It is an immutable comparable value:
// two data types are equal when both name and argument match.
type DataType struct {
	Name string `json:"name,omitempty"`
	// Arg refines the name, e.g. the time frame of candles. Empty when unused.
	Arg string `json:"arg,omitempty"`
}

var (
	DataTypeLevel1       = DataType{Name: "level1"}
	DataTypeMarketDepth  = DataType{Name: "depth"}
	DataTypeTicks        = DataType{Name: "ticks"}
	DataTypeOrderLog     = DataType{Name: "order_log"}
	DataTypeTransactions = DataType{Name: "transactions"}
	DataTypeNews         = DataType{Name: "news"}
	DataTypeBoard        = DataType{Name: "board"}
	DataTypeSecurities   = DataType{Name: "securities"}
)

// TimeFrame returns the data type of time-frame candles, e.g. TimeFrame("1m").
func TimeFrame(tf string) DataType { return DataType{Name: candlePrefix + "timeframe", Arg: tf} }

func VolumeCandles(volume string) DataType {
	return DataType{Name: candlePrefix + "volume", Arg: volume}
}

func TickCandles(count string) DataType { return DataType{Name: candlePrefix + "tick", Arg: count} }

func RangeCandles(size string) DataType { return DataType{Name: candlePrefix + "range", Arg: size} }

func (dt DataType) IsZero() bool { return dt.Name == "" }

func (dt DataType) IsCandles() bool { return strings.HasPrefix(dt.Name, candlePrefix) }

// IsMarketData reports whether the data type is produced by a market data feed.
func (dt DataType) IsMarketData() bool {
	switch dt {
	case DataTypeLevel1, DataTypeMarketDepth, DataTypeTicks, DataTypeOrderLog, DataTypeNews:
		return true
	default:
		return dt.IsCandles()
	}
}

func (dt DataType) String() string {
	if dt.Arg == "" {
		return dt.Name
	}
	return dt.Name + ":" + dt.Arg
}
