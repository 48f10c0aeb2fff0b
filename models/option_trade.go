package models

// OptionTrade is a single option print from an option_trades:<TICKER> channel.
type OptionTrade struct {
	Channel           string  `json:"channel" parquet:"name=channel, type=BYTE_ARRAY, convertedtype=UTF8"`
	ID                string  `json:"id" parquet:"name=id, type=BYTE_ARRAY, convertedtype=UTF8"`
	OptionSymbol      string  `json:"option_symbol" parquet:"name=option_symbol, type=BYTE_ARRAY, convertedtype=UTF8"`
	UnderlyingSymbol  string  `json:"underlying_symbol" parquet:"name=underlying_symbol, type=BYTE_ARRAY, convertedtype=UTF8"`
	ExecutedAt        int64   `json:"executed_at" parquet:"name=executed_at, type=INT64"`
	Price             float64 `json:"price" parquet:"name=price, type=DOUBLE"`
	Size              int64   `json:"size" parquet:"name=size, type=INT64"`
	Premium           float64 `json:"premium" parquet:"name=premium, type=DOUBLE"`
	UnderlyingPrice   float64 `json:"underlying_price" parquet:"name=underlying_price, type=DOUBLE"`
	NBBOBid           float64 `json:"nbbo_bid" parquet:"name=nbbo_bid, type=DOUBLE"`
	NBBOAsk           float64 `json:"nbbo_ask" parquet:"name=nbbo_ask, type=DOUBLE"`
	Volume            int64   `json:"volume" parquet:"name=volume, type=INT64"`
	OpenInterest      int64   `json:"open_interest" parquet:"name=open_interest, type=INT64"`
	ImpliedVolatility float64 `json:"implied_volatility" parquet:"name=implied_volatility, type=DOUBLE"`
	Delta             float64 `json:"delta" parquet:"name=delta, type=DOUBLE"`
	Exchange          string  `json:"exchange" parquet:"name=exchange, type=BYTE_ARRAY, convertedtype=UTF8"`
	Tags              string  `json:"tags" parquet:"name=tags, type=BYTE_ARRAY, convertedtype=UTF8"`
}

var OptionTradeSchema = &Schema{
	Destination: DestinationOptionTrades,
	Key:         "id",
	Columns: []Column{
		{"channel", ColumnText},
		{"id", ColumnText},
		{"option_symbol", ColumnText},
		{"underlying_symbol", ColumnText},
		{"executed_at", ColumnInteger},
		{"price", ColumnReal},
		{"size", ColumnInteger},
		{"premium", ColumnReal},
		{"underlying_price", ColumnReal},
		{"nbbo_bid", ColumnReal},
		{"nbbo_ask", ColumnReal},
		{"volume", ColumnInteger},
		{"open_interest", ColumnInteger},
		{"implied_volatility", ColumnReal},
		{"delta", ColumnReal},
		{"exchange", ColumnText},
		{"tags", ColumnText},
	},
}

func (t OptionTrade) Schema() *Schema  { return OptionTradeSchema }
func (t OptionTrade) DedupKey() string { return t.ID }

func (t OptionTrade) Values() []any {
	return []any{
		t.Channel, t.ID, t.OptionSymbol, t.UnderlyingSymbol, t.ExecutedAt,
		t.Price, t.Size, t.Premium, t.UnderlyingPrice, t.NBBOBid, t.NBBOAsk,
		t.Volume, t.OpenInterest, t.ImpliedVolatility, t.Delta, t.Exchange, t.Tags,
	}
}
