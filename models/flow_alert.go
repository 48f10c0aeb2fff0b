package models

// FlowAlert is one unusual-flow alert from the flow-alerts channel. List
// valued fields (trade ids, exchanges, condition details) are kept as compact
// JSON text.
type FlowAlert struct {
	Channel                  string  `json:"channel" parquet:"name=channel, type=BYTE_ARRAY, convertedtype=UTF8"`
	ID                       string  `json:"id" parquet:"name=id, type=BYTE_ARRAY, convertedtype=UTF8"`
	RuleID                   string  `json:"rule_id" parquet:"name=rule_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	RuleName                 string  `json:"rule_name" parquet:"name=rule_name, type=BYTE_ARRAY, convertedtype=UTF8"`
	Ticker                   string  `json:"ticker" parquet:"name=ticker, type=BYTE_ARRAY, convertedtype=UTF8"`
	OptionChain              string  `json:"option_chain" parquet:"name=option_chain, type=BYTE_ARRAY, convertedtype=UTF8"`
	UnderlyingPrice          float64 `json:"underlying_price" parquet:"name=underlying_price, type=DOUBLE"`
	Volume                   int64   `json:"volume" parquet:"name=volume, type=INT64"`
	TotalSize                int64   `json:"total_size" parquet:"name=total_size, type=INT64"`
	TotalPremium             float64 `json:"total_premium" parquet:"name=total_premium, type=DOUBLE"`
	TotalAskSidePrem         float64 `json:"total_ask_side_prem" parquet:"name=total_ask_side_prem, type=DOUBLE"`
	TotalBidSidePrem         float64 `json:"total_bid_side_prem" parquet:"name=total_bid_side_prem, type=DOUBLE"`
	StartTime                int64   `json:"start_time" parquet:"name=start_time, type=INT64"`
	EndTime                  int64   `json:"end_time" parquet:"name=end_time, type=INT64"`
	URL                      string  `json:"url" parquet:"name=url, type=BYTE_ARRAY, convertedtype=UTF8"`
	Price                    float64 `json:"price" parquet:"name=price, type=DOUBLE"`
	HasMultileg              bool    `json:"has_multileg" parquet:"name=has_multileg, type=BOOLEAN"`
	HasSweep                 bool    `json:"has_sweep" parquet:"name=has_sweep, type=BOOLEAN"`
	HasFloor                 bool    `json:"has_floor" parquet:"name=has_floor, type=BOOLEAN"`
	HasSingleleg             bool    `json:"has_singleleg" parquet:"name=has_singleleg, type=BOOLEAN"`
	AllOpeningTrades         bool    `json:"all_opening_trades" parquet:"name=all_opening_trades, type=BOOLEAN"`
	OpenInterest             int64   `json:"open_interest" parquet:"name=open_interest, type=INT64"`
	VolumeOIRatio            float64 `json:"volume_oi_ratio" parquet:"name=volume_oi_ratio, type=DOUBLE"`
	TradeIDs                 string  `json:"trade_ids" parquet:"name=trade_ids, type=BYTE_ARRAY, convertedtype=UTF8"`
	TradeCount               int64   `json:"trade_count" parquet:"name=trade_count, type=INT64"`
	ExpiryCount              int64   `json:"expiry_count" parquet:"name=expiry_count, type=INT64"`
	ExecutedAt               int64   `json:"executed_at" parquet:"name=executed_at, type=INT64"`
	AskVol                   int64   `json:"ask_vol" parquet:"name=ask_vol, type=INT64"`
	BidVol                   int64   `json:"bid_vol" parquet:"name=bid_vol, type=INT64"`
	NoSideVol                int64   `json:"no_side_vol" parquet:"name=no_side_vol, type=INT64"`
	MidVol                   int64   `json:"mid_vol" parquet:"name=mid_vol, type=INT64"`
	MultiVol                 int64   `json:"multi_vol" parquet:"name=multi_vol, type=INT64"`
	StockMultiVol            int64   `json:"stock_multi_vol" parquet:"name=stock_multi_vol, type=INT64"`
	UpstreamConditionDetails string  `json:"upstream_condition_details" parquet:"name=upstream_condition_details, type=BYTE_ARRAY, convertedtype=UTF8"`
	Exchanges                string  `json:"exchanges" parquet:"name=exchanges, type=BYTE_ARRAY, convertedtype=UTF8"`
	Bid                      float64 `json:"bid" parquet:"name=bid, type=DOUBLE"`
	Ask                      float64 `json:"ask" parquet:"name=ask, type=DOUBLE"`
}

var FlowAlertSchema = &Schema{
	Destination: DestinationFlowAlerts,
	Key:         "id",
	Columns: []Column{
		{"channel", ColumnText},
		{"id", ColumnText},
		{"rule_id", ColumnText},
		{"rule_name", ColumnText},
		{"ticker", ColumnText},
		{"option_chain", ColumnText},
		{"underlying_price", ColumnReal},
		{"volume", ColumnInteger},
		{"total_size", ColumnInteger},
		{"total_premium", ColumnReal},
		{"total_ask_side_prem", ColumnReal},
		{"total_bid_side_prem", ColumnReal},
		{"start_time", ColumnInteger},
		{"end_time", ColumnInteger},
		{"url", ColumnText},
		{"price", ColumnReal},
		{"has_multileg", ColumnBool},
		{"has_sweep", ColumnBool},
		{"has_floor", ColumnBool},
		{"has_singleleg", ColumnBool},
		{"all_opening_trades", ColumnBool},
		{"open_interest", ColumnInteger},
		{"volume_oi_ratio", ColumnReal},
		{"trade_ids", ColumnText},
		{"trade_count", ColumnInteger},
		{"expiry_count", ColumnInteger},
		{"executed_at", ColumnInteger},
		{"ask_vol", ColumnInteger},
		{"bid_vol", ColumnInteger},
		{"no_side_vol", ColumnInteger},
		{"mid_vol", ColumnInteger},
		{"multi_vol", ColumnInteger},
		{"stock_multi_vol", ColumnInteger},
		{"upstream_condition_details", ColumnText},
		{"exchanges", ColumnText},
		{"bid", ColumnReal},
		{"ask", ColumnReal},
	},
}

func (a FlowAlert) Schema() *Schema  { return FlowAlertSchema }
func (a FlowAlert) DedupKey() string { return a.ID }

func (a FlowAlert) Values() []any {
	return []any{
		a.Channel, a.ID, a.RuleID, a.RuleName, a.Ticker, a.OptionChain,
		a.UnderlyingPrice, a.Volume, a.TotalSize, a.TotalPremium,
		a.TotalAskSidePrem, a.TotalBidSidePrem, a.StartTime, a.EndTime, a.URL,
		a.Price, a.HasMultileg, a.HasSweep, a.HasFloor, a.HasSingleleg,
		a.AllOpeningTrades, a.OpenInterest, a.VolumeOIRatio, a.TradeIDs,
		a.TradeCount, a.ExpiryCount, a.ExecutedAt, a.AskVol, a.BidVol,
		a.NoSideVol, a.MidVol, a.MultiVol, a.StockMultiVol,
		a.UpstreamConditionDetails, a.Exchanges, a.Bid, a.Ask,
	}
}
