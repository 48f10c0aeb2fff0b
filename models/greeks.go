package models

import (
	"strconv"
	"time"
)

// SpotGreeks is one aggregate greek exposure snapshot from a gex:<TICKER>
// channel. The _oi columns are weighted by open interest, the _vol columns by
// intraday volume.
type SpotGreeks struct {
	Channel      string  `json:"channel" parquet:"name=channel, type=BYTE_ARRAY, convertedtype=UTF8"`
	SnapshotKey  string  `json:"snapshot_key" parquet:"name=snapshot_key, type=BYTE_ARRAY, convertedtype=UTF8"`
	Ticker       string  `json:"ticker" parquet:"name=ticker, type=BYTE_ARRAY, convertedtype=UTF8"`
	TimestampMS  int64   `json:"timestamp_ms" parquet:"name=timestamp_ms, type=INT64"`
	Date         string  `json:"date" parquet:"name=date, type=BYTE_ARRAY, convertedtype=UTF8"`
	Time         string  `json:"time" parquet:"name=time, type=BYTE_ARRAY, convertedtype=UTF8"`
	Price        float64 `json:"price" parquet:"name=price, type=DOUBLE"`
	CallDeltaOI  float64 `json:"call_delta_oi" parquet:"name=call_delta_oi, type=DOUBLE"`
	PutDeltaOI   float64 `json:"put_delta_oi" parquet:"name=put_delta_oi, type=DOUBLE"`
	CallGammaOI  float64 `json:"call_gamma_oi" parquet:"name=call_gamma_oi, type=DOUBLE"`
	PutGammaOI   float64 `json:"put_gamma_oi" parquet:"name=put_gamma_oi, type=DOUBLE"`
	CallCharmOI  float64 `json:"call_charm_oi" parquet:"name=call_charm_oi, type=DOUBLE"`
	PutCharmOI   float64 `json:"put_charm_oi" parquet:"name=put_charm_oi, type=DOUBLE"`
	CallVannaOI  float64 `json:"call_vanna_oi" parquet:"name=call_vanna_oi, type=DOUBLE"`
	PutVannaOI   float64 `json:"put_vanna_oi" parquet:"name=put_vanna_oi, type=DOUBLE"`
	CallDeltaVol float64 `json:"call_delta_vol" parquet:"name=call_delta_vol, type=DOUBLE"`
	PutDeltaVol  float64 `json:"put_delta_vol" parquet:"name=put_delta_vol, type=DOUBLE"`
	CallGammaVol float64 `json:"call_gamma_vol" parquet:"name=call_gamma_vol, type=DOUBLE"`
	PutGammaVol  float64 `json:"put_gamma_vol" parquet:"name=put_gamma_vol, type=DOUBLE"`
	CallCharmVol float64 `json:"call_charm_vol" parquet:"name=call_charm_vol, type=DOUBLE"`
	PutCharmVol  float64 `json:"put_charm_vol" parquet:"name=put_charm_vol, type=DOUBLE"`
	CallVannaVol float64 `json:"call_vanna_vol" parquet:"name=call_vanna_vol, type=DOUBLE"`
	PutVannaVol  float64 `json:"put_vanna_vol" parquet:"name=put_vanna_vol, type=DOUBLE"`
}

var SpotGreeksSchema = &Schema{
	Destination: DestinationSpotGreeks,
	Key:         "snapshot_key",
	Columns: []Column{
		{"channel", ColumnText},
		{"snapshot_key", ColumnText},
		{"ticker", ColumnText},
		{"timestamp_ms", ColumnInteger},
		{"date", ColumnText},
		{"time", ColumnText},
		{"price", ColumnReal},
		{"call_delta_oi", ColumnReal},
		{"put_delta_oi", ColumnReal},
		{"call_gamma_oi", ColumnReal},
		{"put_gamma_oi", ColumnReal},
		{"call_charm_oi", ColumnReal},
		{"put_charm_oi", ColumnReal},
		{"call_vanna_oi", ColumnReal},
		{"put_vanna_oi", ColumnReal},
		{"call_delta_vol", ColumnReal},
		{"put_delta_vol", ColumnReal},
		{"call_gamma_vol", ColumnReal},
		{"put_gamma_vol", ColumnReal},
		{"call_charm_vol", ColumnReal},
		{"put_charm_vol", ColumnReal},
		{"call_vanna_vol", ColumnReal},
		{"put_vanna_vol", ColumnReal},
	},
}

func (g SpotGreeks) Schema() *Schema  { return SpotGreeksSchema }
func (g SpotGreeks) DedupKey() string { return g.SnapshotKey }

// SnapshotKey identifies a spot snapshot by ticker and millisecond timestamp.
func SnapshotKey(ticker string, timestampMS int64) string {
	return ticker + "|" + strconv.FormatInt(timestampMS, 10)
}

func (g SpotGreeks) Values() []any {
	return []any{
		g.Channel, g.SnapshotKey, g.Ticker, g.TimestampMS, g.Date, g.Time, g.Price, g.CallDeltaOI,
		g.PutDeltaOI, g.CallGammaOI, g.PutGammaOI, g.CallCharmOI, g.PutCharmOI,
		g.CallVannaOI, g.PutVannaOI, g.CallDeltaVol, g.PutDeltaVol, g.CallGammaVol,
		g.PutGammaVol, g.CallCharmVol, g.PutCharmVol, g.CallVannaVol, g.PutVannaVol,
	}
}

// StrikeExpiryGreeks is a greek exposure snapshot for one strike of one
// expiry, from a gex_strike_expiry:<TICKER> channel.
type StrikeExpiryGreeks struct {
	Channel          string  `json:"channel" parquet:"name=channel, type=BYTE_ARRAY, convertedtype=UTF8"`
	OptionKey        string  `json:"option_key" parquet:"name=option_key, type=BYTE_ARRAY, convertedtype=UTF8"`
	Ticker           string  `json:"ticker" parquet:"name=ticker, type=BYTE_ARRAY, convertedtype=UTF8"`
	Expiry           string  `json:"expiry" parquet:"name=expiry, type=BYTE_ARRAY, convertedtype=UTF8"`
	StrikePrice      float64 `json:"strike_price" parquet:"name=strike_price, type=DOUBLE"`
	StrikePriceCents int64   `json:"strike_price_cents" parquet:"name=strike_price_cents, type=INT64"`
	TimestampMS      int64   `json:"timestamp_ms" parquet:"name=timestamp_ms, type=INT64"`
	Date             string  `json:"date" parquet:"name=date, type=BYTE_ARRAY, convertedtype=UTF8"`
	Time             string  `json:"time" parquet:"name=time, type=BYTE_ARRAY, convertedtype=UTF8"`
	Price            float64 `json:"price" parquet:"name=price, type=DOUBLE"`
	CallDeltaOI      float64 `json:"call_delta_oi" parquet:"name=call_delta_oi, type=DOUBLE"`
	PutDeltaOI       float64 `json:"put_delta_oi" parquet:"name=put_delta_oi, type=DOUBLE"`
	CallGammaOI      float64 `json:"call_gamma_oi" parquet:"name=call_gamma_oi, type=DOUBLE"`
	PutGammaOI       float64 `json:"put_gamma_oi" parquet:"name=put_gamma_oi, type=DOUBLE"`
	CallCharmOI      float64 `json:"call_charm_oi" parquet:"name=call_charm_oi, type=DOUBLE"`
	PutCharmOI       float64 `json:"put_charm_oi" parquet:"name=put_charm_oi, type=DOUBLE"`
	CallVannaOI      float64 `json:"call_vanna_oi" parquet:"name=call_vanna_oi, type=DOUBLE"`
	PutVannaOI       float64 `json:"put_vanna_oi" parquet:"name=put_vanna_oi, type=DOUBLE"`
	CallDeltaVol     float64 `json:"call_delta_vol" parquet:"name=call_delta_vol, type=DOUBLE"`
	PutDeltaVol      float64 `json:"put_delta_vol" parquet:"name=put_delta_vol, type=DOUBLE"`
	CallGammaVol     float64 `json:"call_gamma_vol" parquet:"name=call_gamma_vol, type=DOUBLE"`
	PutGammaVol      float64 `json:"put_gamma_vol" parquet:"name=put_gamma_vol, type=DOUBLE"`
	CallCharmVol     float64 `json:"call_charm_vol" parquet:"name=call_charm_vol, type=DOUBLE"`
	PutCharmVol      float64 `json:"put_charm_vol" parquet:"name=put_charm_vol, type=DOUBLE"`
	CallVannaVol     float64 `json:"call_vanna_vol" parquet:"name=call_vanna_vol, type=DOUBLE"`
	PutVannaVol      float64 `json:"put_vanna_vol" parquet:"name=put_vanna_vol, type=DOUBLE"`
	CallGammaAskVol  float64 `json:"call_gamma_ask_vol" parquet:"name=call_gamma_ask_vol, type=DOUBLE"`
	CallGammaBidVol  float64 `json:"call_gamma_bid_vol" parquet:"name=call_gamma_bid_vol, type=DOUBLE"`
	PutGammaAskVol   float64 `json:"put_gamma_ask_vol" parquet:"name=put_gamma_ask_vol, type=DOUBLE"`
	PutGammaBidVol   float64 `json:"put_gamma_bid_vol" parquet:"name=put_gamma_bid_vol, type=DOUBLE"`
	CallCharmAskVol  float64 `json:"call_charm_ask_vol" parquet:"name=call_charm_ask_vol, type=DOUBLE"`
	CallCharmBidVol  float64 `json:"call_charm_bid_vol" parquet:"name=call_charm_bid_vol, type=DOUBLE"`
	PutCharmAskVol   float64 `json:"put_charm_ask_vol" parquet:"name=put_charm_ask_vol, type=DOUBLE"`
	PutCharmBidVol   float64 `json:"put_charm_bid_vol" parquet:"name=put_charm_bid_vol, type=DOUBLE"`
	CallVannaAskVol  float64 `json:"call_vanna_ask_vol" parquet:"name=call_vanna_ask_vol, type=DOUBLE"`
	CallVannaBidVol  float64 `json:"call_vanna_bid_vol" parquet:"name=call_vanna_bid_vol, type=DOUBLE"`
	PutVannaAskVol   float64 `json:"put_vanna_ask_vol" parquet:"name=put_vanna_ask_vol, type=DOUBLE"`
	PutVannaBidVol   float64 `json:"put_vanna_bid_vol" parquet:"name=put_vanna_bid_vol, type=DOUBLE"`
}

var StrikeExpiryGreeksSchema = &Schema{
	Destination: DestinationStrikeExpiryGreeks,
	Key:         "option_key",
	Columns: []Column{
		{"channel", ColumnText},
		{"option_key", ColumnText},
		{"ticker", ColumnText},
		{"expiry", ColumnText},
		{"strike_price", ColumnReal},
		{"strike_price_cents", ColumnInteger},
		{"timestamp_ms", ColumnInteger},
		{"date", ColumnText},
		{"time", ColumnText},
		{"price", ColumnReal},
		{"call_delta_oi", ColumnReal},
		{"put_delta_oi", ColumnReal},
		{"call_gamma_oi", ColumnReal},
		{"put_gamma_oi", ColumnReal},
		{"call_charm_oi", ColumnReal},
		{"put_charm_oi", ColumnReal},
		{"call_vanna_oi", ColumnReal},
		{"put_vanna_oi", ColumnReal},
		{"call_delta_vol", ColumnReal},
		{"put_delta_vol", ColumnReal},
		{"call_gamma_vol", ColumnReal},
		{"put_gamma_vol", ColumnReal},
		{"call_charm_vol", ColumnReal},
		{"put_charm_vol", ColumnReal},
		{"call_vanna_vol", ColumnReal},
		{"put_vanna_vol", ColumnReal},
		{"call_gamma_ask_vol", ColumnReal},
		{"call_gamma_bid_vol", ColumnReal},
		{"put_gamma_ask_vol", ColumnReal},
		{"put_gamma_bid_vol", ColumnReal},
		{"call_charm_ask_vol", ColumnReal},
		{"call_charm_bid_vol", ColumnReal},
		{"put_charm_ask_vol", ColumnReal},
		{"put_charm_bid_vol", ColumnReal},
		{"call_vanna_ask_vol", ColumnReal},
		{"call_vanna_bid_vol", ColumnReal},
		{"put_vanna_ask_vol", ColumnReal},
		{"put_vanna_bid_vol", ColumnReal},
	},
}

func (g StrikeExpiryGreeks) Schema() *Schema  { return StrikeExpiryGreeksSchema }
func (g StrikeExpiryGreeks) DedupKey() string { return g.OptionKey }

func (g StrikeExpiryGreeks) Values() []any {
	return []any{
		g.Channel, g.OptionKey, g.Ticker, g.Expiry, g.StrikePrice,
		g.StrikePriceCents, g.TimestampMS, g.Date, g.Time, g.Price, g.CallDeltaOI,
		g.PutDeltaOI, g.CallGammaOI, g.PutGammaOI, g.CallCharmOI, g.PutCharmOI,
		g.CallVannaOI, g.PutVannaOI, g.CallDeltaVol, g.PutDeltaVol, g.CallGammaVol,
		g.PutGammaVol, g.CallCharmVol, g.PutCharmVol, g.CallVannaVol, g.PutVannaVol,
		g.CallGammaAskVol, g.CallGammaBidVol, g.PutGammaAskVol, g.PutGammaBidVol,
		g.CallCharmAskVol, g.CallCharmBidVol, g.PutCharmAskVol, g.PutCharmBidVol,
		g.CallVannaAskVol, g.CallVannaBidVol, g.PutVannaAskVol, g.PutVannaBidVol,
	}
}

// OptionKey builds the identity of a strike/expiry snapshot. The strike is
// carried in integer cents so float formatting never splits one contract.
func OptionKey(ticker, expiry string, strikeCents, timestampMS int64) string {
	return ticker + "|" + expiry + "|" + strconv.FormatInt(strikeCents, 10) + "|" + strconv.FormatInt(timestampMS, 10)
}

// SnapshotTime splits a millisecond timestamp into the UTC date and time
// columns stored alongside greek snapshots.
func SnapshotTime(timestampMS int64) (date, clock string) {
	t := time.UnixMilli(timestampMS).UTC()
	return t.Format("2006-01-02"), t.Format("15:04:05.000000")
}
