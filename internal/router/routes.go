package router

import (
	"math"
	"strings"

	"feedflow/models"
)

// route binds a channel-name pattern to a destination. Routes are tried in
// order and the first pattern contained in the channel tag wins, so the more
// specific gex_strike_expiry precedes gex.
type route struct {
	pattern     string
	destination models.Destination
	required    []string
	project     func(channel string, f *fields) models.Record
}

var routes = []route{
	{
		pattern:     "option_trades",
		destination: models.DestinationOptionTrades,
		required:    []string{"id", "executed_at"},
		project:     projectOptionTrade,
	},
	{
		pattern:     "flow-alerts",
		destination: models.DestinationFlowAlerts,
		required:    []string{"id", "ticker"},
		project:     projectFlowAlert,
	},
	{
		pattern:     "gex_strike_expiry",
		destination: models.DestinationStrikeExpiryGreeks,
		required:    []string{"timestamp", "ticker", "expiry", "strike"},
		project:     projectStrikeExpiryGreeks,
	},
	{
		pattern:     "gex",
		destination: models.DestinationSpotGreeks,
		required:    []string{"timestamp", "ticker"},
		project:     projectSpotGreeks,
	},
}

// Classify maps a channel tag to its destination.
func Classify(channel string) (models.Destination, bool) {
	if r, ok := match(channel); ok {
		return r.destination, true
	}
	return "", false
}

func match(channel string) (route, bool) {
	for _, r := range routes {
		if strings.Contains(channel, r.pattern) {
			return r, true
		}
	}
	return route{}, false
}

func missing(p map[string]any, required []string) string {
	for _, k := range required {
		if v, ok := p[k]; !ok || v == nil {
			return k
		}
	}
	return ""
}

func projectOptionTrade(channel string, f *fields) models.Record {
	return models.OptionTrade{
		Channel:           channel,
		ID:                f.mustText("id"),
		OptionSymbol:      f.text("option_symbol"),
		UnderlyingSymbol:  f.text("underlying_symbol"),
		ExecutedAt:        f.mustInt("executed_at"),
		Price:             f.real("price"),
		Size:              f.integer("size"),
		Premium:           f.real("premium"),
		UnderlyingPrice:   f.real("underlying_price"),
		NBBOBid:           f.real("nbbo_bid"),
		NBBOAsk:           f.real("nbbo_ask"),
		Volume:            f.integer("volume"),
		OpenInterest:      f.integer("open_interest"),
		ImpliedVolatility: f.real("implied_volatility"),
		Delta:             f.real("delta"),
		Exchange:          f.text("exchange"),
		Tags:              f.raw("tags"),
	}
}

func projectFlowAlert(channel string, f *fields) models.Record {
	return models.FlowAlert{
		Channel:                  channel,
		ID:                       f.mustText("id"),
		RuleID:                   f.text("rule_id"),
		RuleName:                 f.text("rule_name"),
		Ticker:                   f.mustText("ticker"),
		OptionChain:              f.text("option_chain"),
		UnderlyingPrice:          f.real("underlying_price"),
		Volume:                   f.integer("volume"),
		TotalSize:                f.integer("total_size"),
		TotalPremium:             f.real("total_premium"),
		TotalAskSidePrem:         f.real("total_ask_side_prem"),
		TotalBidSidePrem:         f.real("total_bid_side_prem"),
		StartTime:                f.integer("start_time"),
		EndTime:                  f.integer("end_time"),
		URL:                      f.text("url"),
		Price:                    f.real("price"),
		HasMultileg:              f.flag("has_multileg"),
		HasSweep:                 f.flag("has_sweep"),
		HasFloor:                 f.flag("has_floor"),
		HasSingleleg:             f.flag("has_singleleg"),
		AllOpeningTrades:         f.flag("all_opening_trades"),
		OpenInterest:             f.integer("open_interest"),
		VolumeOIRatio:            f.real("volume_oi_ratio"),
		TradeIDs:                 f.raw("trade_ids"),
		TradeCount:               f.integer("trade_count"),
		ExpiryCount:              f.integer("expiry_count"),
		ExecutedAt:               f.integer("executed_at"),
		AskVol:                   f.integer("ask_vol"),
		BidVol:                   f.integer("bid_vol"),
		NoSideVol:                f.integer("no_side_vol"),
		MidVol:                   f.integer("mid_vol"),
		MultiVol:                 f.integer("multi_vol"),
		StockMultiVol:            f.integer("stock_multi_vol"),
		UpstreamConditionDetails: f.raw("upstream_condition_details"),
		Exchanges:                f.raw("exchanges"),
		Bid:                      f.real("bid"),
		Ask:                      f.real("ask"),
	}
}

func projectSpotGreeks(channel string, f *fields) models.Record {
	ticker := f.mustText("ticker")
	ts := f.mustInt("timestamp")
	date, clock := models.SnapshotTime(ts)
	return models.SpotGreeks{
		Channel:      channel,
		SnapshotKey:  models.SnapshotKey(ticker, ts),
		Ticker:       ticker,
		TimestampMS:  ts,
		Date:         date,
		Time:         clock,
		Price:        f.real("price"),
		CallDeltaOI:  f.real("call_delta_oi"),
		PutDeltaOI:   f.real("put_delta_oi"),
		CallGammaOI:  f.real("call_gamma_oi"),
		PutGammaOI:   f.real("put_gamma_oi"),
		CallCharmOI:  f.real("call_charm_oi"),
		PutCharmOI:   f.real("put_charm_oi"),
		CallVannaOI:  f.real("call_vanna_oi"),
		PutVannaOI:   f.real("put_vanna_oi"),
		CallDeltaVol: f.real("call_delta_vol"),
		PutDeltaVol:  f.real("put_delta_vol"),
		CallGammaVol: f.real("call_gamma_vol"),
		PutGammaVol:  f.real("put_gamma_vol"),
		CallCharmVol: f.real("call_charm_vol"),
		PutCharmVol:  f.real("put_charm_vol"),
		CallVannaVol: f.real("call_vanna_vol"),
		PutVannaVol:  f.real("put_vanna_vol"),
	}
}

func projectStrikeExpiryGreeks(channel string, f *fields) models.Record {
	ticker := f.mustText("ticker")
	expiry := f.mustText("expiry")
	strike := f.mustReal("strike")
	ts := f.mustInt("timestamp")
	cents := int64(math.RoundToEven(strike * 100))
	date, clock := models.SnapshotTime(ts)
	return models.StrikeExpiryGreeks{
		Channel:          channel,
		OptionKey:        models.OptionKey(ticker, expiry, cents, ts),
		Ticker:           ticker,
		Expiry:           expiry,
		StrikePrice:      strike,
		StrikePriceCents: cents,
		TimestampMS:      ts,
		Date:             date,
		Time:             clock,
		Price:            f.real("price"),
		CallDeltaOI:      f.real("call_delta_oi"),
		PutDeltaOI:       f.real("put_delta_oi"),
		CallGammaOI:      f.real("call_gamma_oi"),
		PutGammaOI:       f.real("put_gamma_oi"),
		CallCharmOI:      f.real("call_charm_oi"),
		PutCharmOI:       f.real("put_charm_oi"),
		CallVannaOI:      f.real("call_vanna_oi"),
		PutVannaOI:       f.real("put_vanna_oi"),
		CallDeltaVol:     f.real("call_delta_vol"),
		PutDeltaVol:      f.real("put_delta_vol"),
		CallGammaVol:     f.real("call_gamma_vol"),
		PutGammaVol:      f.real("put_gamma_vol"),
		CallCharmVol:     f.real("call_charm_vol"),
		PutCharmVol:      f.real("put_charm_vol"),
		CallVannaVol:     f.real("call_vanna_vol"),
		PutVannaVol:      f.real("put_vanna_vol"),
		CallGammaAskVol:  f.real("call_gamma_ask_vol"),
		CallGammaBidVol:  f.real("call_gamma_bid_vol"),
		PutGammaAskVol:   f.real("put_gamma_ask_vol"),
		PutGammaBidVol:   f.real("put_gamma_bid_vol"),
		CallCharmAskVol:  f.real("call_charm_ask_vol"),
		CallCharmBidVol:  f.real("call_charm_bid_vol"),
		PutCharmAskVol:   f.real("put_charm_ask_vol"),
		PutCharmBidVol:   f.real("put_charm_bid_vol"),
		CallVannaAskVol:  f.real("call_vanna_ask_vol"),
		CallVannaBidVol:  f.real("call_vanna_bid_vol"),
		PutVannaAskVol:   f.real("put_vanna_ask_vol"),
		PutVannaBidVol:   f.real("put_vanna_bid_vol"),
	}
}
