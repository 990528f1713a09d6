package app

import "github.com/nyxtrade/momentum-trader/internal/domain"

// marketReferenceTicker is the broad-market proxy the Indicator Engine's
// sector-relative-strength step compares every candidate against (spec
// §4.3 "Sector Relative Strength" names a sector and a market composite but
// leaves the concrete reference instruments unspecified).
const marketReferenceTicker domain.Ticker = "SPY"

// sectorETF maps the sector names the Market Data Port reports (spec §4.2
// sector()) to a representative sector ETF, so bars for that ETF can stand
// in for "the sector" in the relative-strength comparison. Unmapped sectors
// fall back to the broad-market proxy, which still yields a valid (if less
// discriminating) excess-return comparison.
var sectorETF = map[string]domain.Ticker{
	"technology":             "XLK",
	"healthcare":             "XLV",
	"financials":             "XLF",
	"energy":                 "XLE",
	"industrials":            "XLI",
	"consumer_discretionary": "XLY",
	"consumer_staples":       "XLP",
	"utilities":              "XLU",
	"materials":              "XLB",
	"real_estate":            "XLRE",
	"communication_services": "XLC",
}

func sectorReferenceTicker(sector string) domain.Ticker {
	if t, ok := sectorETF[sector]; ok {
		return t
	}
	return marketReferenceTicker
}
