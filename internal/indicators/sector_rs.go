package indicators

import "github.com/nyxtrade/momentum-trader/internal/domain"

// SectorRSTimeframes are the multi-timeframe lookbacks, recent-weighted
// 0.4/0.3/0.2/0.1 (spec §4.3).
var SectorRSTimeframes = [4]int{5, 10, 20, 50}

var sectorRSWeights = [4]float64{0.4, 0.3, 0.2, 0.1}

func returnOver(cl []float64, n int) float64 {
	if len(cl) <= n {
		return 0
	}
	base := cl[len(cl)-1-n]
	if base == 0 {
		return 0
	}
	return (cl[len(cl)-1] - base) / base
}

// SectorRelativeStrength computes the excess return of ticker vs. a sector
// reference series and a market reference series across 4 timeframes, and
// composites them with recency weighting. Bullish when the composite excess
// return vs. sector exceeds 2%, vs. market exceeds 3%, and direction is
// consistent across >= 3 of 4 timeframes (spec §4.3).
func SectorRelativeStrength(tickerBars, sectorBars, marketBars []domain.Bar) domain.IndicatorSignal {
	longest := SectorRSTimeframes[3]
	if len(tickerBars) < longest+1 || len(sectorBars) < longest+1 || len(marketBars) < longest+1 {
		return domain.NeutralSignal("sector_rs")
	}

	tc := closes(tickerBars)
	sc := closes(sectorBars)
	mc := closes(marketBars)

	var compositeVsSector, compositeVsMarket float64
	agree := 0
	for i, tf := range SectorRSTimeframes {
		tickerRet := returnOver(tc, tf)
		sectorRet := returnOver(sc, tf)
		marketRet := returnOver(mc, tf)

		excessSector := tickerRet - sectorRet
		excessMarket := tickerRet - marketRet

		compositeVsSector += sectorRSWeights[i] * excessSector
		compositeVsMarket += sectorRSWeights[i] * excessMarket

		if (excessSector > 0 && excessMarket > 0) || (excessSector < 0 && excessMarket < 0) {
			agree++
		}
	}

	direction := domain.DirectionNeutral
	strength := 0.0
	consistent := agree >= 3

	switch {
	case compositeVsSector > 0.02 && compositeVsMarket > 0.03 && consistent:
		direction = domain.DirectionBullish
		strength = clamp((compositeVsSector+compositeVsMarket)*5, 0, 1)
	case compositeVsSector < -0.02 && compositeVsMarket < -0.03 && consistent:
		direction = domain.DirectionBearish
		strength = clamp(-(compositeVsSector + compositeVsMarket) * 5, 0, 1)
	}

	confidence := clamp(float64(agree)/4.0, 0, 1)

	return domain.IndicatorSignal{
		Name:       "sector_rs",
		Value:      compositeVsSector,
		Direction:  direction,
		Strength:   strength,
		Confidence: confidence,
		Aux:        map[string]float64{"vs_sector": compositeVsSector, "vs_market": compositeVsMarket, "agreement": float64(agree)},
	}
}
