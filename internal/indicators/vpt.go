package indicators

import "github.com/nyxtrade/momentum-trader/internal/domain"

// VPTVolumeWindow is the trailing window for the mean-volume comparison (spec §4.3).
const VPTVolumeWindow = 20

// VolumePriceTrend is the cumulative sum of volume * bar-to-bar return.
// Bullish when VPT is rising, the VPT trend direction confirms the price
// trend direction, and current volume >= 1.2x the 20-bar mean volume (spec §4.3).
func VolumePriceTrend(bars []domain.Bar, volumeSpikeMultiplier float64) domain.IndicatorSignal {
	if len(bars) < VPTVolumeWindow+2 {
		return domain.NeutralSignal("vpt")
	}

	cl := closes(bars)
	vol := volumes(bars)

	vpt := make([]float64, len(cl))
	for i := 1; i < len(cl); i++ {
		ret := 0.0
		if cl[i-1] != 0 {
			ret = (cl[i] - cl[i-1]) / cl[i-1]
		}
		vpt[i] = vpt[i-1] + vol[i]*ret
	}

	lookback := VPTVolumeWindow
	vptRecent := vpt[len(vpt)-lookback:]
	priceRecent := cl[len(cl)-lookback:]

	vptRising := vptRecent[len(vptRecent)-1] > vptRecent[0]
	priceRising := priceRecent[len(priceRecent)-1] > priceRecent[0]
	vptFalling := vptRecent[len(vptRecent)-1] < vptRecent[0]
	priceFalling := priceRecent[len(priceRecent)-1] < priceRecent[0]

	meanVol := mean(vol[len(vol)-lookback-1 : len(vol)-1])
	currentVol := vol[len(vol)-1]
	volSpike := meanVol > 0 && currentVol >= volumeSpikeMultiplier*meanVol

	direction := domain.DirectionNeutral
	strength := 0.0
	if vptRising && priceRising && volSpike {
		direction = domain.DirectionBullish
		strength = clamp(currentVol/meanVol/5, 0, 1)
	} else if vptFalling && priceFalling && volSpike {
		direction = domain.DirectionBearish
		strength = clamp(currentVol/meanVol/5, 0, 1)
	}

	confidence := 0.0
	if volSpike {
		confidence = clamp(currentVol/(meanVol*volumeSpikeMultiplier)-1, 0, 1)
	}

	return domain.IndicatorSignal{
		Name:       "vpt",
		Value:      vpt[len(vpt)-1],
		Direction:  direction,
		Strength:   strength,
		Confidence: confidence,
		Aux:        map[string]float64{"volume_ratio": currentVol / maxF(meanVol, 1)},
	}
}
