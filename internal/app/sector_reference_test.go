package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSectorReferenceTicker_MapsKnownSector(t *testing.T) {
	assert.Equal(t, sectorETF["technology"], sectorReferenceTicker("technology"))
}

func TestSectorReferenceTicker_FallsBackToMarketForUnknownSector(t *testing.T) {
	assert.Equal(t, marketReferenceTicker, sectorReferenceTicker("unobtanium"))
}
