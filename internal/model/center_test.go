package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateCoordinates(t *testing.T) {
	assert.NoError(t, ValidateCoordinates(37.5, 127.0))
	assert.NoError(t, ValidateCoordinates(-90, -180))
	assert.NoError(t, ValidateCoordinates(90, 180))

	assert.Error(t, ValidateCoordinates(90.001, 0))
	assert.Error(t, ValidateCoordinates(-90.001, 0))
	assert.Error(t, ValidateCoordinates(0, 180.001))
	assert.Error(t, ValidateCoordinates(0, -180.001))
}

func TestScrapedCenter_HasCoords(t *testing.T) {
	lat, lng := 37.5, 127.0

	assert.False(t, ScrapedCenter{}.HasCoords())
	assert.False(t, ScrapedCenter{Lat: &lat}.HasCoords())
	assert.False(t, ScrapedCenter{Lng: &lng}.HasCoords())
	assert.True(t, ScrapedCenter{Lat: &lat, Lng: &lng}.HasCoords())
}
