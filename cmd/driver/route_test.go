package main

import (
	"driver-dispatch-client/internal/domain"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCoordinates(t *testing.T) {
	c, err := parseCoordinates("-73.99, 40.72")
	require.NoError(t, err)
	assert.Equal(t, domain.Coordinates{Lon: -73.99, Lat: 40.72}, c)

	for _, in := range []string{"", "1", "x,2", "1,y", "200,0"} {
		_, err := parseCoordinates(in)
		assert.Error(t, err, in)
	}
}
