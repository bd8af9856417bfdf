package location

import (
	"testing"

	"github.com/couchcryptid/lunch-locator-service/internal/config"
	"github.com/couchcryptid/lunch-locator-service/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestFromConfig(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.Config
		geocoder bool
		want     any
	}{
		{"ip", config.Config{LocationMode: config.LocationModeIP, IPAPIURL: "http://localhost"}, false, &IPAPI{}},
		{"fixed", config.Config{LocationMode: config.LocationModeFixed, LocationLat: 1, LocationLon: 2}, false, Fixed{}},
		{"denied ignores geocoder", config.Config{LocationMode: config.LocationModeDenied}, true, Denied{}},
		{"labeled", config.Config{LocationMode: config.LocationModeFixed}, true, &Labeled{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var g domain.ReverseGeocoder
			if tt.geocoder {
				g = &stubGeocoder{label: "Somewhere"}
			}
			assert.IsType(t, tt.want, FromConfig(&tt.cfg, g, discardLogger()))
		})
	}
}
