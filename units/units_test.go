package units_test

import (
	"math"
	"testing"

	"github.com/pjones/elm327diag/units"
)

func TestConvert(t *testing.T) {
	tests := []struct {
		name    string
		value   float64
		from    units.Unit
		to      units.Unit
		want    float64
		wantErr bool
	}{
		{"KMH to MPH", 100, units.KMH, units.MPH, 62.1371, false},
		{"MPH to KMH", 25, units.MPH, units.KMH, 40.2335, false},
		{"C to F", 100, units.C, units.F, 212, false},
		{"F to C", 32, units.F, units.C, 0, false},
		{"KPA to BAR", 100, units.KPA, units.BAR, 1, false},
		{"No conversion from unit", 1, units.RPM, units.KMH, 0, true},
		{"No conversion to unit", 1, units.KPA, units.RPM, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := units.Convert(tt.value, tt.from, tt.to)
			if (err != nil) != tt.wantErr {
				t.Errorf("Convert() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if math.Abs(got-tt.want) > 0.0001 {
				t.Errorf("Convert() = %v, want %v", got, tt.want)
			}
		})
	}
}
