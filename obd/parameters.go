package obd

import (
	"sort"

	"github.com/pjones/elm327diag/units"
)

// DataType describes the shape of a parameter's decoded value.
type DataType uint8

const (
	Integer DataType = iota
	Real
)

// Decoder identifies the transform applied to a parameter's payload bytes.
// Keeping this a tag instead of a function field leaves the registry plain
// data that can be compared and serialized in tests.
type Decoder uint8

const (
	// DecodeIdentity returns the first payload byte unchanged.
	DecodeIdentity Decoder = iota
	// DecodeCombined combines both payload bytes as (b0*256+b1)/4, used
	// where the value's resolution exceeds one unit per single byte.
	DecodeCombined
)

// Value applies the decoder to the payload bytes. The transform is pure and
// performs no range clamping; a parameter's Min/Max describe the expected
// range but are never enforced here.
func (d Decoder) Value(b0, b1 byte) float64 {
	switch d {
	case DecodeCombined:
		return (float64(b0)*256 + float64(b1)) / 4
	default:
		return float64(b0)
	}
}

// Parameter describes a single PID that can be read from the vehicle.
type Parameter struct {
	Command byte
	Name    string

	Datatype DataType

	// ResponseBytes is the number of payload bytes carrying the value (1 or 2).
	ResponseBytes int

	// Min and Max describe the physical range the decoded value should fall
	// in. They are advisory metadata for consumers and tests.
	Min float64
	Max float64

	Unit units.Unit

	Decoder Decoder
}

// ParameterValue stores a parameter's decoded value with its current unit.
type ParameterValue struct {
	Value float64
	Unit  units.Unit
}

// ConvertTo converts a parameter value from its current unit to the given unit.
func (v ParameterValue) ConvertTo(u units.Unit) (*ParameterValue, error) {
	if u == v.Unit {
		return &ParameterValue{v.Value, v.Unit}, nil
	}

	val, err := units.Convert(v.Value, v.Unit, u)
	if err != nil {
		return nil, err
	}

	return &ParameterValue{Value: val, Unit: u}, nil
}

func (v ParameterValue) SafeConvertTo(u units.Unit) ParameterValue {
	pv, _ := v.ConvertTo(u)
	if pv != nil {
		return *pv
	}
	return ParameterValue{Unit: u}
}

// Parameters defines all the PIDs the tool queries, keyed by command code.
// A code absent from the map is not queried.
var Parameters = map[byte]Parameter{
	0x03: {
		Command:       0x03,
		Name:          "Fuel System Status",
		Datatype:      Integer,
		ResponseBytes: 1,
		Min:           0,
		Max:           255,
		Unit:          units.Encoded,
		Decoder:       DecodeIdentity,
	},
	0x04: {
		Command:       0x04,
		Name:          "Calculated Engine Load",
		Datatype:      Integer,
		ResponseBytes: 1,
		Min:           0,
		Max:           100,
		Unit:          units.Percent,
		Decoder:       DecodeIdentity,
	},
	0x05: {
		Command:       0x05,
		Name:          "Engine Coolant Temperature",
		Datatype:      Integer,
		ResponseBytes: 1,
		Min:           -40,
		Max:           215,
		Unit:          units.C,
		Decoder:       DecodeIdentity,
	},
	0x0A: {
		Command:       0x0A,
		Name:          "Fuel Gauge Pressure",
		Datatype:      Integer,
		ResponseBytes: 1,
		Min:           0,
		Max:           765,
		Unit:          units.KPA,
		Decoder:       DecodeIdentity,
	},
	0x0B: {
		Command:       0x0B,
		Name:          "Intake Manifold Absolute Pressure",
		Datatype:      Integer,
		ResponseBytes: 1,
		Min:           0,
		Max:           255,
		Unit:          units.KPA,
		Decoder:       DecodeIdentity,
	},
	0x0C: {
		Command:       0x0C,
		Name:          "Engine Speed",
		Datatype:      Real,
		ResponseBytes: 2,
		Min:           0,
		Max:           16383.75,
		Unit:          units.RPM,
		Decoder:       DecodeCombined,
	},
	0x0D: {
		Command:       0x0D,
		Name:          "Vehicle Speed",
		Datatype:      Integer,
		ResponseBytes: 1,
		Min:           0,
		Max:           255,
		Unit:          units.KMH,
		Decoder:       DecodeIdentity,
	},
}

// EachParameter calls fn once per registered parameter in ascending command
// order. Iteration stops at the first error, which is returned to the caller.
func EachParameter(fn func(Parameter) error) error {
	codes := make([]int, 0, len(Parameters))
	for c := range Parameters {
		codes = append(codes, int(c))
	}
	sort.Ints(codes)

	for _, c := range codes {
		if err := fn(Parameters[byte(c)]); err != nil {
			return err
		}
	}
	return nil
}
