package tensor

import (
	"fmt"
	"math"
	"strings"
)

// DType is the declared domain of a label.
type DType uint8

const (
	Float64 DType = iota
	Float32
	Int64
	Int32
	Uint8
	Bool
)

var dtypeNames = [...]string{
	Float64: "float64",
	Float32: "float32",
	Int64:   "int64",
	Int32:   "int32",
	Uint8:   "uint8",
	Bool:    "bool",
}

func (d DType) String() string {
	if int(d) < len(dtypeNames) {
		return dtypeNames[d]
	}
	return fmt.Sprintf("dtype(%d)", uint8(d))
}

// ParseDType accepts the names printed by String, case-insensitively.
func ParseDType(s string) (DType, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range dtypeNames {
		if n == name {
			return DType(i), nil
		}
	}
	return 0, fmt.Errorf("tensor: unknown dtype %q", s)
}

// Cast converts v into the domain of d.
func (d DType) Cast(v float64) float64 {
	switch d {
	case Bool:
		if v != 0 {
			return 1
		}
		return 0
	case Uint8:
		return float64(uint8(int64(math.Trunc(v))))
	case Int32:
		return float64(int32(math.Trunc(v)))
	case Int64:
		return math.Trunc(v)
	case Float32:
		return float64(float32(v))
	default:
		return v
	}
}

// Integral reports whether labels of d are whole numbers.
func (d DType) Integral() bool {
	return d == Bool || d == Uint8 || d == Int32 || d == Int64
}

func (d DType) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

func (d *DType) UnmarshalText(b []byte) error {
	v, err := ParseDType(string(b))
	if err != nil {
		return err
	}
	*d = v
	return nil
}
