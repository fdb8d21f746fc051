package speedscope

import (
	"github.com/pkg/errors"

	calltreeprofile "github.com/grafana/calltree/pkg/profile"
)

type unit string

const (
	unitNone         = unit("none")
	unitNanoseconds  = unit("nanoseconds")
	unitMicroseconds = unit("microseconds")
	unitMilliseconds = unit("milliseconds")
	unitSeconds      = unit("seconds")
	unitBytes        = unit("bytes")
)

func (u unit) validate() error {
	switch u {
	case unitNone, unitNanoseconds, unitMicroseconds, unitMilliseconds, unitSeconds, unitBytes:
		return nil
	}
	return errors.Errorf("unknown unit %q", string(u))
}

// millis is the number of milliseconds in one u, or 0 if u is not a time
// unit.
func (u unit) millis() float64 {
	switch u {
	case unitNanoseconds:
		return 1e-6
	case unitMicroseconds:
		return 1e-3
	case unitMilliseconds:
		return 1
	case unitSeconds:
		return 1e3
	}
	return 0
}

func (u unit) weightType() calltreeprofile.WeightType {
	switch {
	case u == unitBytes:
		return calltreeprofile.WeightTypeBytes
	case u.millis() != 0:
		return calltreeprofile.WeightTypeTracingMs
	}
	return calltreeprofile.WeightTypeSamples
}

// scale converts a value in u to the unit of its weight type: milliseconds
// for time units, unchanged otherwise.
func (u unit) scale(v float64) float64 {
	if m := u.millis(); m != 0 {
		return v * m
	}
	return v
}
