package domain

import "math"

// PH computes pH from a hydrogen ion concentration in mol/L.
func PH(hConcentration float64) float64 {
	return -math.Log10(hConcentration)
}

// Concentration computes molar concentration in mol/L.
func Concentration(moles, volumeL float64) float64 {
	return moles / volumeL
}

// Yield computes the percentage yield of actual against theoretical output.
func Yield(actual, theoretical float64) float64 {
	return actual / theoretical * 100
}

// Purity computes the percentage purity of the measured mass against the
// theoretical mass.
func Purity(realMass, theoreticalMass float64) float64 {
	return realMass / theoreticalMass * 100
}

// EvaluateMeasurement checks a value against its expected range and computes
// the percentage deviation from the range midpoint. When the midpoint is
// zero the deviation is undefined and defined is false.
func EvaluateMeasurement(value float64, expected Range) (valid bool, deviation float64, defined bool) {
	valid = expected.Contains(value)
	mid := expected.Midpoint()
	if mid == 0 {
		return valid, 0, false
	}
	return valid, (value - mid) / mid * 100, true
}
