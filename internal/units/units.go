// Package units provides shared constants and validation for distance units
package units

// Unit constants
const (
	KM = "km"
	NM = "nm"
	MI = "mi"
)

// ValidUnits contains all valid unit values
var ValidUnits = []string{KM, NM, MI}

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// GetValidUnitsString returns a comma-separated string of valid units for error messages
func GetValidUnitsString() string {
	return "km, nm, mi"
}

// ConvertDistance converts a distance from kilometers to the target units
// Database stores distances in kilometers
func ConvertDistance(distanceKm float64, targetUnits string) float64 {
	switch targetUnits {
	case NM:
		return distanceKm / 1.852 // km to nautical miles
	case MI:
		return distanceKm * 0.621371 // km to statute miles
	case KM:
		return distanceKm // no conversion needed
	default:
		return distanceKm // default to km if unknown unit
	}
}
