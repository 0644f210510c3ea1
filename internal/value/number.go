package value

import (
	"math"
	"strconv"
)

// FormatNumber renders a number the way print shows it: at most six
// significant digits, trailing zeros dropped, exponent form for very large or
// very small magnitudes.
func FormatNumber(n float64) string {
	switch {
	case math.IsNaN(n):
		return "nan"
	case math.IsInf(n, 1):
		return "inf"
	case math.IsInf(n, -1):
		return "-inf"
	}
	return strconv.FormatFloat(n, 'g', 6, 64)
}
