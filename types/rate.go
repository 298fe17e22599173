package types

import "fmt"

// BasisPointsPerUnit is the number of basis points in 100%.
const BasisPointsPerUnit = 10000

// BasisPoints expresses a percentage in hundredths of a percent, so 1000 is
// 10% and 950 is 9.5%. Percentages never pass through floating point.
type BasisPoints int64

// Percent converts a whole percentage into basis points.
func Percent(p int64) BasisPoints { return BasisPoints(p * 100) }

// String renders the rate as a percentage, e.g. "9.5%" or "-0.5%".
func (b BasisPoints) String() string {
	sign := ""
	v := int64(b)
	if v < 0 {
		sign = "-"
		v = -v
	}
	whole, frac := v/100, v%100
	switch {
	case frac == 0:
		return fmt.Sprintf("%s%d%%", sign, whole)
	case frac%10 == 0:
		return fmt.Sprintf("%s%d.%d%%", sign, whole, frac/10)
	default:
		return fmt.Sprintf("%s%d.%02d%%", sign, whole, frac)
	}
}
