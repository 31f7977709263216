package points

// Classification is the conduct grade derived from a point total.
type Classification string

const (
	Weak      Classification = "Yếu"
	Average   Classification = "Trung bình"
	Good      Classification = "Khá"
	Excellent Classification = "Xuất sắc"
)

var thresholds = []struct {
	min   float64
	grade Classification
}{
	{80, Excellent},
	{60, Good},
	{40, Average},
}

// Classify grades total. Each threshold is inclusive.
func Classify(total float64) Classification {
	for _, t := range thresholds {
		if total >= t.min {
			return t.grade
		}
	}
	return Weak
}
