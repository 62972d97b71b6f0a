package core

// GradeLetters is the closed set of letter grades, best first.
var GradeLetters = []string{"A+", "A", "A-", "B+", "B", "B-", "C+", "C", "C-", "D", "F"}

var gradePoints = map[string]float64{
	"A+": 4.0,
	"A":  4.0,
	"A-": 3.7,
	"B+": 3.3,
	"B":  3.0,
	"B-": 2.7,
	"C+": 2.3,
	"C":  2.0,
	"C-": 1.7,
	"D":  1.0,
	"F":  0.0,
}

// GradePoint returns the grade point for a canonical letter grade.
func GradePoint(letter string) (float64, bool) {
	p, ok := gradePoints[letter]
	return p, ok
}

// GradePointDerivation derives field from a coerced letter grade.
func GradePointDerivation(field string) *Derivation {
	return &Derivation{
		Field: field,
		Fn: func(v any) any {
			letter, _ := v.(string)
			if p, ok := GradePoint(letter); ok {
				return p
			}
			return nil
		},
	}
}
