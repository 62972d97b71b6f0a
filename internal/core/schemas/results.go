package schemas

import (
	"github.com/JonMunkholm/acadimport/internal/core"
)

// ResultsKind is the bulk exam results upload.
const ResultsKind = "results"

func init() {
	registerResults()
}

func registerResults() {
	core.Register(&core.TargetSchema{
		Kind:            ResultsKind,
		Label:           "Exam Results",
		IdentifierField: "studentNo",
		Fields: []core.FieldSpec{
			{
				Name:     "studentNo",
				Label:    "Student Number",
				Required: true,
				Aliases:  []string{"student", "regno", "registration", "rollno", "admission", "matric", "index", "id", "number"},
				Excludes: []string{"name"},
				Rule:     core.Identifier(2),
			},
			{
				Name:    "marks",
				Label:   "Marks",
				Aliases: []string{"mark", "score", "total"},
				Rule:    core.IntegerInRange(0, 100).Optional(),
			},
			{
				Name:     "grade",
				Label:    "Grade",
				Aliases:  []string{"grade", "letter"},
				Excludes: []string{"point"},
				Rule:     core.EnumeratedGrade(core.GradeLetters).Optional(),
				Derive:   core.GradePointDerivation("gradePoint"),
			},
			{
				Name:    "remarks",
				Label:   "Remarks",
				Aliases: []string{"remark", "comment", "note"},
				Rule:    core.OptionalText(500),
			},
		},
		RowRules: []core.RowRule{
			core.AtLeastOneOf("marks", "grade"),
		},
		Context: []core.ContextField{
			{Name: "subjectId", Label: "Subject", Required: true},
			{Name: "examType", Label: "Exam Type", Required: true},
		},
		SampleRows: [][]string{
			{"S1001", "78", "B+", ""},
			{"S1002", "", "A", "Resit"},
		},
	})
}
