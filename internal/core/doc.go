// Package core provides the business logic for spreadsheet import operations.
//
// This package holds the domain logic independent of any transport or file
// format. It can be used by the HTTP server, the importcheck CLI, or tests
// without modification.
//
// # Pipeline
//
// An upload flows through five stages, each usable on its own:
//
//   - [Coerce]: one raw cell to a typed value under a [CellRule]
//   - [Classify]: an arbitrary header row to a [ColumnMapping]
//   - [Normalize]: one data row to a [NormalizedRow] with every error listed
//   - [BatchValidator]: a whole [RawTable] to accepted and rejected rows
//   - [ImportSession]: preview, selection, batch context and submission
//
// # Import Kinds
//
// Kinds are registered at init time using [Register]. Each [TargetSchema]
// lists its fields with the header aliases used to find them:
//
//	core.Register(&core.TargetSchema{
//	    Kind:            "results",
//	    IdentifierField: "studentNo",
//	    Fields: []core.FieldSpec{
//	        {Name: "studentNo", Label: "Student Number", Required: true,
//	            Aliases: []string{"student", "regno"}, Rule: core.Identifier(2)},
//	        {Name: "marks", Label: "Marks", Rule: core.IntegerInRange(0, 100).Optional()},
//	    },
//	})
//
// # Collaborators
//
// File parsing and record creation live behind [TableParser] and
// [BatchCreator]; see the spreadsheet and backend packages.
//
// # Error Handling
//
// Fatal problems are sentinel errors wrapped with %w. Row problems are
// strings on [NormalizedRow] and never abort a batch. [MapError] turns any
// error into a coded [UserMessage]:
//
//   - FILE001-FILE004: file errors (size, unreadable, empty, missing)
//   - VAL001-VAL005: validation errors (columns, rows, duplicates, limits)
//   - SUB001-SUB005: submission and reference data errors
//   - SES001-SES004: session errors
package core
