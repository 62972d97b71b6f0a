package schemas

import (
	"strings"

	"github.com/JonMunkholm/acadimport/internal/core"
	"github.com/google/uuid"
)

// AdminsKind is the bulk lecturer and admin import.
const AdminsKind = "admins"

// RandomInitialPassword names the default applied to blank admin passwords.
const RandomInitialPassword = "random-initial-password"

func init() {
	registerAdmins()
}

func registerAdmins() {
	core.Register(&core.TargetSchema{
		Kind:            AdminsKind,
		Label:           "Lecturers & Admins",
		IdentifierField: "lecturerId",
		Fields: []core.FieldSpec{
			{
				Name:     "lecturerId",
				Label:    "Lecturer ID",
				Required: true,
				Aliases:  []string{"lecturerid", "lecturerno", "lecturercode", "staffid", "staffno", "employeeid", "employeeno", "adminid", "id"},
				Rule:     core.Identifier(2),
			},
			{
				Name:     "name",
				Label:    "Full Name",
				Required: true,
				Aliases:  []string{"fullname", "name"},
				Rule:     core.RequiredText(2),
			},
			{
				Name:     "email",
				Label:    "Email",
				Required: true,
				Aliases:  []string{"email", "mail"},
				Rule:     core.Email(),
			},
			{
				Name:    "phone",
				Label:   "Phone",
				Aliases: []string{"phone", "mobile", "tel", "contactno", "contactnumber"},
				Rule:    core.PhoneDigitsAndSeparators(),
			},
			{
				Name:    "password",
				Label:   "Password",
				Aliases: []string{"password", "pass"},
				Rule:    core.OptionalText(64),
				Default: &core.DefaultRule{Name: RandomInitialPassword, Resolve: randomInitialPassword},
			},
		},
		Context: []core.ContextField{
			{Name: "departmentId", Label: "Department", Required: true},
		},
		SampleRows: [][]string{
			{"LEC-001", "Ada Obi", "ada.obi@example.edu", "+234 803 555 0101", ""},
			{"LEC-002", "Tunde Bello", "t.bello@example.edu", "", ""},
		},
	})
}

// randomInitialPassword returns a per-record secret the admin must change on
// first login.
func randomInitialPassword() any {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}
