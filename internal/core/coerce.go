package core

// coerce.go converts one raw cell into a typed value.
//
// Each rule trims and cleans the cell first, then:
//  1. Blank input is nil on optional rules and "Missing <label>" on required ones
//  2. Non-blank input is checked and converted to the rule's output type
//
// Coercion is pure: no shared state and no side effects, so rows can be
// normalized in any order.

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

var identifierRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_\-/.]*$`)

const (
	minPhoneDigits = 7
	maxPhoneDigits = 15
)

// ValidationError represents a single coercion failure for a cell.
type ValidationError struct {
	Field   string // Label of the field
	Value   string // The cleaned input
	Message string // Operator-facing message, already includes the label
}

func (e ValidationError) Error() string {
	return e.Message
}

func invalid(label, value, format string, args ...any) error {
	return ValidationError{Field: label, Value: value, Message: fmt.Sprintf(format, args...)}
}

// RequiredText accepts any text of at least minLen characters.
func RequiredText(minLen int) CellRule {
	return CellRule{Kind: RuleText, MinLen: minLen}
}

// OptionalText accepts blank or text of at most maxLen characters.
// A maxLen of 0 leaves the length unbounded.
func OptionalText(maxLen int) CellRule {
	return CellRule{Kind: RuleText, MaxLen: maxLen, AllowBlank: true}
}

// Email accepts an address and lower-cases it.
func Email() CellRule {
	return CellRule{Kind: RuleEmail}
}

// PhoneDigitsAndSeparators accepts digits plus "+-.() " with 7 to 15 digits.
func PhoneDigitsAndSeparators() CellRule {
	return CellRule{Kind: RulePhone, AllowBlank: true}
}

// Identifier accepts letters, digits and "-_/." with no inner whitespace.
func Identifier(minLen int) CellRule {
	return CellRule{Kind: RuleIdentifier, MinLen: minLen}
}

// IntegerInRange accepts whole numbers between min and max inclusive.
func IntegerInRange(min, max int) CellRule {
	return CellRule{Kind: RuleInteger, Min: min, Max: max}
}

// EnumeratedGrade accepts one of the given letters, case-insensitively.
func EnumeratedGrade(allowed []string) CellRule {
	return CellRule{Kind: RuleGrade, Allowed: allowed}
}

// Optional returns a copy of the rule that accepts blank cells.
func (r CellRule) Optional() CellRule {
	r.AllowBlank = true
	return r
}

// Required returns a copy of the rule that rejects blank cells.
func (r CellRule) Required() CellRule {
	r.AllowBlank = false
	return r
}

// Coerce validates raw against rule and returns the typed value.
// Blank optional cells return nil, nil. Errors carry the label.
func Coerce(raw CellValue, rule CellRule, label string) (any, error) {
	text := CellText(raw)
	if text == "" {
		if !rule.AllowBlank {
			return nil, invalid(label, "", "Missing %s", label)
		}
		return nil, nil
	}

	switch rule.Kind {
	case RuleText:
		return coerceText(text, rule, label)
	case RuleEmail:
		if err := validate.Var(text, "email"); err != nil {
			return nil, invalid(label, text, "%s is not a valid email address, got %q", label, text)
		}
		return strings.ToLower(text), nil
	case RulePhone:
		return coercePhone(text, label)
	case RuleIdentifier:
		if !identifierRegex.MatchString(text) || utf8.RuneCountInString(text) < rule.MinLen {
			return nil, invalid(label, text,
				"%s must be at least %d letters, digits or -_/. with no spaces, got %q", label, max(rule.MinLen, 1), text)
		}
		return text, nil
	case RuleInteger:
		n, ok := parseWholeNumber(raw, text)
		if !ok {
			return nil, invalid(label, text, "%s must be a whole number, got %q", label, text)
		}
		if n < rule.Min || n > rule.Max {
			return nil, invalid(label, text, "%s must be between %d and %d, got %q", label, rule.Min, rule.Max, text)
		}
		return n, nil
	case RuleGrade:
		for _, g := range rule.Allowed {
			if strings.EqualFold(g, text) {
				return g, nil
			}
		}
		return nil, invalid(label, text, "Invalid %s %q, expected one of %s", label, text, strings.Join(rule.Allowed, ", "))
	default:
		return nil, fmt.Errorf("unknown rule kind %d for %s", rule.Kind, label)
	}
}

func coerceText(text string, rule CellRule, label string) (any, error) {
	n := utf8.RuneCountInString(text)
	if rule.MinLen > 0 && n < rule.MinLen {
		return nil, invalid(label, text, "%s must be at least %d characters, got %q", label, rule.MinLen, text)
	}
	if rule.MaxLen > 0 && n > rule.MaxLen {
		return nil, invalid(label, text, "%s must be at most %d characters", label, rule.MaxLen)
	}
	return text, nil
}

func coercePhone(text, label string) (any, error) {
	digits := 0
	for _, r := range text {
		switch {
		case unicode.IsDigit(r):
			digits++
		case strings.ContainsRune("+-.() ", r):
		default:
			return nil, invalid(label, text, "%s may only contain digits, spaces and + - . ( ), got %q", label, text)
		}
	}
	if digits < minPhoneDigits || digits > maxPhoneDigits {
		return nil, invalid(label, text, "%s must have %d to %d digits, got %q", label, minPhoneDigits, maxPhoneDigits, text)
	}
	return text, nil
}
