package auth

import (
	"strings"
	"unicode/utf8"

	"github.com/cooarq/cooarq-portal/internal/i18n"
)

// MinPasswordScore is the lowest strength accepted for new passwords.
const MinPasswordScore = 3

// MeterSegments is the number of bars in the strength meter.
const MeterSegments = 5

const passwordSymbols = `!@#$%^&*(),.?":{}|<>`

// Criterion is one strength rule.
type Criterion string

// Criteria in the order they are scored and reported.
const (
	CriterionLength Criterion = "length"
	CriterionLower  Criterion = "lower"
	CriterionUpper  Criterion = "upper"
	CriterionDigit  Criterion = "digit"
	CriterionSymbol Criterion = "symbol"
)

var criteria = []struct {
	name  Criterion
	check func(string) bool
}{
	{CriterionLength, func(p string) bool { return utf8.RuneCountInString(p) >= 8 }},
	{CriterionLower, func(p string) bool { return strings.IndexFunc(p, isASCIILower) >= 0 }},
	{CriterionUpper, func(p string) bool { return strings.IndexFunc(p, isASCIIUpper) >= 0 }},
	{CriterionDigit, func(p string) bool { return strings.IndexFunc(p, isASCIIDigit) >= 0 }},
	{CriterionSymbol, func(p string) bool { return strings.ContainsAny(p, passwordSymbols) }},
}

func isASCIILower(r rune) bool { return r >= 'a' && r <= 'z' }
func isASCIIUpper(r rune) bool { return r >= 'A' && r <= 'Z' }
func isASCIIDigit(r rune) bool { return r >= '0' && r <= '9' }

// Strength is the scored result for a password.
type Strength struct {
	Score   int         `json:"score"`
	Missing []Criterion `json:"missing"`
}

// ScorePassword awards one point per satisfied criterion.
func ScorePassword(password string) Strength {
	s := Strength{Missing: []Criterion{}}
	for _, c := range criteria {
		if c.check(password) {
			s.Score++
		} else {
			s.Missing = append(s.Missing, c.name)
		}
	}
	return s
}

// Acceptable reports whether the password may be used for a new account or
// a reset.
func (s Strength) Acceptable() bool {
	return s.Score >= MinPasswordScore
}

// Tier is the colour class of the label: red below 2, orange at 2, yellow at
// 3 and green from 4.
func (s Strength) Tier() string {
	switch {
	case s.Score >= 4:
		return "strong"
	case s.Score == 3:
		return "fair"
	case s.Score == 2:
		return "weak"
	default:
		return "very-weak"
	}
}

// Meter describes the five bars: the first Score bars are lit in the
// colour of the score.
type Meter struct {
	Score    int    `json:"score"`
	Tier     string `json:"tier"`
	Label    string `json:"label"`
	Hint     string `json:"hint,omitempty"`
	Segments []bool `json:"segments"`
}

// Meter renders s for display.
func (s Strength) Meter(loc *i18n.Localizer) Meter {
	m := Meter{
		Score:    s.Score,
		Tier:     s.Tier(),
		Segments: make([]bool, MeterSegments),
	}
	for i := 0; i < s.Score && i < MeterSegments; i++ {
		m.Segments[i] = true
	}
	if s.Score == 0 {
		m.Label = loc.T("strength.empty")
	} else {
		m.Label = loc.T(labelKeys[s.Score-1])
	}
	if len(s.Missing) > 0 {
		names := make([]string, len(s.Missing))
		for i, c := range s.Missing {
			names[i] = loc.T("strength.criterion." + string(c))
		}
		m.Hint = loc.T("strength.missing", strings.Join(names, ", "))
	}
	return m
}

var labelKeys = [MeterSegments]string{
	"strength.label.1",
	"strength.label.2",
	"strength.label.3",
	"strength.label.4",
	"strength.label.5",
}
