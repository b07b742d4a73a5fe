package classifier

import (
	"regexp"
	"strconv"
	"strings"
)

type numberForm struct {
	pattern *regexp.Regexp
	parse   func(string) (float64, error)
}

var numberForms = []numberForm{
	// plain decimals: 150, 99.5
	{
		pattern: regexp.MustCompile(`\b\d+(?:\.\d+)?\b`),
		parse: func(s string) (float64, error) {
			return strconv.ParseFloat(s, 64)
		},
	},
	// comma decimals: 150,5
	{
		pattern: regexp.MustCompile(`\b\d+,\d+\b`),
		parse: func(s string) (float64, error) {
			return strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
		},
	},
	// space grouped integers: 12 000
	{
		pattern: regexp.MustCompile(`\b\d+(?:\s+\d+)+\b`),
		parse: func(s string) (float64, error) {
			return strconv.ParseFloat(strings.ReplaceAll(s, " ", ""), 64)
		},
	},
}

// ContainsLargeNumber reports whether text holds any number strictly above threshold.
// Candidates that fail to parse are skipped.
func ContainsLargeNumber(text string, threshold float64) bool {
	if text == "" {
		return false
	}

	for _, form := range numberForms {
		for _, candidate := range form.pattern.FindAllString(text, -1) {
			value, err := form.parse(candidate)
			if err != nil {
				continue
			}
			if value > threshold {
				return true
			}
		}
	}
	return false
}
