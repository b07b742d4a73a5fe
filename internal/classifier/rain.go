package classifier

import (
	stderrors "errors"
	"regexp"
	"strconv"
	"strings"

	"rainrelay/internal/errors"

	"github.com/PuerkitoBio/goquery"
)

const (
	rainTippedMarker = "tipped"
	rainIntoMarker   = "into the rain"
	amountSelector   = "span.font-weight-bold"
)

var (
	amountPattern = regexp.MustCompile(`^[0-9,.]+$`)

	errNoAmount = stderrors.New("no bold amount span in rain markup")
)

// IsRainAnnouncement reports whether the markup around a message is a rain tip.
func IsRainAnnouncement(markup string) bool {
	return strings.Contains(markup, rainTippedMarker) && strings.Contains(markup, rainIntoMarker)
}

// ExtractRainAmount returns the value of the first bold numeric span in markup.
// The feed renders decimals with a comma, so ',' is read as the decimal point.
func ExtractRainAmount(markup string) (float64, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return 0, errors.NewAmbiguousAmountError("", err)
	}

	raw := ""
	doc.Find(amountSelector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := strings.TrimSpace(s.Text())
		if amountPattern.MatchString(text) {
			raw = text
			return false
		}
		return true
	})
	if raw == "" {
		return 0, errors.NewAmbiguousAmountError("", errNoAmount)
	}

	amount, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", "."), 64)
	if err != nil {
		return 0, errors.NewAmbiguousAmountError(raw, err)
	}
	return amount, nil
}
