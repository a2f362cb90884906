package decoder

import (
	"strconv"
	"strings"

	"github.com/NepsyCrawler/internal/domain"
)

var numberCleaner = strings.NewReplacer(",", "", "%", "", " ", "", "\u00a0", "")

// parseFloat accepts "1,234.50", "-2.1 %" and treats blanks as zero.
func parseFloat(field, raw string) (float64, error) {
	s := numberCleaner.Replace(strings.TrimSpace(raw))
	if s == "" || s == "-" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, &domain.ParseError{Field: field, Value: raw, Err: err}
	}
	return f, nil
}

// parseInt tolerates a fractional part (quantities are sometimes served as "100.00").
func parseInt(field, raw string) (int64, error) {
	f, err := parseFloat(field, raw)
	if err != nil {
		return 0, err
	}
	return int64(f), nil
}

// floats parses every named field of raw into out, stopping on the first failure.
func floats(raw domain.RawRow, fields map[string]*float64) error {
	for name, dst := range fields {
		v, err := parseFloat(name, raw[name])
		if err != nil {
			return err
		}
		*dst = v
	}
	return nil
}

func required(field string, raw domain.RawRow) (string, error) {
	v := strings.TrimSpace(raw[field])
	if v == "" {
		return "", &domain.ParseError{Field: field, Value: v}
	}
	return v, nil
}
