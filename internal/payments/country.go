package payments

import (
	"fmt"
	"strings"
)

const defaultCountryCode = "TH"

var countryNames = map[string]string{
	"thailand":      "TH",
	"united states": "US",
	"singapore":     "SG",
}

// CountryCode maps a stored country name to the ISO 3166 alpha-2 code PayPal expects.
func CountryCode(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return defaultCountryCode, nil
	}
	if code, ok := countryNames[strings.ToLower(trimmed)]; ok {
		return code, nil
	}
	if len(trimmed) == 2 && isASCIILetters(trimmed) {
		return strings.ToUpper(trimmed), nil
	}
	return "", fmt.Errorf("unknown country %q", name)
}

func isASCIILetters(s string) bool {
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return false
		}
	}
	return true
}
