package scanning

import (
	"regexp"
	"strconv"
	"strings"
)

// Fields contains the values extracted from a fuel receipt. A nil field means no
// pattern matched.
type Fields struct {
	Amount        *float64 `json:"amount,omitempty"`
	Date          *string  `json:"date,omitempty"`
	Time          *string  `json:"time,omitempty"`
	StationName   *string  `json:"station_name,omitempty"`
	FuelType      *string  `json:"fuel_type,omitempty"`
	Quantity      *float64 `json:"quantity,omitempty"`
	PricePerLiter *float64 `json:"price_per_liter,omitempty"`
}

// rule pairs a pattern with the conversion of its first capture group
type rule[T any] struct {
	pattern *regexp.Regexp
	convert func(string) (T, bool)
}

const (
	number   = `(\d+(?:[.,]\d+)*)`
	currency = `(?:\b(?:kes|kshs?|usd)\b\.?|\$)`
)

var amountRules = []rule[float64]{
	{regexp.MustCompile(`(?i)\btotal\b[ \t:]*` + currency + `?[ \t:]*` + number), parseNumber},
	{regexp.MustCompile(`(?i)\bamount\b[ \t:]*` + currency + `?[ \t:]*` + number), parseNumber},
	{regexp.MustCompile(`(?i)` + currency + `[ \t:]*` + number), parseNumber},
	{regexp.MustCompile(`(?i)` + number + `[ \t]*` + currency), parseNumber},
}

var dateRules = []rule[string]{
	{regexp.MustCompile(`\b(\d{1,2}[/-]\d{1,2}[/-]\d{2,4})\b`), verbatim},
	{regexp.MustCompile(`\b(\d{4}[/-]\d{1,2}[/-]\d{1,2})\b`), verbatim},
}

var timeRules = []rule[string]{
	{regexp.MustCompile(`(?i)\b(\d{1,2}:\d{2}(?::\d{2})?(?:\s?[ap]m)?)\b`), verbatim},
}

var quantityRules = []rule[float64]{
	{regexp.MustCompile(`(?i)` + number + `[ \t]*(?:litres?|liters?|ltrs?|lts?|l)\b`), parseNumber},
	{regexp.MustCompile(`(?i)\bvolume[ \t]*:?[ \t]*` + number), parseNumber},
}

var pricePerLiterRules = []rule[float64]{
	{regexp.MustCompile(`(?i)` + number + `\s*/\s*(?:lit|ltr|l\b)`), parseNumber},
}

// fuelTypes is checked in order; the first contained term wins
var fuelTypes = []string{"diesel", "petrol", "super", "premium", "regular", "vpower", "v-power"}

// stationBrands is checked in order against each of the first stationHeaderLines lines
var stationBrands = []string{
	"shell", "total", "engen", "oilibya", "kenol", "kobil",
	"national oil", "rubis", "libya oil", "hashi", "galana", "fossil",
}

const stationHeaderLines = 5

// ExtractFields parses the recognized receipt text. It has no side effects and
// returns the same Fields for the same text.
func ExtractFields(text string) Fields {
	var f Fields
	if v, ok := firstMatch(text, amountRules); ok {
		f.Amount = &v
	}
	if v, ok := firstMatch(text, dateRules); ok {
		f.Date = &v
	}
	if v, ok := firstMatch(text, timeRules); ok {
		f.Time = &v
	}
	if v, ok := findFuelType(text); ok {
		f.FuelType = &v
	}
	if v, ok := firstMatch(text, quantityRules); ok {
		f.Quantity = &v
	}
	if v, ok := firstMatch(text, pricePerLiterRules); ok {
		f.PricePerLiter = &v
	}
	if v, ok := findStation(text); ok {
		f.StationName = &v
	}
	return f
}

func firstMatch[T any](text string, rules []rule[T]) (T, bool) {
	for _, r := range rules {
		m := r.pattern.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if v, ok := r.convert(m[1]); ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}

// parseNumber treats commas as thousands separators
func parseNumber(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func verbatim(s string) (string, bool) {
	return s, true
}

func findFuelType(text string) (string, bool) {
	lower := strings.ToLower(text)
	for _, fuel := range fuelTypes {
		if strings.Contains(lower, fuel) {
			return capitalize(fuel), true
		}
	}
	return "", false
}

func findStation(text string) (string, bool) {
	seen := 0
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if seen == stationHeaderLines {
			break
		}
		seen++

		lower := strings.ToLower(line)
		for _, brand := range stationBrands {
			if strings.Contains(lower, brand) {
				return titleCase(brand), true
			}
		}
	}
	return "", false
}

// capitalize upper-cases the first letter and lower-cases the rest
func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = capitalize(w)
	}
	return strings.Join(words, " ")
}
