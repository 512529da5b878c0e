// Package normalize holds locale-specific parsing for Czech grant pages:
// dates like "9. 1. 2026", amounts like "1,5 mil. Kč", plus text cleanup.
package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// czechMonths maps Czech month names (nominative and genitive) to month numbers
var czechMonths = map[string]time.Month{
	"ledna": 1, "leden": 1,
	"února": 2, "únor": 2,
	"března": 3, "březen": 3,
	"dubna": 4, "duben": 4,
	"května": 5, "květen": 5,
	"června": 6, "červen": 6,
	"července": 7, "červenec": 7,
	"srpna": 8, "srpen": 8,
	"září": 9,
	"října": 10, "říjen": 10,
	"listopadu": 11, "listopad": 11,
	"prosince": 12, "prosinec": 12,
}

var (
	numericDateRe   = regexp.MustCompile(`(\d{1,2})\.\s*(\d{1,2})\.\s*(\d{4})`)
	monthNameDateRe = regexp.MustCompile(`(\d{1,2})\.\s*([\p{L}]+)\s+(\d{4})`)
	isoDateRe       = regexp.MustCompile(`(\d{4})-(\d{2})-(\d{2})`)

	whitespaceRe = regexp.MustCompile(`\s+`)
	emailRe      = regexp.MustCompile(`[\w.\-]+@[\w.\-]+\.\w+`)

	phoneRes = []*regexp.Regexp{
		regexp.MustCompile(`\+420\s*\d{3}\s*\d{3}\s*\d{3}`),
		regexp.MustCompile(`\d{3}\s*\d{3}\s*\d{3}`),
	}

	mldAmountRe = regexp.MustCompile(`([\d\s,.]+)\s*(?:mld|miliard)`)
	milAmountRe = regexp.MustCompile(`([\d\s,.]+)\s*mil`)
	tisAmountRe = regexp.MustCompile(`([\d\s,.]+)\s*tis`)
	digitsRe    = regexp.MustCompile(`[^\d]`)

	// "5 000 – 10 000 Kč" style explicit range
	amountRangeRe = regexp.MustCompile(`(?i)([\d][\d\s,.]*)\s*[–—-]\s*([\d][\d\s,.]*)\s*(kč|czk|eur|€)`)
)

// ParseCzechDate parses Czech ("30. 4. 2026", "1. ledna 2026") and ISO
// ("2026-04-30") date forms found anywhere in text. Returns zero time when
// no valid date is present.
func ParseCzechDate(text string) (time.Time, bool) {
	if text == "" {
		return time.Time{}, false
	}
	text = strings.TrimSpace(text)

	if m := numericDateRe.FindStringSubmatch(text); m != nil {
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		if t, ok := makeDate(year, time.Month(month), day); ok {
			return t, true
		}
	}

	if m := monthNameDateRe.FindStringSubmatch(text); m != nil {
		day, _ := strconv.Atoi(m[1])
		year, _ := strconv.Atoi(m[3])
		if month, ok := czechMonths[strings.ToLower(m[2])]; ok {
			if t, ok := makeDate(year, month, day); ok {
				return t, true
			}
		}
	}

	if m := isoDateRe.FindStringSubmatch(text); m != nil {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		day, _ := strconv.Atoi(m[3])
		if t, ok := makeDate(year, time.Month(month), day); ok {
			return t, true
		}
	}

	return time.Time{}, false
}

// makeDate builds a UTC date, rejecting out-of-range components
func makeDate(year int, month time.Month, day int) (time.Time, bool) {
	if month < 1 || month > 12 || day < 1 || day > 31 || year < 1900 || year > 2200 {
		return time.Time{}, false
	}
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	// time.Date normalizes overflow; reject dates like 31.2.
	if t.Day() != day || t.Month() != month {
		return time.Time{}, false
	}
	return t, true
}

// ParseCzechAmount parses a Czech currency amount into whole CZK.
//
//	"1 000 000 Kč" -> 1000000
//	"1,5 mil. Kč"  -> 1500000
//	"2,3 mld. Kč"  -> 2300000000
//	"500 tis."     -> 500000
func ParseCzechAmount(text string) (int64, bool) {
	if text == "" {
		return 0, false
	}

	original := strings.TrimSpace(text)
	original = strings.ReplaceAll(original, " ", " ")
	lower := strings.ToLower(original)

	if strings.Contains(lower, "mld") || strings.Contains(lower, "miliard") {
		return scaledAmount(mldAmountRe, lower, 1_000_000_000)
	}
	if strings.Contains(lower, "mil") {
		return scaledAmount(milAmountRe, lower, 1_000_000)
	}
	if strings.Contains(lower, "tis") {
		return scaledAmount(tisAmountRe, lower, 1_000)
	}

	// Plain number: strip currency suffixes and keep digits
	cleaned := lower
	for _, suffix := range []string{"kč", "kc", "czk"} {
		cleaned = strings.ReplaceAll(cleaned, suffix, "")
	}
	digits := digitsRe.ReplaceAllString(cleaned, "")
	if digits == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// scaledAmount extracts the number before a magnitude keyword and scales it
func scaledAmount(re *regexp.Regexp, lower string, scale float64) (int64, bool) {
	m := re.FindStringSubmatch(lower)
	if m == nil {
		return 0, false
	}
	numStr := strings.ReplaceAll(m[1], " ", "")
	numStr = strings.ReplaceAll(numStr, ",", ".")
	numStr = strings.TrimRight(numStr, ".")
	f, err := strconv.ParseFloat(numStr, 64)
	if err != nil {
		return 0, false
	}
	return int64(f * scale), true
}

// ExtractAmountByKeywords finds an amount written near any of the given
// keywords, e.g. "maximální částka: 5 mil. Kč".
func ExtractAmountByKeywords(text string, keywords []string) (int64, bool) {
	lower := strings.ToLower(strings.ReplaceAll(text, " ", " "))

	for _, keyword := range keywords {
		re, err := regexp.Compile(regexp.QuoteMeta(strings.ToLower(keyword)) +
			`[^0-9]*?([\d][\d\s,.]*\s*(?:mil\.?|mld\.?|tis\.?|kč|kc|czk)?)`)
		if err != nil {
			continue
		}
		if m := re.FindStringSubmatch(lower); m != nil {
			if amount, ok := ParseCzechAmount(m[1]); ok && amount > 0 {
				return amount, true
			}
		}
	}
	return 0, false
}

// FundingAmounts holds amounts scanned from free text
type FundingAmounts struct {
	Min      int64
	Max      int64
	Total    int64
	Currency string
}

var (
	minKeywords = []string{
		"minimální částka", "minimalni castka", "minimum", "nejméně", "nejmene", "od částky",
	}
	maxKeywords = []string{
		"maximální částka", "maximalni castka", "maximum", "nejvýše", "nejvyse", "až do", "az do", "do částky",
	}
	totalKeywords = []string{
		"celková alokace", "celkova alokace", "celkový rozpočet", "celkovy rozpocet",
		"alokace", "rozpočet", "rozpocet",
	}
)

// ExtractFundingAmounts scans text for min/max/total funding expressions plus
// an explicit "X–Y Kč" range, and infers the currency from token counts.
func ExtractFundingAmounts(text string) FundingAmounts {
	amounts := FundingAmounts{Currency: InferCurrency(text)}

	if v, ok := ExtractAmountByKeywords(text, minKeywords); ok {
		amounts.Min = v
	}
	if v, ok := ExtractAmountByKeywords(text, maxKeywords); ok {
		amounts.Max = v
	}
	if v, ok := ExtractAmountByKeywords(text, totalKeywords); ok {
		amounts.Total = v
	}

	// Explicit range fills whatever the keyword scan missed
	if amounts.Min == 0 || amounts.Max == 0 {
		if m := amountRangeRe.FindStringSubmatch(text); m != nil {
			lo, okLo := ParseCzechAmount(m[1])
			hi, okHi := ParseCzechAmount(m[2])
			if okLo && okHi && lo <= hi {
				if amounts.Min == 0 {
					amounts.Min = lo
				}
				if amounts.Max == 0 {
					amounts.Max = hi
				}
			}
		}
	}

	return amounts
}

// currencyTokens maps ISO currency codes to the tokens that indicate them
var currencyTokens = map[string][]string{
	"CZK": {"kč", "czk"},
	"EUR": {"eur", "€"},
	"USD": {"usd", "$"},
}

// InferCurrency picks the currency whose tokens occur most often in text.
// Defaults to CZK.
func InferCurrency(text string) string {
	lower := strings.ToLower(text)

	best := "CZK"
	bestCount := 0
	for _, code := range []string{"CZK", "EUR", "USD"} {
		count := 0
		for _, token := range currencyTokens[code] {
			count += strings.Count(lower, token)
		}
		if count > bestCount {
			best = code
			bestCount = count
		}
	}
	return best
}

// NormalizeTitle collapses whitespace and trims a raw title
func NormalizeTitle(title string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(title, " "))
}

var (
	multiSpaceRe    = regexp.MustCompile(`[ \t]+`)
	multiNewlineRe  = regexp.MustCompile(`\n\s*\n`)
	spaceBeforePunc = regexp.MustCompile(`\s+([,.;:!?])`)
)

// CleanupHTMLText tidies text pulled out of HTML: entity leftovers,
// whitespace runs, and spacing around punctuation.
func CleanupHTMLText(text string) string {
	if text == "" {
		return ""
	}

	cleaned := strings.NewReplacer(
		"&nbsp;", " ",
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		" ", " ",
	).Replace(text)

	cleaned = multiSpaceRe.ReplaceAllString(cleaned, " ")
	cleaned = multiNewlineRe.ReplaceAllString(cleaned, "\n\n")
	cleaned = spaceBeforePunc.ReplaceAllString(cleaned, "$1")
	return strings.TrimSpace(cleaned)
}

// ExtractEmail returns the first email address found in text
func ExtractEmail(text string) string {
	return emailRe.FindString(text)
}

// ExtractPhone returns the first Czech phone number found in text,
// with spaces stripped
func ExtractPhone(text string) string {
	for _, re := range phoneRes {
		if m := re.FindString(text); m != "" {
			return strings.ReplaceAll(m, " ", "")
		}
	}
	return ""
}
