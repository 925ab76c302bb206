package query

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/ziadkadry99/receipt-rag/internal/vectordb"
)

// Metadata keys the default extractors constrain.
const (
	DateKey     = "date"
	MerchantKey = "merchant"
)

// Extraction is what an Extractor recognised in a question.
type Extraction struct {
	Conditions []vectordb.Condition
	// AmbiguousDate is set when a date was found but its year was not
	// written out.
	AmbiguousDate bool
}

// Extractor turns part of a question into metadata conditions. Extractors
// run independently and their conditions are ANDed.
type Extractor interface {
	Extract(question string) Extraction
}

// DefaultExtractors returns the date and merchant extractors.
func DefaultExtractors(now func() time.Time) []Extractor {
	return []Extractor{
		DateExtractor{Key: DateKey, Now: now},
		MerchantExtractor{Key: MerchantKey},
	}
}

var (
	isoDateRe    = regexp.MustCompile(`\b(\d{4})-(\d{1,2})-(\d{1,2})\b`)
	monthDateRe  = regexp.MustCompile(`(?i)\b(january|jan|february|feb|march|mar|april|apr|may|june|jun|july|jul|august|aug|september|sept|sep|october|oct|november|nov|december|dec)\.?\s+(\d{1,2})(?:st|nd|rd|th)?(?:,?\s+(\d{4}))?\b`)
	koFullDateRe = regexp.MustCompile(`(\d{4})\s*년\s*(\d{1,2})\s*월\s*(\d{1,2})\s*일`)
	koDateRe     = regexp.MustCompile(`(\d{1,2})\s*월\s*(\d{1,2})\s*일`)
)

var months = map[string]time.Month{
	"january": time.January, "jan": time.January,
	"february": time.February, "feb": time.February,
	"march": time.March, "mar": time.March,
	"april": time.April, "apr": time.April,
	"may": time.May,
	"june": time.June, "jun": time.June,
	"july": time.July, "jul": time.July,
	"august": time.August, "aug": time.August,
	"september": time.September, "sept": time.September, "sep": time.September,
	"october": time.October, "oct": time.October,
	"november": time.November, "nov": time.November,
	"december": time.December, "dec": time.December,
}

// ParseDate finds the first date in question and normalizes it to
// YYYY-MM-DD. A date written without a year takes the year of now and is
// reported as ambiguous.
func ParseDate(question string, now time.Time) (date string, ambiguous, ok bool) {
	if m := isoDateRe.FindStringSubmatch(question); m != nil {
		if d, ok := normalizeDate(m[1], monthNumber(m[2]), m[3]); ok {
			return d, false, true
		}
	}
	if m := monthDateRe.FindStringSubmatch(question); m != nil {
		year, ambiguous := m[3], false
		if year == "" {
			year, ambiguous = strconv.Itoa(now.Year()), true
		}
		if d, ok := normalizeDate(year, months[strings.ToLower(m[1])], m[2]); ok {
			return d, ambiguous, true
		}
	}
	if m := koFullDateRe.FindStringSubmatch(question); m != nil {
		if d, ok := normalizeDate(m[1], monthNumber(m[2]), m[3]); ok {
			return d, false, true
		}
	}
	if m := koDateRe.FindStringSubmatch(question); m != nil {
		if d, ok := normalizeDate(strconv.Itoa(now.Year()), monthNumber(m[1]), m[2]); ok {
			return d, true, true
		}
	}
	return "", false, false
}

func monthNumber(s string) time.Month {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return time.Month(n)
}

// normalizeDate rejects impossible dates such as February 30.
func normalizeDate(year string, month time.Month, day string) (string, bool) {
	y, err := strconv.Atoi(year)
	if err != nil {
		return "", false
	}
	d, err := strconv.Atoi(day)
	if err != nil || month < time.January || month > time.December || d < 1 {
		return "", false
	}
	t := time.Date(y, month, d, 0, 0, 0, 0, time.UTC)
	if t.Month() != month || t.Day() != d {
		return "", false
	}
	return fmt.Sprintf("%04d-%02d-%02d", y, int(month), d), true
}

// DateExtractor constrains Key to the date named in a question.
type DateExtractor struct {
	Key string
	Now func() time.Time
}

func (e DateExtractor) Extract(question string) Extraction {
	now := time.Now
	if e.Now != nil {
		now = e.Now
	}
	date, ambiguous, ok := ParseDate(question, now())
	if !ok {
		return Extraction{}
	}
	return Extraction{
		Conditions:    []vectordb.Condition{{Key: e.Key, Op: vectordb.OpEq, Value: date}},
		AmbiguousDate: ambiguous,
	}
}

var (
	merchantPrepRe = regexp.MustCompile(`(?i)\b(?:at|from)\s+(.+?)\s*(?:\b(?:on|in|at|from|during|for|last|this|since|before|after)\b|\?|$)`)
	merchantNounRe = regexp.MustCompile(`(?i)\b((?:[\p{L}\p{N}&'.-]+\s+){1,3})(?:receipts?|purchases?|transactions?)\b`)
)

// merchantStopWords never start or make up a merchant name.
var merchantStopWords = map[string]bool{
	"show": true, "me": true, "find": true, "all": true, "my": true, "the": true,
	"list": true, "get": true, "give": true, "see": true, "your": true, "our": true,
	"any": true, "some": true, "recent": true, "every": true, "of": true,
	"these": true, "those": true, "i": true, "did": true, "what": true,
	"which": true, "how": true, "many": true, "much": true, "a": true, "an": true,
	"this": true, "that": true, "last": true, "next": true, "total": true,
	"today": true, "yesterday": true, "week": true, "month": true, "year": true,
	"general": true, "store": true, "stores": true,
}

// ExtractMerchant returns the merchant named in question, title-cased.
// It recognises "at X", "from X" and "X receipts/purchases/transactions".
// "in X" names places and categories as often as stores, so it is not a
// trigger. It never guesses: no match means no merchant.
func ExtractMerchant(question string) (string, bool) {
	for start := 0; start < len(question); {
		m := merchantPrepRe.FindStringSubmatchIndex(question[start:])
		if m == nil {
			break
		}
		if name, ok := cleanMerchant(strings.Fields(question[start+m[2] : start+m[3]])); ok {
			return name, true
		}
		start += m[3]
	}

	for _, m := range merchantNounRe.FindAllStringSubmatch(question, -1) {
		words := strings.Fields(m[1])
		i := len(words)
		for i > 0 && !merchantStopWords[strings.ToLower(words[i-1])] {
			i--
		}
		if name, ok := cleanMerchant(words[i:]); ok {
			return name, true
		}
	}
	return "", false
}

func cleanMerchant(words []string) (string, bool) {
	for len(words) > 0 && merchantStopWords[strings.ToLower(words[0])] {
		words = words[1:]
	}
	if len(words) == 0 {
		return "", false
	}
	first := strings.ToLower(strings.TrimRight(words[0], "."))
	if _, isMonth := months[first]; isMonth {
		return "", false
	}
	if r, _ := utf8.DecodeRuneInString(first); unicode.IsDigit(r) {
		return "", false
	}
	for i, w := range words {
		words[i] = titleWord(w)
	}
	return strings.Join(words, " "), true
}

func titleWord(w string) string {
	r, size := utf8.DecodeRuneInString(w)
	return string(unicode.ToUpper(r)) + strings.ToLower(w[size:])
}

// MerchantExtractor constrains Key to contain the merchant named in a
// question. Containment lets "Costco" match "Costco Wholesale".
type MerchantExtractor struct {
	Key string
}

func (e MerchantExtractor) Extract(question string) Extraction {
	name, ok := ExtractMerchant(question)
	if !ok {
		return Extraction{}
	}
	return Extraction{Conditions: []vectordb.Condition{{Key: e.Key, Op: vectordb.OpContains, Value: name}}}
}
