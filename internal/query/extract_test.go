package query

import (
	"fmt"
	"testing"
	"time"

	"github.com/ziadkadry99/receipt-rag/internal/vectordb"
)

var fixedNow = time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

func TestParseDate(t *testing.T) {
	tests := []struct {
		question  string
		want      string
		ambiguous bool
		ok        bool
	}{
		{"How much did I spend on 2026-02-11?", "2026-02-11", false, true},
		{"receipts from 2025-3-7", "2025-03-07", false, true},
		{"What did I buy on February 11, 2026?", "2026-02-11", false, true},
		{"What did I buy on Feb 11 2026?", "2026-02-11", false, true},
		{"what did i buy on feb. 11th, 2026", "2026-02-11", false, true},
		{"purchases on Sept 3, 2025", "2025-09-03", false, true},
		{"How much at Costco on feb 11", "2026-02-11", true, true},
		{"2026년 2월 11일에 얼마 썼어?", "2026-02-11", false, true},
		{"2월 11일에 코스트코에서 얼마 썼어?", "2026-02-11", true, true},
		{"What did I buy on 2026-02-30?", "", false, false},
		{"What did I buy last week?", "", false, false},
		{"May I see my receipts?", "", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.question, func(t *testing.T) {
			got, ambiguous, ok := ParseDate(tt.question, fixedNow)
			if got != tt.want || ambiguous != tt.ambiguous || ok != tt.ok {
				t.Errorf("ParseDate = (%q, %t, %t), want (%q, %t, %t)", got, ambiguous, ok, tt.want, tt.ambiguous, tt.ok)
			}
		})
	}
}

func TestParseDatePhrasingsAgree(t *testing.T) {
	long := []string{"January", "February", "March", "April", "May", "June", "July", "August", "September", "October", "November", "December"}
	for _, year := range []int{1999, 2024, 2026} {
		for m := 1; m <= 12; m++ {
			for _, day := range []int{1, 9, 15, 28} {
				want := fmt.Sprintf("%04d-%02d-%02d", year, m, day)
				phrasings := []string{
					fmt.Sprintf("spent on %s?", want),
					fmt.Sprintf("spent on %s %d, %d?", long[m-1], day, year),
					fmt.Sprintf("spent on %s %d %d?", long[m-1][:3], day, year),
				}
				for _, q := range phrasings {
					got, ambiguous, ok := ParseDate(q, fixedNow)
					if !ok || got != want || ambiguous {
						t.Errorf("ParseDate(%q) = (%q, %t, %t), want %q", q, got, ambiguous, ok, want)
					}
				}
			}
		}
	}
}

func TestExtractMerchant(t *testing.T) {
	tests := []struct {
		question string
		want     string
	}{
		{"How much did I spend at Costco?", "Costco"},
		{"How much did I spend at Costco on 2026-02-11?", "Costco"},
		{"Show me receipts from Walmart", "Walmart"},
		{"Find all Target receipts", "Target"},
		{"How much did I spend in Seoul?", ""},
		{"How much did I spend in restaurants?", ""},
		{"What receipts are in my inbox?", ""},
		{"Did I buy anything in particular?", ""},
		{"What did I buy at Safeway in March?", "Safeway"},
		{"Show me purchases at Bed & Bath", "Bed & Bath"},
		{"What did I buy at Trader Joes?", "Trader Joes"},
		{"at  costco   ?", "Costco"},
		{"at costco on feb 11", "Costco"},
		{"Show me all Amazon purchases", "Amazon"},
		{"Show me Costco transactions", "Costco"},
		{"What did I spend in January at Costco?", "Costco"},
		{"What did I buy at WHOLE FOODS during the holidays", "Whole Foods"},
		{"What did I buy last week?", ""},
		{"Show me all my receipts", ""},
		{"How much did I spend in total?", ""},
		{"Show me receipts from this month", ""},
		{"What was bought in 2026?", ""},
	}
	for _, tt := range tests {
		t.Run(tt.question, func(t *testing.T) {
			got, ok := ExtractMerchant(tt.question)
			if got != tt.want || ok != (tt.want != "") {
				t.Errorf("ExtractMerchant = (%q, %t), want %q", got, ok, tt.want)
			}
		})
	}
}

func TestDefaultExtractorsCombine(t *testing.T) {
	e := New(nil, nil, Options{Extractors: DefaultExtractors(func() time.Time { return fixedNow })})

	f, ambiguous := e.Filters("How much did I spend at Costco on 2026-02-11?")
	if ambiguous {
		t.Error("explicit year reported as ambiguous")
	}
	want := map[string]string{DateKey: "2026-02-11", MerchantKey: "Costco"}
	got := f.Map()
	if len(got) != len(want) {
		t.Fatalf("filters = %v, want %v", got, want)
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("filter %s = %q, want %q", k, got[k], v)
		}
	}
	for _, c := range f.Conditions {
		if c.Key == MerchantKey && c.Op != vectordb.OpContains {
			t.Error("merchant should match by containment")
		}
		if c.Key == DateKey && c.Op != vectordb.OpEq {
			t.Error("date should match exactly")
		}
	}

	f, ambiguous = e.Filters("What did I buy on feb 11?")
	if !ambiguous || len(f.Conditions) != 1 {
		t.Errorf("filters = %v ambiguous=%t", f.Map(), ambiguous)
	}

	if f, _ := e.Filters("What did I buy last week?"); !f.IsEmpty() {
		t.Errorf("expected no filter, got %v", f.Map())
	}
}
