package generation

import (
	"fmt"
	"strings"

	"github.com/ziadkadry99/receipt-rag/internal/vectordb"
)

type templates struct {
	spentOn       string
	spentDefault  string
	confirm       string
	spentTotal    string
	failed        string
	empty         string
	wrongLanguage string
	noAmounts     string
}

var templateSets = map[Language]templates{
	English: {
		spentOn:       "You spent $%.2f for %s.",
		spentDefault:  "this transaction",
		confirm:       " Is this the receipt you were looking for?",
		spentTotal:    "You spent a total of $%.2f.",
		failed:        "Failed to generate response. Please try again.",
		empty:         "I couldn't generate a response. Please try rephrasing your question.",
		wrongLanguage: "Sorry, I couldn't generate a response in English. Please try again.",
		noAmounts:     "I found %d matching document(s), but none of them include an amount I could add up.",
	},
	Korean: {
		spentOn:       "%[2]s에서 $%.2[1]f를 사용하셨습니다.",
		spentDefault:  "이 거래",
		confirm:       " 찾으시던 영수증이 맞나요?",
		spentTotal:    "총 $%.2f를 사용하셨습니다.",
		failed:        "응답 생성에 실패했습니다. 다시 시도해 주세요.",
		empty:         "응답을 생성할 수 없습니다. 질문을 다시 표현해 주세요.",
		wrongLanguage: "죄송합니다. 한국어로 답변을 생성하지 못했습니다. 다시 시도해 주세요.",
		noAmounts:     "관련 문서 %d개를 찾았지만 합산할 수 있는 금액 정보가 없습니다.",
	},
}

func templatesFor(lang Language) templates {
	if t, ok := templateSets[lang]; ok {
		return t
	}
	return templateSets[English]
}

// detailSkipKeys are breakdown fields left out of a one-line summary.
var detailSkipKeys = map[string]bool{
	AmountKey:              true,
	vectordb.KeyFilename:   true,
	vectordb.KeyFileType:   true,
	vectordb.KeyLocation:   true,
	vectordb.KeyDocumentID: true,
}

// SpendingTemplate builds an aggregation answer from the numbers alone,
// without a model call.
func SpendingTemplate(lang Language, total float64, breakdown []vectordb.Metadata, ambiguousDate bool) string {
	t := templatesFor(lang)
	if len(breakdown) != 1 {
		return fmt.Sprintf(t.spentTotal, total)
	}

	var details []string
	for _, e := range breakdown[0].Entries() {
		if detailSkipKeys[e.Key] {
			continue
		}
		if s := e.Value.String(); s != "" {
			details = append(details, s)
		}
	}
	d := t.spentDefault
	if len(details) > 0 {
		d = strings.Join(details, " ")
	}

	out := fmt.Sprintf(t.spentOn, total, d)
	if ambiguousDate {
		out += t.confirm
	}
	return out
}

// FailedTemplate is the answer when the model could not be reached.
func FailedTemplate(lang Language) string { return templatesFor(lang).failed }

// EmptyTemplate is the answer when the model returned nothing.
func EmptyTemplate(lang Language) string { return templatesFor(lang).empty }

// NoAmountsTemplate reports documents that carry no numeric amount.
func NoAmountsTemplate(lang Language, documents int) string {
	return fmt.Sprintf(templatesFor(lang).noAmounts, documents)
}

func wrongLanguageTemplate(lang Language) string { return templatesFor(lang).wrongLanguage }
