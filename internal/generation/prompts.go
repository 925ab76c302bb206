package generation

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ziadkadry99/receipt-rag/internal/llm"
	"github.com/ziadkadry99/receipt-rag/internal/vectordb"
)

// AmountKey is the breakdown field holding each item's amount.
const AmountKey = "amount"

const (
	// historyMessages is two exchanges.
	historyMessages = 4
	historyChars    = 150
	// excerptChars bounds each retrieved document in a prompt.
	excerptChars = 2000
)

// Humanize turns a metadata key such as "total_amount" into "Total Amount".
func Humanize(key string) string {
	words := strings.Fields(strings.ReplaceAll(key, "_", " "))
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + strings.ToLower(w[size:])
	}
	return strings.Join(words, " ")
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}

func breakdownLines(breakdown []vectordb.Metadata) string {
	lines := make([]string, 0, len(breakdown))
	for _, item := range breakdown {
		var parts []string
		for _, e := range item.Entries() {
			if e.Key == AmountKey {
				continue
			}
			parts = append(parts, fmt.Sprintf("%s: %s", Humanize(e.Key), e.Value.String()))
		}
		if v, ok := item.Get(AmountKey); ok {
			if f, ok := v.Float(); ok {
				parts = append(parts, fmt.Sprintf("Amount: $%.2f", f))
			}
		}
		lines = append(lines, "- "+strings.Join(parts, ", "))
	}
	return strings.Join(lines, "\n")
}

func spendingPrompt(lang Language, question string, total float64, breakdown []vectordb.Metadata, ambiguousDate bool) string {
	var sb strings.Builder
	if lang == Korean {
		fmt.Fprintf(&sb, "당신은 한국어로 대화하는 친절한 재무 어시스턴트입니다.\n\n")
		fmt.Fprintf(&sb, "사용자 질문: %s\n\n", question)
		fmt.Fprintf(&sb, "찾은 거래 내역:\n%s\n\n", breakdownLines(breakdown))
		fmt.Fprintf(&sb, "총액: $%.2f\n\n", total)
		sb.WriteString("지침:\n- 반드시 한국어로만 답변하세요\n- 자연스럽고 친근한 톤으로 답변하세요\n- 총액과 관련 거래 정보를 명확하게 전달하세요\n")
		if ambiguousDate {
			sb.WriteString("- 날짜가 명확하지 않으면 확인을 요청하세요\n")
		}
		sb.WriteString("\n답변:")
		return sb.String()
	}

	fmt.Fprintf(&sb, "You are a helpful financial assistant.\n\n")
	fmt.Fprintf(&sb, "User question: %s\n\n", question)
	fmt.Fprintf(&sb, "Found transactions:\n%s\n\n", breakdownLines(breakdown))
	fmt.Fprintf(&sb, "Total: $%.2f\n\n", total)
	sb.WriteString("Instructions:\n- Answer in English only\n- Use a natural, friendly tone\n- Clearly state the total and the relevant transaction details\n")
	if ambiguousDate {
		sb.WriteString("- The year of the date was not given; ask the user to confirm it\n")
	}
	sb.WriteString("\nResponse:")
	return sb.String()
}

// documentContext renders each result under its file name, or "Document N"
// when it has none.
func documentContext(results []vectordb.QueryResult) string {
	parts := make([]string, len(results))
	for i, r := range results {
		label := r.Metadata.GetString(vectordb.KeyFilename)
		if label == "" {
			label = fmt.Sprintf("Document %d", i+1)
		}
		parts[i] = fmt.Sprintf("=== %s ===\n%s", label, truncateRunes(r.Content, excerptChars))
	}
	return strings.Join(parts, "\n\n")
}

func conversationContext(lang Language, history []llm.Message) string {
	if len(history) > historyMessages {
		history = history[len(history)-historyMessages:]
	}
	lines := make([]string, 0, len(history))
	for _, m := range history {
		var role string
		switch {
		case lang == Korean && m.Role == llm.RoleUser:
			role = "사용자"
		case lang == Korean:
			role = "어시스턴트"
		case m.Role == llm.RoleUser:
			role = "User"
		default:
			role = "Assistant"
		}
		lines = append(lines, fmt.Sprintf("%s: %s", role, truncateRunes(m.Content, historyChars)))
	}
	return strings.Join(lines, "\n")
}

func generalPrompt(lang Language, question, docs, conv string, n int, noAmounts bool) string {
	var sb strings.Builder
	if lang == Korean {
		sb.WriteString("당신은 한국어로 대화하는 문서 분석 어시스턴트입니다.\n\n중요한 규칙:\n- 반드시 한국어로만 답변하세요\n")
		fmt.Fprintf(&sb, "- 아래 %d개의 모든 문서를 확인하세요\n", n)
		sb.WriteString("- \"총\", \"전체\", \"모두\" 같은 단어가 있으면 관련된 모든 문서를 찾아서 합산하세요\n")
		sb.WriteString("- 실제 파일명을 사용하세요 (예: IMG_4025.jpeg)\n- 문서에 없는 정보는 추측하지 마세요\n")
		if noAmounts {
			sb.WriteString("- 이 문서들에는 금액 정보가 없습니다. 금액을 만들어내지 말고 금액 정보가 없다고 알려 주세요\n")
		}
		sb.WriteString("\n합산 예시:\n질문: \"코스트코에서 총 얼마 썼어?\"\n답변: \"코스트코에서 총 $411.89를 사용했습니다 (IMG_4025.jpeg: $222.18, KakaoTalk_xxx.jpg: $189.71)\"\n\n")
		if conv != "" {
			fmt.Fprintf(&sb, "이전 대화:\n%s\n\n", conv)
		}
		fmt.Fprintf(&sb, "관련 문서 (%d개):\n%s\n\n질문: %s\n\n답변:", n, docs, question)
		return sb.String()
	}

	sb.WriteString("You are a helpful document analysis assistant.\n\nImportant rules:\n- Answer ONLY in English\n")
	fmt.Fprintf(&sb, "- Check ALL %d documents provided below\n", n)
	sb.WriteString("- If the question asks for \"total\", \"all\", or \"sum\", find ALL related documents and aggregate\n")
	sb.WriteString("- Use actual filenames (e.g., IMG_4025.jpeg), not \"Document 1\"\n- Don't make assumptions about information not in the documents\n")
	if noAmounts {
		sb.WriteString("- These documents carry no amount information; say so instead of inventing numbers\n")
	}
	sb.WriteString("\nAggregation example:\nQuestion: \"How much did I spend at Costco in total?\"\nAnswer: \"You spent $411.89 total at Costco (IMG_4025.jpeg: $222.18, KakaoTalk_xxx.jpg: $189.71)\"\n\n")
	if conv != "" {
		fmt.Fprintf(&sb, "Previous conversation:\n%s\n\n", conv)
	}
	fmt.Fprintf(&sb, "Relevant documents (%d documents):\n%s\n\nQuestion: %s\n\nAnswer:", n, docs, question)
	return sb.String()
}

// strictPrompt is the second attempt after an answer drifted into another
// script.
func strictPrompt(lang Language, question, docs, conv string) string {
	var sb strings.Builder
	if lang == Korean {
		sb.WriteString("당신은 한국어 전용 어시스턴트입니다.\n\n!!! 경고: 중국어나 다른 언어를 절대 사용하지 마세요 !!!\n!!! 오직 한국어로만 답변하세요 !!!\n\n")
		if conv != "" {
			fmt.Fprintf(&sb, "이전 대화:\n%s\n\n", conv)
		}
		fmt.Fprintf(&sb, "문서:\n%s\n\n질문: %s\n\n한국어 답변:", docs, question)
		return sb.String()
	}
	sb.WriteString("You are an English-only assistant.\n\n!!! WARNING: DO NOT use Chinese or other languages !!!\n!!! Answer ONLY in English !!!\n\n")
	if conv != "" {
		fmt.Fprintf(&sb, "Previous conversation:\n%s\n\n", conv)
	}
	fmt.Fprintf(&sb, "Documents:\n%s\n\nQuestion: %s\n\nEnglish response:", docs, question)
	return sb.String()
}
