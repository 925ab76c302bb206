// Package query answers questions: it extracts filters, retrieves chunks,
// aggregates amounts and hands the result to the generation layer. Ask
// never fails; every stage failure becomes a degraded answer.
package query

import (
	"context"
	"errors"
	"log"
	"runtime/debug"
	"time"

	"github.com/ziadkadry99/receipt-rag/internal/config"
	"github.com/ziadkadry99/receipt-rag/internal/generation"
	"github.com/ziadkadry99/receipt-rag/internal/llm"
	"github.com/ziadkadry99/receipt-rag/internal/retrieval"
	"github.com/ziadkadry99/receipt-rag/internal/vectordb"
)

// Outcome is how a question was answered.
type Outcome string

const (
	Answered          Outcome = "answered"
	AnsweredNoResults Outcome = "answered_no_results"
	AnsweredDegraded  Outcome = "answered_degraded"
)

// Request is one question.
type Request struct {
	Question string
	User     string
	// TopK is the requested result count. Zero uses the default.
	TopK    int
	History []llm.Message
}

// Response is the answer object returned to every front door.
type Response struct {
	Answer           string              `json:"answer"`
	Sources          []Source            `json:"sources"`
	AggregatedAmount *float64            `json:"aggregated_amount"`
	Breakdown        []vectordb.Metadata `json:"breakdown"`
	Outcome          Outcome             `json:"outcome"`
	Filters          map[string]string   `json:"filters,omitempty"`
	RetrievalTime    float64             `json:"retrieval_time"`
}

// Generator writes the final answer text.
type Generator interface {
	Spending(ctx context.Context, req generation.SpendingRequest) generation.Answer
	General(ctx context.Context, req generation.GeneralRequest) generation.Answer
}

// Options tune an Engine. Zero values take the defaults below.
type Options struct {
	DefaultTopK     int
	AggregationTopK int
	MinSourceScore  float64
	AmountField     string
	UserKey         string
	DefaultUser     string
	Classifier      Classifier
	Extractors      []Extractor
}

// OptionsFromConfig reads the query section of cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	q := cfg.Query
	return Options{
		DefaultTopK:     q.DefaultTopK,
		AggregationTopK: q.AggregationTopK,
		MinSourceScore:  q.MinSourceScore,
		AmountField:     q.AmountField,
		UserKey:         q.UserKey,
		DefaultUser:     q.DefaultUser,
	}
}

// Engine is built once at startup and shared by all front doors. It holds
// no per-question state.
type Engine struct {
	backend   retrieval.Backend
	generator Generator
	opts      Options
}

// New creates an Engine.
func New(backend retrieval.Backend, generator Generator, opts Options) *Engine {
	if opts.DefaultTopK <= 0 {
		opts.DefaultTopK = 5
	}
	if opts.AggregationTopK <= 0 {
		opts.AggregationTopK = 20
	}
	if opts.AmountField == "" {
		opts.AmountField = "total_amount"
	}
	if opts.UserKey == "" {
		opts.UserKey = "user_id"
	}
	if opts.DefaultUser == "" {
		opts.DefaultUser = "default"
	}
	if opts.Classifier == nil {
		opts.Classifier = DefaultClassifier()
	}
	if opts.Extractors == nil {
		opts.Extractors = DefaultExtractors(time.Now)
	}
	return &Engine{backend: backend, generator: generator, opts: opts}
}

// Backend returns the retrieval strategy chosen at startup.
func (e *Engine) Backend() retrieval.Backend { return e.backend }

// EffectiveTopK returns the result count used for question: aggregation
// questions are raised to the aggregation floor, never lowered.
func (e *Engine) EffectiveTopK(question string, requested int) int {
	if requested <= 0 {
		requested = e.opts.DefaultTopK
	}
	if e.opts.Classifier.IsAggregation(question) && requested < e.opts.AggregationTopK {
		return e.opts.AggregationTopK
	}
	return requested
}

// Filters runs every extractor over question and ANDs the conditions.
func (e *Engine) Filters(question string) (vectordb.Filter, bool) {
	var (
		f         vectordb.Filter
		ambiguous bool
	)
	for _, x := range e.opts.Extractors {
		ex := x.Extract(question)
		f.Conditions = append(f.Conditions, ex.Conditions...)
		ambiguous = ambiguous || ex.AmbiguousDate
	}
	return f, ambiguous
}

// Ask answers req. It always returns a well-formed Response.
func (e *Engine) Ask(ctx context.Context, req Request) (resp Response) {
	lang := generation.Detect(req.Question)
	defer func() {
		if r := recover(); r != nil {
			log.Printf("query: panic answering %q: %v\n%s", req.Question, r, debug.Stack())
			resp = degradedResponse(templateFor(lang).unexpected)
		}
	}()

	user := req.User
	if user == "" {
		user = e.opts.DefaultUser
	}
	filter, ambiguous := e.Filters(req.Question)
	aggregation := e.opts.Classifier.IsAggregation(req.Question)
	topK := e.EffectiveTopK(req.Question, req.TopK)
	log.Printf("query: user=%s top_k=%d aggregation=%t filters=%v", user, topK, aggregation, filter.Map())

	start := time.Now()
	results, err := e.backend.Retrieve(ctx, retrieval.Query{
		Text:   Contextualize(req.Question, req.History),
		User:   user,
		TopK:   topK,
		Filter: filter,
	})
	elapsed := time.Since(start).Seconds()

	degraded := false
	if err != nil {
		switch {
		case errors.Is(err, retrieval.ErrEmbedding):
			log.Printf("query: %v", err)
			return degradedResponse(templateFor(lang).embedding)
		case errors.Is(err, retrieval.ErrUnavailable):
			log.Printf("query: %v", err)
			return degradedResponse(templateFor(lang).unavailable)
		default:
			log.Printf("query: retrieval via %s failed, treating as no results: %v", e.backend.Name(), err)
			results, degraded = nil, true
		}
	}
	log.Printf("query: retrieved %d chunk(s) in %.3fs", len(results), elapsed)

	resp = Response{
		Sources:       []Source{},
		Filters:       filter.Map(),
		RetrievalTime: elapsed,
	}
	if len(results) == 0 {
		resp.Answer = templateFor(lang).noResults
		resp.Outcome = AnsweredNoResults
		if degraded {
			resp.Outcome = AnsweredDegraded
		}
		return resp
	}
	resp.Sources = FormatSources(results, e.opts.MinSourceScore)

	var ans generation.Answer
	if aggregation {
		total, breakdown := Aggregate(results, e.opts.AmountField, e.opts.UserKey)
		if total != nil {
			ans = e.generator.Spending(ctx, generation.SpendingRequest{
				Question:      req.Question,
				Total:         *total,
				Breakdown:     breakdown,
				AmbiguousDate: ambiguous,
			})
			resp.AggregatedAmount = total
			resp.Breakdown = breakdown
		} else {
			log.Printf("query: aggregation question but no %s in %d result(s)", e.opts.AmountField, len(results))
			ans = e.generator.General(ctx, generation.GeneralRequest{
				Question:  req.Question,
				Results:   results,
				History:   req.History,
				NoAmounts: true,
			})
		}
	} else {
		ans = e.generator.General(ctx, generation.GeneralRequest{
			Question: req.Question,
			Results:  results,
			History:  req.History,
		})
	}

	resp.Answer = ans.Text
	resp.Outcome = Answered
	if degraded || ans.Degraded {
		resp.Outcome = AnsweredDegraded
	}
	return resp
}

func degradedResponse(answer string) Response {
	return Response{Answer: answer, Sources: []Source{}, Outcome: AnsweredDegraded}
}

type answerTemplates struct {
	embedding   string
	unavailable string
	noResults   string
	unexpected  string
}

var engineTemplates = map[generation.Language]answerTemplates{
	generation.English: {
		embedding:   "I'm having trouble processing your question right now. Please try again in a moment.",
		unavailable: "I'm having trouble accessing the document database right now. Please try again in a moment.",
		noResults:   "I couldn't find any relevant information in your documents. Try rephrasing your question or processing more documents.",
		unexpected:  "An unexpected error occurred. Please try again.",
	},
	generation.Korean: {
		embedding:   "지금은 질문을 처리하는 데 문제가 있습니다. 잠시 후 다시 시도해 주세요.",
		unavailable: "지금은 문서 데이터베이스에 접근하는 데 문제가 있습니다. 잠시 후 다시 시도해 주세요.",
		noResults:   "문서에서 관련 정보를 찾을 수 없습니다. 질문을 바꾸거나 문서를 더 처리해 보세요.",
		unexpected:  "예기치 않은 오류가 발생했습니다. 다시 시도해 주세요.",
	},
}

func templateFor(lang generation.Language) answerTemplates {
	if t, ok := engineTemplates[lang]; ok {
		return t
	}
	return engineTemplates[generation.English]
}
