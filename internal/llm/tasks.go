package llm

import (
	"context"
	"fmt"
	"strings"
)

const (
	translateTemperature = 0
	summaryTemperature   = 0.4
	classifyTemperature  = 0
	classifyMaxTokens    = 16
	summaryMaxTokens     = 4096

	consultantSystemPrompt = "너는 맥킨지 출신의 전략 컨설턴트다. 모든 답변은 반드시 한국어로 작성한다."
)

// Language is a translation target offered by the interfaces.
type Language struct {
	Label string
	Name  string
}

var languages = []Language{
	{Label: "한국어", Name: "Korean"},
	{Label: "영어", Name: "English"},
	{Label: "일본어", Name: "Japanese"},
	{Label: "중국어(간체)", Name: "Chinese (Simplified)"},
	{Label: "스페인어", Name: "Spanish"},
	{Label: "프랑스어", Name: "French"},
}

// Languages returns the offered translation targets.
func Languages() []Language {
	out := make([]Language, len(languages))
	copy(out, languages)
	return out
}

// LanguageName resolves a Korean label or an English name to the name sent
// to the model. Anything else is returned trimmed and unchanged.
func LanguageName(s string) string {
	s = strings.TrimSpace(s)
	for _, l := range languages {
		if s == l.Label || strings.EqualFold(s, l.Name) {
			return l.Name
		}
	}
	return s
}

// Translator rewrites text into a target language.
type Translator struct {
	completer Completer
}

func NewTranslator(c Completer) *Translator {
	return &Translator{completer: c}
}

func (t *Translator) Translate(ctx context.Context, text, targetLanguage string) (string, error) {
	return t.completer.Complete(ctx, Request{
		System:      fmt.Sprintf("You are a translator. Translate the user's sentence into %s. Return only the translation.", LanguageName(targetLanguage)),
		User:        text,
		Temperature: translateTemperature,
	})
}

// Summarizer condenses a document following caller instructions.
type Summarizer struct {
	completer Completer
}

func NewSummarizer(c Completer) *Summarizer {
	return &Summarizer{completer: c}
}

func (s *Summarizer) Summarize(ctx context.Context, text, instructions string) (string, error) {
	return s.completer.Complete(ctx, Request{
		System:      consultantSystemPrompt,
		User:        strings.TrimSpace(instructions) + "\n\n본문:\n" + text,
		Temperature: summaryTemperature,
		MaxTokens:   summaryMaxTokens,
	})
}

// Classifier answers a constrained single-label question.
type Classifier struct {
	completer Completer
}

func NewClassifier(c Completer) *Classifier {
	return &Classifier{completer: c}
}

func (c *Classifier) Classify(ctx context.Context, systemInstruction, text string) (string, error) {
	return c.completer.Complete(ctx, Request{
		System:      systemInstruction,
		User:        text,
		Temperature: classifyTemperature,
		MaxTokens:   classifyMaxTokens,
	})
}
