package voice

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrRecommendationFailed wraps a failure of the classifier call itself.
var ErrRecommendationFailed = errors.New("voice recommendation failed")

// ClassifierFunc is a single-shot text-to-label call. The returned label is
// untrusted.
type ClassifierFunc func(ctx context.Context, systemInstruction, text string) (string, error)

// LLMRecommender asks a classifier for a voice and validates the answer
// against the catalog.
type LLMRecommender struct {
	catalog *Catalog
}

func NewLLMRecommender(catalog *Catalog) *LLMRecommender {
	if catalog == nil {
		catalog = Default()
	}
	return &LLMRecommender{catalog: catalog}
}

// Recommend returns a catalog voice for text. Out-of-catalog labels become the
// default voice; a classifier error is returned, not defaulted.
func (r *LLMRecommender) Recommend(ctx context.Context, text string, classify ClassifierFunc) (ID, error) {
	label, err := classify(ctx, r.Instruction(), "이 텍스트에 어울리는 음성을 골라줘:\n"+text)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrRecommendationFailed, err)
	}
	label = strings.ToLower(strings.TrimSpace(label))
	if !r.catalog.IsValid(label) {
		return r.catalog.Default(), nil
	}
	return ID(label), nil
}

// Instruction is the system prompt constraining the classifier to one catalog
// token.
func (r *LLMRecommender) Instruction() string {
	var sb strings.Builder
	sb.WriteString("너는 텍스트를 읽기 좋은 음성을 골라주는 어시스턴트야.\n")
	sb.WriteString("반드시 아래 목록 중 하나만 소문자로 출력해.\n")
	fmt.Fprintf(&sb, "목록: %s.\n", r.catalog.names())
	sb.WriteString("설명/공지/안내/매뉴얼/기업 공지 → sage 또는 alloy\n")
	sb.WriteString("교육/학습/튜토리얼 → nova\n")
	sb.WriteString("아이/이야기/동화/따뜻한 톤 → fable\n")
	sb.WriteString("밝고 경쾌 → coral\n")
	fmt.Fprintf(&sb, "기타는 %s\n", r.catalog.Default())
	sb.WriteString("다른 말 하지 마. 이유도 말하지 마. 하나만.")
	return sb.String()
}
