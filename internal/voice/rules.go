package voice

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

// Rule maps a keyword set to a voice.
type Rule struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
	Voice    ID       `yaml:"voice"`
}

// DefaultRules returns the reference rule table in declaration order.
func DefaultRules() []Rule {
	return []Rule{
		{Name: "hope", Keywords: []string{"꿈", "희망", "용기", "행복", "응원", "화이팅"}, Voice: Nova},
		{Name: "grave", Keywords: []string{"어둠", "위기", "전쟁", "공포", "슬픔"}, Voice: Onyx},
		{Name: "warm", Keywords: []string{"사랑", "추억", "감성", "그리움"}, Voice: Fable},
		{Name: "tech", Keywords: []string{"기술", "로봇", "미래", "데이터", "AI"}, Voice: Echo},
		{Name: "formal", Keywords: []string{"공지", "안내", "설명", "기업", "매뉴얼"}, Voice: Sage},
	}
}

// RuleRecommender picks the voice of the first rule whose keywords appear in
// the text. Rule order is significant.
type RuleRecommender struct {
	catalog *Catalog
	rules   []Rule
}

// NewRuleRecommender builds a recommender over rules. Every rule voice must be
// a catalog member.
func NewRuleRecommender(catalog *Catalog, rules []Rule) (*RuleRecommender, error) {
	if catalog == nil {
		catalog = Default()
	}
	normalized := make([]Rule, 0, len(rules))
	for i, r := range rules {
		if !catalog.IsValid(string(r.Voice)) {
			return nil, fmt.Errorf("rule %d (%s): %w %q", i, r.Name, ErrInvalidVoice, r.Voice)
		}
		kws := make([]string, 0, len(r.Keywords))
		for _, kw := range r.Keywords {
			kw = norm.NFC.String(strings.TrimSpace(kw))
			if kw != "" {
				kws = append(kws, kw)
			}
		}
		normalized = append(normalized, Rule{Name: r.Name, Keywords: kws, Voice: r.Voice})
	}
	return &RuleRecommender{catalog: catalog, rules: normalized}, nil
}

// Recommend returns the first matching rule's voice, or the catalog default.
func (r *RuleRecommender) Recommend(text string) ID {
	text = norm.NFC.String(text)
	for _, rule := range r.rules {
		for _, kw := range rule.Keywords {
			if strings.Contains(text, kw) {
				return rule.Voice
			}
		}
	}
	return r.catalog.Default()
}

// Rules returns a copy of the configured rules.
func (r *RuleRecommender) Rules() []Rule {
	out := make([]Rule, len(r.rules))
	copy(out, r.rules)
	return out
}

type rulesFile struct {
	Rules []Rule `yaml:"rules"`
}

// LoadRules reads a YAML rules document:
//
//	rules:
//	  - name: hope
//	    keywords: [꿈, 희망]
//	    voice: nova
func LoadRules(r io.Reader) ([]Rule, error) {
	var f rulesFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}
	if len(f.Rules) == 0 {
		return nil, fmt.Errorf("rules file has no rules")
	}
	return f.Rules, nil
}
