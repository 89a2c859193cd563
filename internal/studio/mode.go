package studio

import (
	"fmt"
	"strings"
)

// ModeKind selects how the voice is chosen.
type ModeKind int

const (
	// ModeRuleBased is also what a zero Mode means.
	ModeRuleBased ModeKind = iota
	ModeManual
	ModeLLMBased
)

// Mode is a voice selection mode. Voice is only read in manual mode.
type Mode struct {
	Kind  ModeKind
	Voice string
}

func Manual(v string) Mode { return Mode{Kind: ModeManual, Voice: v} }

func RuleBased() Mode { return Mode{Kind: ModeRuleBased} }

func LLMBased() Mode { return Mode{Kind: ModeLLMBased} }

func (m Mode) String() string {
	switch m.Kind {
	case ModeManual:
		return "manual"
	case ModeLLMBased:
		return "llm"
	default:
		return "rule"
	}
}

// ModeNames lists the names ParseMode accepts.
func ModeNames() []string {
	return []string{"manual", "rule", "llm"}
}

// ParseMode maps a mode name to a Mode. manualVoice is only used for
// "manual" and is validated later, by Generate.
func ParseMode(name, manualVoice string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "manual":
		return Manual(manualVoice), nil
	case "", "rule", "rules", "rule-based":
		return RuleBased(), nil
	case "llm", "llm-based", "ai":
		return LLMBased(), nil
	default:
		return Mode{}, fmt.Errorf("unknown voice mode %q (choose %s)", name, strings.Join(ModeNames(), ", "))
	}
}
