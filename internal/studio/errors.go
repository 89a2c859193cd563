package studio

import (
	"errors"
	"fmt"
	"strings"

	"github.com/apresai/voicestudio/internal/audio"
	"github.com/apresai/voicestudio/internal/ingest"
	"github.com/apresai/voicestudio/internal/voice"
)

var (
	ErrEmptyText             = errors.New("text is empty")
	ErrVoiceResolutionFailed = errors.New("voice resolution failed")
	ErrTranslationFailed     = errors.New("translation failed")
	ErrSynthesisFailed       = errors.New("speech synthesis failed")
	ErrStorageFailed         = errors.New("storing audio failed")
	ErrSummarizationFailed   = errors.New("summarization failed")
)

// Step names one stage of a generation or briefing run.
type Step string

const (
	StepExtract    Step = "extract"
	StepSummarize  Step = "summarize"
	StepVoice      Step = "voice"
	StepTranslate  Step = "translate"
	StepSynthesize Step = "synthesize"
	StepStore      Step = "store"
)

var stepSentinels = map[Step]error{
	StepExtract:    ingest.ErrExtractionFailed,
	StepSummarize:  ErrSummarizationFailed,
	StepVoice:      ErrVoiceResolutionFailed,
	StepTranslate:  ErrTranslationFailed,
	StepSynthesize: ErrSynthesisFailed,
	StepStore:      ErrStorageFailed,
}

// StepError records which step failed. errors.Is matches both the step's
// sentinel and anything in the wrapped cause.
type StepError struct {
	Step Step
	Err  error
}

func (e *StepError) Error() string {
	if s, ok := stepSentinels[e.Step]; ok {
		return fmt.Sprintf("[%s] %v: %v", e.Step, s, e.Err)
	}
	return fmt.Sprintf("[%s] %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

func (e *StepError) Is(target error) bool {
	s, ok := stepSentinels[e.Step]
	return ok && target == s
}

func stepErr(step Step, err error) error {
	return &StepError{Step: step, Err: err}
}

// Describe renders err as a message for the person at the keyboard. The
// most specific known cause wins.
func Describe(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrEmptyText):
		return "스크립트를 입력해 주세요."
	case errors.Is(err, voice.ErrInvalidVoice):
		return "알 수 없는 보이스입니다. 사용 가능한 보이스: " + strings.Join(voiceNames(), ", ")
	case errors.Is(err, audio.ErrInvalidFormat):
		return "지원하지 않는 오디오 포맷입니다. 사용 가능한 포맷: " + strings.Join(audio.FormatNames(), ", ")
	case errors.Is(err, voice.ErrRecommendationFailed):
		return "AI 보이스 추천 중 오류가 발생했습니다."
	case errors.Is(err, ingest.ErrContentTooShort):
		return "본문 내용이 너무 짧습니다. 파일을 확인해 주세요."
	case errors.Is(err, ingest.ErrExtractionFailed):
		return "파일을 읽는 중 오류가 발생했습니다."
	case errors.Is(err, ErrSummarizationFailed):
		return "요약 생성 중 오류가 발생했습니다."
	case errors.Is(err, ErrTranslationFailed):
		return "번역 중 오류가 발생했습니다."
	case errors.Is(err, ErrSynthesisFailed):
		return "오디오 생성 중 오류가 발생했습니다."
	case errors.Is(err, ErrStorageFailed):
		return "오디오 파일을 저장하는 중 오류가 발생했습니다."
	default:
		return "오류가 발생했습니다: " + err.Error()
	}
}

func voiceNames() []string {
	ids := voice.Default().All()
	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = string(id)
	}
	return names
}
