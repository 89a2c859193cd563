package studio

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/apresai/voicestudio/internal/audio"
	"github.com/apresai/voicestudio/internal/history"
	"github.com/apresai/voicestudio/internal/ingest"
	"github.com/apresai/voicestudio/internal/progress"
	"github.com/apresai/voicestudio/internal/voice"
)

type mockSynth struct{ mock.Mock }

func (m *mockSynth) Synthesize(ctx context.Context, text string, v voice.ID, f audio.Format) ([]byte, error) {
	args := m.Called(ctx, text, v, f)
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1)
}

type mockStore struct{ mock.Mock }

func (m *mockStore) Store(ctx context.Context, data []byte, v voice.ID, f audio.Format, prefix string) (string, error) {
	args := m.Called(ctx, data, v, f, prefix)
	return args.String(0), args.Error(1)
}

type mockTranslator struct{ mock.Mock }

func (m *mockTranslator) Translate(ctx context.Context, text, target string) (string, error) {
	args := m.Called(ctx, text, target)
	return args.String(0), args.Error(1)
}

type mockClassifier struct{ mock.Mock }

func (m *mockClassifier) Classify(ctx context.Context, system, text string) (string, error) {
	args := m.Called(ctx, system, text)
	return args.String(0), args.Error(1)
}

type mockSummarizer struct{ mock.Mock }

func (m *mockSummarizer) Summarize(ctx context.Context, text, instructions string) (string, error) {
	args := m.Called(ctx, text, instructions)
	return args.String(0), args.Error(1)
}

type mockExtractor struct{ mock.Mock }

func (m *mockExtractor) Extract(ctx context.Context, data []byte, kind ingest.Kind) (*ingest.Content, error) {
	args := m.Called(ctx, data, kind)
	c, _ := args.Get(0).(*ingest.Content)
	return c, args.Error(1)
}

type fixture struct {
	synth      *mockSynth
	store      *mockStore
	translator *mockTranslator
	classifier *mockClassifier
	o          *Orchestrator
}

var fixedNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		synth:      &mockSynth{},
		store:      &mockStore{},
		translator: &mockTranslator{},
		classifier: &mockClassifier{},
	}
	o, err := New(Config{
		Classifier:  f.classifier,
		Translator:  f.translator,
		Synthesizer: f.synth,
		Store:       f.store,
		Now:         func() time.Time { return fixedNow },
		NewID:       func() string { return "01TESTCLIP" },
	})
	require.NoError(t, err)
	f.o = o
	return f
}

func (f *fixture) assertNoCalls(t *testing.T) {
	t.Helper()
	f.synth.AssertNotCalled(t, "Synthesize", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.store.AssertNotCalled(t, "Store", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.translator.AssertNotCalled(t, "Translate", mock.Anything, mock.Anything, mock.Anything)
	f.classifier.AssertNotCalled(t, "Classify", mock.Anything, mock.Anything, mock.Anything)
}

func TestKoreanRuleBasedEndToEnd(t *testing.T) {
	f := newFixture(t)
	text := "포기하지 않는 간절한 꿈은 꼭 이루어집니다."
	f.synth.On("Synthesize", mock.Anything, text, voice.Nova, audio.FormatMP3).Return([]byte("mp3"), nil).Once()
	f.store.On("Store", mock.Anything, []byte("mp3"), voice.Nova, audio.FormatMP3, "tts").Return("output_audio/tts_nova_1.mp3", nil).Once()

	rec, err := f.o.Generate(context.Background(), Request{Text: text, Mode: RuleBased(), Format: audio.FormatMP3})
	require.NoError(t, err)

	assert.Equal(t, history.ClipRecord{
		ID:          "01TESTCLIP",
		Path:        "output_audio/tts_nova_1.mp3",
		Voice:       voice.Nova,
		Format:      audio.FormatMP3,
		Timestamp:   fixedNow,
		TextPreview: text,
		Source:      history.SourceText,
	}, rec)
	f.synth.AssertNumberOfCalls(t, "Synthesize", 1)
	f.store.AssertNumberOfCalls(t, "Store", 1)
	f.translator.AssertNotCalled(t, "Translate", mock.Anything, mock.Anything, mock.Anything)
}

func TestGenerateLeavesHistoryToCaller(t *testing.T) {
	f := newFixture(t)
	f.synth.On("Synthesize", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return([]byte("a"), nil)
	f.store.On("Store", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("p", nil)

	h := history.New()
	for _, text := range []string{"첫 번째", "두 번째"} {
		rec, err := f.o.Generate(context.Background(), Request{Text: text})
		require.NoError(t, err)
		h.Append(rec)
	}

	var previews []string
	for rec := range h.Recent() {
		previews = append(previews, rec.TextPreview)
	}
	assert.Equal(t, []string{"두 번째", "첫 번째"}, previews)
}

func TestManualInvalidVoiceMakesNoCalls(t *testing.T) {
	f := newFixture(t)

	rec, err := f.o.Generate(context.Background(), Request{Text: "안녕하세요", Mode: Manual("bogus"), TranslateTo: "English"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrVoiceResolutionFailed)
	assert.ErrorIs(t, err, voice.ErrInvalidVoice)
	assert.Zero(t, rec)

	var se *StepError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StepVoice, se.Step)
	f.assertNoCalls(t)
}

func TestManualVoiceIsUsed(t *testing.T) {
	f := newFixture(t)
	f.synth.On("Synthesize", mock.Anything, "공포", voice.Shimmer, audio.FormatWAV).Return([]byte("wav"), nil)
	f.store.On("Store", mock.Anything, []byte("wav"), voice.Shimmer, audio.FormatWAV, "tts").Return("p.wav", nil)

	rec, err := f.o.Generate(context.Background(), Request{Text: "공포", Mode: Manual("shimmer"), Format: audio.FormatWAV})
	require.NoError(t, err)
	assert.Equal(t, voice.Shimmer, rec.Voice)
}

func TestEmptyTextAndBadFormatRejectedUpFront(t *testing.T) {
	f := newFixture(t)

	_, err := f.o.Generate(context.Background(), Request{Text: "  \n\t"})
	assert.ErrorIs(t, err, ErrEmptyText)

	_, err = f.o.Generate(context.Background(), Request{Text: "꿈", Format: audio.Format("ogg")})
	assert.ErrorIs(t, err, audio.ErrInvalidFormat)

	_, err = f.o.Generate(context.Background(), Request{Text: "꿈", Format: audio.FormatPCM})
	assert.ErrorIs(t, err, audio.ErrInvalidFormat)

	f.assertNoCalls(t)
}

func TestLLMModeFallsBackToDefault(t *testing.T) {
	f := newFixture(t)
	f.classifier.On("Classify", mock.Anything, mock.Anything, "이 텍스트에 어울리는 음성을 골라줘:\n다정한 이야기").Return("Not-A-Voice", nil)
	f.synth.On("Synthesize", mock.Anything, mock.Anything, voice.Alloy, audio.FormatMP3).Return([]byte("a"), nil)
	f.store.On("Store", mock.Anything, mock.Anything, voice.Alloy, audio.FormatMP3, "tts").Return("p", nil)

	rec, err := f.o.Generate(context.Background(), Request{Text: "다정한 이야기", Mode: LLMBased()})
	require.NoError(t, err)
	assert.Equal(t, voice.Alloy, rec.Voice)
	f.classifier.AssertExpectations(t)
}

func TestLLMModeAcceptsNormalizedLabel(t *testing.T) {
	f := newFixture(t)
	f.classifier.On("Classify", mock.Anything, mock.Anything, mock.Anything).Return("  FABLE\n", nil)
	f.synth.On("Synthesize", mock.Anything, mock.Anything, voice.Fable, mock.Anything).Return([]byte("a"), nil)
	f.store.On("Store", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("p", nil)

	rec, err := f.o.Generate(context.Background(), Request{Text: "옛날 옛적에", Mode: LLMBased()})
	require.NoError(t, err)
	assert.Equal(t, voice.Fable, rec.Voice)
}

func TestLLMModeClassifierError(t *testing.T) {
	f := newFixture(t)
	cause := errors.New("rate limited")
	f.classifier.On("Classify", mock.Anything, mock.Anything, mock.Anything).Return("", cause)

	_, err := f.o.Generate(context.Background(), Request{Text: "텍스트", Mode: LLMBased()})
	assert.ErrorIs(t, err, ErrVoiceResolutionFailed)
	assert.ErrorIs(t, err, voice.ErrRecommendationFailed)
	assert.ErrorIs(t, err, cause)
	f.synth.AssertNotCalled(t, "Synthesize", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestLLMModeWithoutClassifier(t *testing.T) {
	o, err := New(Config{Synthesizer: &mockSynth{}, Store: &mockStore{}})
	require.NoError(t, err)
	_, err = o.Generate(context.Background(), Request{Text: "x", Mode: LLMBased()})
	assert.ErrorIs(t, err, ErrVoiceResolutionFailed)
}

func TestTranslationReplacesText(t *testing.T) {
	f := newFixture(t)
	long := strings.Repeat("a", 130)
	f.translator.On("Translate", mock.Anything, "사랑과 추억", "English").Return(long, nil)
	f.synth.On("Synthesize", mock.Anything, long, voice.Fable, audio.FormatMP3).Return([]byte("a"), nil)
	f.store.On("Store", mock.Anything, mock.Anything, voice.Fable, audio.FormatMP3, "tts").Return("p", nil)

	rec, err := f.o.Generate(context.Background(), Request{Text: "사랑과 추억", TranslateTo: "English"})
	require.NoError(t, err)
	// The voice follows the untranslated text; the preview follows what was spoken.
	assert.Equal(t, voice.Fable, rec.Voice)
	assert.Equal(t, strings.Repeat("a", 120)+"...", rec.TextPreview)
}

func TestTranslationFailure(t *testing.T) {
	f := newFixture(t)
	f.translator.On("Translate", mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("boom"))

	_, err := f.o.Generate(context.Background(), Request{Text: "x", TranslateTo: "French"})
	assert.ErrorIs(t, err, ErrTranslationFailed)
	assert.NotErrorIs(t, err, ErrSynthesisFailed)
	f.synth.AssertNotCalled(t, "Synthesize", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSynthesisFailureLeavesNoRecord(t *testing.T) {
	f := newFixture(t)
	cause := errors.New("upstream 500")
	f.synth.On("Synthesize", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, cause)

	h := history.New()
	rec, err := f.o.Generate(context.Background(), Request{Text: "기술과 미래"})
	if err == nil {
		h.Append(rec)
	}

	assert.ErrorIs(t, err, ErrSynthesisFailed)
	assert.ErrorIs(t, err, cause)
	assert.Zero(t, rec)
	assert.True(t, h.IsEmpty())
	f.store.AssertNotCalled(t, "Store", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestEmptyAudioIsSynthesisFailure(t *testing.T) {
	f := newFixture(t)
	f.synth.On("Synthesize", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return([]byte{}, nil)

	_, err := f.o.Generate(context.Background(), Request{Text: "x"})
	assert.ErrorIs(t, err, ErrSynthesisFailed)
}

func TestStorageFailure(t *testing.T) {
	f := newFixture(t)
	f.synth.On("Synthesize", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return([]byte("a"), nil)
	f.store.On("Store", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("disk full"))

	rec, err := f.o.Generate(context.Background(), Request{Text: "x"})
	assert.ErrorIs(t, err, ErrStorageFailed)
	assert.Zero(t, rec)
	assert.Contains(t, err.Error(), "[store]")
}

func TestProgressEvents(t *testing.T) {
	f := newFixture(t)
	f.translator.On("Translate", mock.Anything, mock.Anything, mock.Anything).Return("hello", nil)
	f.synth.On("Synthesize", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return([]byte("a"), nil)
	f.store.On("Store", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("p", nil)

	var stages []progress.Stage
	var last progress.Event
	_, err := f.o.Generate(context.Background(), Request{
		Text:        "안녕",
		TranslateTo: "English",
		Progress: func(e progress.Event) {
			stages = append(stages, e.Stage)
			last = e
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []progress.Stage{
		progress.StageVoice, progress.StageTranslate, progress.StageSynthesize, progress.StageStore, progress.StageComplete,
	}, stages)
	assert.Equal(t, "p", last.OutputPath)
	assert.Equal(t, "alloy", last.Voice)
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(Config{Store: &mockStore{}})
	assert.Error(t, err)
	_, err = New(Config{Synthesizer: &mockSynth{}})
	assert.Error(t, err)
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("manual", "echo")
	require.NoError(t, err)
	assert.Equal(t, Manual("echo"), m)

	m, err = ParseMode("", "")
	require.NoError(t, err)
	assert.Equal(t, RuleBased(), m)

	m, err = ParseMode("LLM", "")
	require.NoError(t, err)
	assert.Equal(t, "llm", m.String())

	_, err = ParseMode("random", "")
	assert.Error(t, err)
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "", Describe(nil))
	assert.Equal(t, "스크립트를 입력해 주세요.", Describe(ErrEmptyText))
	assert.Contains(t, Describe(stepErr(StepVoice, voice.ErrInvalidVoice)), "alloy, ash, coral")
	assert.Equal(t, "오디오 생성 중 오류가 발생했습니다.", Describe(stepErr(StepSynthesize, errors.New("x"))))
	assert.Equal(t, "본문 내용이 너무 짧습니다. 파일을 확인해 주세요.", Describe(ingest.ErrContentTooShort))
	assert.Contains(t, Describe(errors.New("odd")), "odd")
}

func TestStepErrorMatchesOnlyItsStep(t *testing.T) {
	err := stepErr(StepTranslate, errors.New("x"))
	assert.ErrorIs(t, err, ErrTranslationFailed)
	for _, other := range []error{ErrVoiceResolutionFailed, ErrSynthesisFailed, ErrStorageFailed, ErrSummarizationFailed, ingest.ErrExtractionFailed} {
		assert.NotErrorIs(t, err, other)
	}
	assert.Equal(t, "[translate] translation failed: x", err.Error())
}

func newBriefer(t *testing.T) (*fixture, *mockExtractor, *mockSummarizer, *Briefer) {
	f := newFixture(t)
	ex := &mockExtractor{}
	sum := &mockSummarizer{}
	return f, ex, sum, NewBriefer(f.o, ex, sum)
}

func TestBriefReadsSummaryWithNova(t *testing.T) {
	f, ex, sum, b := newBriefer(t)
	body := strings.Repeat("가", SummaryInputLimit+500)
	ex.On("Extract", mock.Anything, []byte("pdf-bytes"), ingest.KindPDF).Return(&ingest.Content{Text: body, Kind: ingest.KindPDF}, nil)
	sum.On("Summarize", mock.Anything, strings.Repeat("가", SummaryInputLimit), DefaultSummaryInstructions).Return("  핵심 요약  ", nil)
	f.synth.On("Synthesize", mock.Anything, "핵심 요약", voice.Nova, audio.FormatMP3).Return([]byte("mp3"), nil)
	f.store.On("Store", mock.Anything, []byte("mp3"), voice.Nova, audio.FormatMP3, BriefPrefix).Return("output_audio/summary_brief_nova_1.mp3", nil)

	res, err := b.Brief(context.Background(), BriefRequest{Data: []byte("pdf-bytes"), FileName: "report.pdf"})
	require.NoError(t, err)
	assert.NoError(t, res.Warning)
	assert.Equal(t, "핵심 요약", res.Summary)
	assert.Equal(t, SummaryInputLimit+500, res.CharCount)
	require.NotNil(t, res.Record)
	assert.Equal(t, history.SourceReport, res.Record.Source)
	assert.Equal(t, voice.Nova, res.Record.Voice)
	assert.Equal(t, "report.pdf", res.Content.Source)
	sum.AssertExpectations(t)
}

func TestBriefTooShortIsAWarning(t *testing.T) {
	f, ex, sum, b := newBriefer(t)
	ex.On("Extract", mock.Anything, mock.Anything, ingest.KindText).Return(&ingest.Content{Text: "짧은 글"}, nil)

	res, err := b.Brief(context.Background(), BriefRequest{Data: []byte("x"), FileName: "memo.txt"})
	require.NoError(t, err)
	assert.ErrorIs(t, res.Warning, ingest.ErrContentTooShort)
	assert.Nil(t, res.Record)
	assert.Equal(t, 4, res.CharCount)
	sum.AssertNotCalled(t, "Summarize", mock.Anything, mock.Anything, mock.Anything)
	f.assertNoCalls(t)
}

func emptyDOCX(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body><w:p></w:p><w:p><w:r><w:t>  </w:t></w:r></w:p></w:body></w:document>`))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestBriefEmptyDocumentIsAWarning(t *testing.T) {
	f := newFixture(t)
	sum := &mockSummarizer{}
	b := NewBriefer(f.o, ingest.NewExtractor(nil), sum)

	res, err := b.Brief(context.Background(), BriefRequest{Data: emptyDOCX(t), FileName: "blank.docx"})
	require.NoError(t, err)
	assert.ErrorIs(t, res.Warning, ingest.ErrContentTooShort)
	assert.Nil(t, res.Record)
	assert.Equal(t, 0, res.CharCount)
	sum.AssertNotCalled(t, "Summarize", mock.Anything, mock.Anything, mock.Anything)
	f.assertNoCalls(t)
}

func TestBriefExtractionFailure(t *testing.T) {
	_, ex, _, b := newBriefer(t)
	ex.On("Extract", mock.Anything, mock.Anything, mock.Anything).Return(nil, ingest.ErrExtractionFailed)

	_, err := b.Brief(context.Background(), BriefRequest{Data: []byte("x"), FileName: "a.docx"})
	assert.ErrorIs(t, err, ingest.ErrExtractionFailed)

	_, err = b.Brief(context.Background(), BriefRequest{Data: []byte("x"), FileName: "slides.pptx"})
	assert.ErrorIs(t, err, ingest.ErrExtractionFailed)
	ex.AssertNumberOfCalls(t, "Extract", 1)
}

func TestBriefSummarizationFailure(t *testing.T) {
	f, _, sum, b := newBriefer(t)
	sum.On("Summarize", mock.Anything, mock.Anything, "내 지시").Return("", errors.New("timeout"))

	content := &ingest.Content{Text: strings.Repeat("나", 200), Kind: ingest.KindURL}
	_, err := b.Brief(context.Background(), BriefRequest{Content: content, Instructions: "내 지시"})
	assert.ErrorIs(t, err, ErrSummarizationFailed)
	f.assertNoCalls(t)
}

func TestBriefHonoursMode(t *testing.T) {
	f, _, sum, b := newBriefer(t)
	sum.On("Summarize", mock.Anything, mock.Anything, mock.Anything).Return("기업 공지 요약", nil)
	f.synth.On("Synthesize", mock.Anything, mock.Anything, voice.Sage, audio.FormatWAV).Return([]byte("wav"), nil)
	f.store.On("Store", mock.Anything, mock.Anything, voice.Sage, audio.FormatWAV, BriefPrefix).Return("p", nil)

	mode := RuleBased()
	res, err := b.Brief(context.Background(), BriefRequest{
		Content: &ingest.Content{Text: strings.Repeat("다", 150)},
		Mode:    &mode,
		Format:  audio.FormatWAV,
	})
	require.NoError(t, err)
	assert.Equal(t, voice.Sage, res.Record.Voice)
}
