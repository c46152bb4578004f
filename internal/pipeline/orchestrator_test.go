// Package pipeline_test tests the session orchestrator with mock adapters.
package pipeline_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/tara-service/internal/core"
	"github.com/book-expert/tara-service/internal/metrics"
	"github.com/book-expert/tara-service/internal/pipeline"
	"github.com/book-expert/tara-service/internal/summarizer"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	errMockDetect    = errors.New("mock detect error")
	errMockSummarize = errors.New("mock summarize error")
	errMockExit      = errors.New("exit status 1")
)

// mockDetector returns texts in order, repeating the last one.
type mockDetector struct {
	mu         sync.Mutex
	texts      []string
	shouldFail bool
	calls      int
}

func (m *mockDetector) Detect(_ context.Context, img *core.ImageAsset) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++

	if m.shouldFail {
		return "", errMockDetect
	}

	if img == nil || img.Image == nil {
		return "", errMockDetect
	}

	index := min(m.calls, len(m.texts)) - 1

	return m.texts[index], nil
}

type mockSummarizer struct {
	mu         sync.Mutex
	shouldFail bool
	inputs     []string
}

func (m *mockSummarizer) Summarize(_ context.Context, text string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.inputs = append(m.inputs, text)

	if m.shouldFail {
		return "", errMockSummarize
	}

	return summarizer.SummaryPrefix + " " + text, nil
}

type mockJob struct {
	done     chan struct{}
	cancel   chan struct{}
	once     sync.Once
	artifact *core.SpeechArtifact
	err      error
}

func (j *mockJob) Done() <-chan struct{} { return j.done }

func (j *mockJob) Wait() (*core.SpeechArtifact, error) {
	<-j.done

	return j.artifact, j.err
}

func (j *mockJob) Cancel() { j.once.Do(func() { close(j.cancel) }) }

// mockSynthesizer writes a small file per call. With block set, jobs run until cancelled.
type mockSynthesizer struct {
	mu         sync.Mutex
	dir        string
	shouldFail bool
	block      bool
	started    chan struct{}
	voices     []core.Voice
	texts      []string
}

func (m *mockSynthesizer) Start(ctx context.Context, text string, voice core.Voice) core.SpeechJob {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.voices = append(m.voices, voice)
	m.texts = append(m.texts, text)

	job := &mockJob{done: make(chan struct{}), cancel: make(chan struct{})}

	switch {
	case m.block:
		go func() {
			if m.started != nil {
				close(m.started)
			}

			select {
			case <-job.cancel:
				job.err = &core.SynthesisError{Voice: voice, ExitCode: -1, Err: context.Canceled}
			case <-ctx.Done():
				job.err = &core.SynthesisError{Voice: voice, ExitCode: -1, Err: ctx.Err()}
			}

			close(job.done)
		}()

		return job
	case m.shouldFail:
		job.err = &core.SynthesisError{
			Voice:    voice,
			ExitCode: 1,
			Stderr:   "KeyError: speaker not found",
			Err:      errMockExit,
		}
	default:
		path := filepath.Join(m.dir, string(voice)+".wav")
		writeErr := os.WriteFile(path, []byte("RIFF....WAVE"), 0o600)
		job.artifact = &core.SpeechArtifact{
			ID:          string(voice),
			Path:        path,
			Voice:       voice,
			Size:        12,
			Duration:    time.Second,
			Diagnostics: "warning: cpu inference",
		}
		job.err = writeErr
	}

	close(job.done)

	return job
}

type fixture struct {
	orchestrator *pipeline.Orchestrator
	detector     *mockDetector
	summarizer   *mockSummarizer
	synthesizer  *mockSynthesizer
}

func newFixture(t *testing.T, texts ...string) *fixture {
	t.Helper()

	log, err := logger.New(t.TempDir(), "pipeline-test.log")
	require.NoError(t, err)

	if len(texts) == 0 {
		texts = []string{"Hello World"}
	}

	f := &fixture{
		detector:    &mockDetector{texts: texts},
		summarizer:  &mockSummarizer{},
		synthesizer: &mockSynthesizer{dir: t.TempDir()},
	}

	f.orchestrator = pipeline.New(f.detector, f.summarizer, f.synthesizer, core.NewVoiceCatalog(nil), log)

	return f
}

func pngBytes(t *testing.T, fill color.Color) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 32, 16))
	for y := range 16 {
		for x := range 32 {
			img.Set(x, y, fill)
		}
	}

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	return buf.Bytes()
}

func TestNew_StartsIdleWithDefaultVoice(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	session := f.orchestrator.Snapshot()

	assert.Equal(t, pipeline.StateIdle, session.State)
	assert.Equal(t, core.Voice("wibowo"), session.Voice)
	assert.Equal(t, pipeline.MsgUploadPrompt, session.LastOutcome.Message)
	assert.Equal(t, core.DefaultVoices, f.orchestrator.Voices())
}

func TestEndToEnd_HelloWorld(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "Hello World")
	ctx := context.Background()

	outcome := f.orchestrator.LoadImage(ctx, pngBytes(t, color.White))
	require.False(t, outcome.Failed(), outcome.Err)
	assert.Equal(t, pipeline.LevelInfo, outcome.Level)

	session := f.orchestrator.Snapshot()
	assert.Equal(t, pipeline.StateTextDetected, session.State)
	assert.Equal(t, "Hello World", session.Text)

	outcome = f.orchestrator.Summarize(ctx)
	require.False(t, outcome.Failed(), outcome.Err)
	assert.Equal(t, pipeline.StageSynthesize, outcome.Stage)
	assert.Equal(t, pipeline.MsgSpeechGenerated, outcome.Message)
	assert.Equal(t, "warning: cpu inference", outcome.Diagnostics)

	session = f.orchestrator.Snapshot()
	assert.Equal(t, pipeline.StateSpeechReady, session.State)
	assert.Equal(t, summarizer.SummaryPrefix+" Hello World", session.Summary)
	require.NotNil(t, session.Artifact)

	info, err := os.Stat(session.Artifact.Path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())

	assert.Equal(t, []string{"Hello World"}, f.summarizer.inputs)
	assert.Equal(t, []string{session.Summary}, f.synthesizer.texts)
}

func TestLoadImage_BlankImageHaltsPipeline(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "")
	ctx := context.Background()

	outcome := f.orchestrator.LoadImage(ctx, pngBytes(t, color.White))
	assert.Equal(t, pipeline.LevelWarning, outcome.Level)
	assert.Equal(t, pipeline.MsgNoTextDetected, outcome.Message)
	require.NoError(t, outcome.Err)

	assert.Equal(t, pipeline.StateTextDetectedEmpty, f.orchestrator.Snapshot().State)

	outcome = f.orchestrator.Summarize(ctx)
	require.ErrorIs(t, outcome.Err, core.ErrNotReady)

	assert.Equal(t, pipeline.StateTextDetectedEmpty, f.orchestrator.Snapshot().State)
	assert.Empty(t, f.summarizer.inputs)
	assert.Empty(t, f.synthesizer.voices)
}

func TestSummarize_NotReadyWhenIdle(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	outcome := f.orchestrator.Summarize(context.Background())
	require.ErrorIs(t, outcome.Err, core.ErrNotReady)
	assert.Empty(t, f.summarizer.inputs)
}

func TestSummarize_UsesVoiceSelectedAtTrigger(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	f.orchestrator.LoadImage(ctx, pngBytes(t, color.White))
	require.NoError(t, f.orchestrator.SelectVoice("gadis"))

	outcome := f.orchestrator.Summarize(ctx)
	require.False(t, outcome.Failed(), outcome.Err)

	require.NoError(t, f.orchestrator.SelectVoice("ardi"))

	outcome = f.orchestrator.Summarize(ctx)
	require.False(t, outcome.Failed(), outcome.Err)

	assert.Equal(t, []core.Voice{"gadis", "ardi"}, f.synthesizer.voices)
	assert.Equal(t, core.Voice("ardi"), f.orchestrator.Snapshot().Artifact.Voice)
}

func TestSelectVoice_RejectsUnknown(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	err := f.orchestrator.SelectVoice("budi")
	require.ErrorIs(t, err, core.ErrUnsupportedVoice)
	assert.Equal(t, core.Voice("wibowo"), f.orchestrator.Snapshot().Voice)
}

func TestSummarize_SynthesisFailureCarriesDiagnostics(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "Hello World", "Halo Dunia")
	f.synthesizer.shouldFail = true
	ctx := context.Background()

	f.orchestrator.LoadImage(ctx, pngBytes(t, color.White))

	outcome := f.orchestrator.Summarize(ctx)
	require.True(t, outcome.Failed())
	require.ErrorIs(t, outcome.Err, core.ErrSynthesis)
	assert.Equal(t, pipeline.StageSynthesize, outcome.Stage)
	assert.Equal(t, "KeyError: speaker not found", outcome.Diagnostics)

	session := f.orchestrator.Snapshot()
	assert.Equal(t, pipeline.StateSummarized, session.State)
	assert.NotEmpty(t, session.Summary)
	assert.Nil(t, session.Artifact)

	outcome = f.orchestrator.LoadImage(ctx, pngBytes(t, color.Black))
	require.False(t, outcome.Failed(), outcome.Err)
	assert.Equal(t, "Halo Dunia", f.orchestrator.Snapshot().Text)
}

func TestSummarize_FailureKeepsDetectedText(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.summarizer.shouldFail = true
	ctx := context.Background()

	f.orchestrator.LoadImage(ctx, pngBytes(t, color.White))

	outcome := f.orchestrator.Summarize(ctx)
	require.ErrorIs(t, outcome.Err, errMockSummarize)
	assert.Equal(t, pipeline.StageSummarize, outcome.Stage)
	assert.Equal(t, pipeline.MsgSummaryFailed, outcome.Message)
	assert.Equal(t, pipeline.StateTextDetected, f.orchestrator.Snapshot().State)
	assert.Empty(t, f.synthesizer.voices)

	f.summarizer.shouldFail = false

	outcome = f.orchestrator.Summarize(ctx)
	require.False(t, outcome.Failed(), outcome.Err)
	assert.Equal(t, pipeline.StateSpeechReady, f.orchestrator.Snapshot().State)
}

func TestLoadImage_SecondUploadResetsDownstreamState(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "Hello World", "Kedua")
	ctx := context.Background()

	f.orchestrator.LoadImage(ctx, pngBytes(t, color.White))
	require.NoError(t, f.orchestrator.SelectVoice("gadis"))
	f.orchestrator.Summarize(ctx)

	previous := f.orchestrator.Snapshot().Artifact
	require.NotNil(t, previous)

	outcome := f.orchestrator.LoadImage(ctx, pngBytes(t, color.Black))
	require.False(t, outcome.Failed(), outcome.Err)

	session := f.orchestrator.Snapshot()
	assert.Equal(t, pipeline.StateTextDetected, session.State)
	assert.Equal(t, "Kedua", session.Text)
	assert.Empty(t, session.Summary)
	assert.Nil(t, session.Artifact)
	assert.Equal(t, core.Voice("gadis"), session.Voice)
	assert.FileExists(t, previous.Path)
}

func TestLoadImage_DetectionFailureReturnsToIdle(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.detector.shouldFail = true
	ctx := context.Background()

	outcome := f.orchestrator.LoadImage(ctx, pngBytes(t, color.White))
	require.ErrorIs(t, outcome.Err, errMockDetect)
	assert.Equal(t, pipeline.StageDetect, outcome.Stage)
	assert.Equal(t, pipeline.MsgDetectionFailed, outcome.Message)

	session := f.orchestrator.Snapshot()
	assert.Equal(t, pipeline.StateIdle, session.State)
	assert.Nil(t, session.Image)

	f.detector.shouldFail = false

	outcome = f.orchestrator.LoadImage(ctx, pngBytes(t, color.White))
	require.False(t, outcome.Failed(), outcome.Err)
	assert.Equal(t, pipeline.StateTextDetected, f.orchestrator.Snapshot().State)
}

func TestLoadImage_InvalidImage(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	outcome := f.orchestrator.LoadImage(context.Background(), []byte("not an image"))
	require.ErrorIs(t, outcome.Err, core.ErrInvalidImage)
	assert.Equal(t, pipeline.StageUpload, outcome.Stage)
	assert.Equal(t, pipeline.StateIdle, f.orchestrator.Snapshot().State)
	assert.Zero(t, f.detector.calls)
}

func TestCancelSynthesis(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.synthesizer.block = true
	f.synthesizer.started = make(chan struct{})
	ctx := context.Background()

	assert.False(t, f.orchestrator.CancelSynthesis())

	f.orchestrator.LoadImage(ctx, pngBytes(t, color.White))

	result := make(chan pipeline.Outcome, 1)

	go func() {
		result <- f.orchestrator.Summarize(ctx)
	}()

	select {
	case <-f.synthesizer.started:
	case <-time.After(5 * time.Second):
		t.Fatal("synthesis did not start")
	}

	require.Eventually(t, f.orchestrator.CancelSynthesis, 5*time.Second, 10*time.Millisecond)

	select {
	case outcome := <-result:
		require.ErrorIs(t, outcome.Err, context.Canceled)
		assert.Equal(t, pipeline.MsgSynthCancelled, outcome.Message)
	case <-time.After(5 * time.Second):
		t.Fatal("summarize did not return after cancellation")
	}

	assert.Equal(t, pipeline.StateSummarized, f.orchestrator.Snapshot().State)
}

func TestSummarize_ContextCancelStopsSynthesis(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.synthesizer.block = true

	f.orchestrator.LoadImage(context.Background(), pngBytes(t, color.White))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	outcome := f.orchestrator.Summarize(ctx)
	require.True(t, outcome.Failed())
	require.ErrorIs(t, outcome.Err, core.ErrSynthesis)
}

func TestState_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "text_detected_empty", pipeline.StateTextDetectedEmpty.String())
	assert.Equal(t, "speech_ready", pipeline.StateSpeechReady.String())
	assert.Equal(t, "unknown", pipeline.State(42).String())
}

func TestOutcome_CarriesSessionOfTheOperation(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "Hello World")
	ctx := context.Background()

	outcome := f.orchestrator.LoadImage(ctx, pngBytes(t, color.White))
	require.NotNil(t, outcome.Session)
	assert.Equal(t, pipeline.StateTextDetected, outcome.Session.State)
	assert.Equal(t, "Hello World", outcome.Session.Text)

	outcome = f.orchestrator.Summarize(ctx)
	require.NotNil(t, outcome.Session)
	assert.Equal(t, pipeline.StateSpeechReady, outcome.Session.State)
	assert.Equal(t, summarizer.SummaryPrefix+" Hello World", outcome.Session.Summary)
	require.NotNil(t, outcome.Session.Artifact)

	// A later upload does not change what the earlier operation reported.
	f.orchestrator.LoadImage(ctx, pngBytes(t, color.Black))
	assert.Equal(t, pipeline.StateSpeechReady, outcome.Session.State)
	assert.Nil(t, f.orchestrator.Snapshot().LastOutcome.Session)
}

func TestSnapshot_DuringSynthesis(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.synthesizer.block = true
	f.synthesizer.started = make(chan struct{})
	ctx := context.Background()

	f.orchestrator.LoadImage(ctx, pngBytes(t, color.White))

	result := make(chan pipeline.Outcome, 1)

	go func() {
		result <- f.orchestrator.Summarize(ctx)
	}()

	select {
	case <-f.synthesizer.started:
	case <-time.After(5 * time.Second):
		t.Fatal("synthesis did not start")
	}

	polled := make(chan pipeline.Session, 1)

	go func() {
		polled <- f.orchestrator.Snapshot()
	}()

	select {
	case session := <-polled:
		assert.Equal(t, pipeline.StateSummarized, session.State)
		assert.NotEmpty(t, session.Summary)
	case <-time.After(time.Second):
		t.Fatal("snapshot blocked while synthesis was running")
	}

	require.NoError(t, f.orchestrator.SelectVoice("ardi"))

	require.Eventually(t, f.orchestrator.CancelSynthesis, 5*time.Second, 10*time.Millisecond)

	select {
	case outcome := <-result:
		require.ErrorIs(t, outcome.Err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("summarize did not return after cancellation")
	}

	assert.Equal(t, core.Voice("ardi"), f.orchestrator.Snapshot().Voice)
	assert.Equal(t, []core.Voice{"wibowo"}, f.synthesizer.voices)
}

func TestLoadImage_InvalidImageIsCounted(t *testing.T) {
	t.Parallel()

	counter := metrics.OutcomesTotal.WithLabelValues(string(pipeline.StageUpload), string(pipeline.LevelError))
	before := testutil.ToFloat64(counter)

	f := newFixture(t)
	outcome := f.orchestrator.LoadImage(context.Background(), []byte("not an image"))
	require.True(t, outcome.Failed())

	assert.GreaterOrEqual(t, testutil.ToFloat64(counter)-before, 1.0)
}
