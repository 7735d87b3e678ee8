package main

import (
	"context"
	"encoding/json"
	"flag"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	microphone "github.com/deepgram/deepgram-go-sdk/v3/pkg/audio/microphone"
	client "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"
	"github.com/google/uuid"
	"github.com/gordonklaus/portaudio"

	"github.com/openhire/openhire-agent/internal/audio"
	"github.com/openhire/openhire-agent/internal/backend"
	"github.com/openhire/openhire-agent/internal/capture"
	"github.com/openhire/openhire-agent/internal/config"
	"github.com/openhire/openhire-agent/internal/control"
	"github.com/openhire/openhire-agent/internal/debrief"
	"github.com/openhire/openhire-agent/internal/export"
	"github.com/openhire/openhire-agent/internal/interview"
	"github.com/openhire/openhire-agent/internal/llm"
	"github.com/openhire/openhire-agent/internal/observer"
	"github.com/openhire/openhire-agent/internal/protocol"
	"github.com/openhire/openhire-agent/internal/storage"
	"github.com/openhire/openhire-agent/internal/transcription"
)

// voiceSink forwards transcription callbacks to the conductor. The
// conductor is bound after construction; callbacks only fire once the
// channel is started, which happens after binding.
type voiceSink struct {
	mu   sync.Mutex
	cond *interview.Conductor
}

func (s *voiceSink) bind(c *interview.Conductor) {
	s.mu.Lock()
	s.cond = c
	s.mu.Unlock()
}

func (s *voiceSink) conductor() *interview.Conductor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cond
}

func (s *voiceSink) SetPendingTranscript(text string) {
	if c := s.conductor(); c != nil {
		c.SetPendingTranscript(text)
	}
}

func (s *voiceSink) SubmitPending() bool {
	c := s.conductor()
	return c != nil && c.SubmitPending()
}

func (s *voiceSink) DisableVoice(reason string) {
	if c := s.conductor(); c != nil {
		c.DisableVoice(reason)
	}
}

// controlHandler forwards control-channel callbacks to the conductor,
// breaking the construction cycle between the two.
type controlHandler struct {
	mu   sync.Mutex
	cond *interview.Conductor
}

func (h *controlHandler) bind(c *interview.Conductor) {
	h.mu.Lock()
	h.cond = c
	h.mu.Unlock()
}

func (h *controlHandler) conductor() *interview.Conductor {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cond
}

func (h *controlHandler) HandleOpen() {
	if c := h.conductor(); c != nil {
		c.HandleOpen()
	}
}

func (h *controlHandler) HandleEvent(ev protocol.Event) {
	if c := h.conductor(); c != nil {
		c.HandleEvent(ev)
	}
}

func (h *controlHandler) HandleClosed(code int, reason string, err error) {
	if c := h.conductor(); c != nil {
		c.HandleClosed(code, reason, err)
	}
}

func main() {
	log.Println("openhire-agent: starting")

	configPath := flag.String("config", envOrDefault(config.EnvPrefix+"CONFIG", "config.yaml"), "path to the YAML config file")
	flag.Parse()

	cfg, warnings, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	for _, w := range warnings {
		log.Printf("warning: %s", w)
	}
	if cfg.InterviewID == "" {
		cfg.InterviewID = uuid.NewString()
		log.Printf("generated interview id %s", cfg.InterviewID)
	}

	store, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("storage init failed: %v", err)
	}
	defer func() { _ = store.Close() }()

	transcripts := storage.NewWriter(cfg.TranscriptDir)
	hub := observer.NewHub()
	recorder := audio.NewRecorder(cfg.AudioDir)

	jobDescription := readOptionalFile(cfg.JobDescriptionPath)
	candidateResume := readOptionalFile(cfg.ResumePath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Captured frames go to the remote backend when one is configured,
	// otherwise they stay on local disk with artifact rows in SQLite.
	var artifacts capture.ArtifactStore
	var objects capture.ObjectStore
	if cfg.BackendURL != "" {
		artifacts = backend.NewArtifactClient(cfg.BackendURL, cfg.BackendAPIKey)
		objects = backend.NewUploader(cfg.BackendURL, cfg.BackendAPIKey, cfg.StorageBucket)
	} else {
		artifacts = store
		objects = &capture.DiskStore{Dir: filepath.Join(filepath.Dir(cfg.DBPath), "frames")}
	}

	assoc := capture.NewAssociator(artifacts, cfg.InterviewID, capture.DefaultRetryPolicy)
	source := capture.NewFFmpegSource(cfg.CaptureDevice)
	loop := capture.NewLoop(source, objects, assoc, cfg.InterviewID, cfg.ParsedCaptureInterval(), func(f capture.Frame) {
		hub.BroadcastFrameCaptured(cfg.InterviewID, f)
	})

	sink := &voiceSink{}
	var voice interview.VoiceChannel
	if cfg.DeepgramAPIKey != "" {
		microphone.Initialize()
		defer microphone.Teardown()
		client.Init(client.InitLib{LogLevel: client.LogLevelDefault})

		voice = transcription.NewChannel(transcription.Options{
			APIKey:         cfg.DeepgramAPIKey,
			SampleRates:    cfg.SampleRateCandidates(),
			SilenceTimeout: cfg.ParsedSilenceTimeout(),
			OnInterim:      hub.BroadcastInterimTranscript,
			WrapAudio:      recorder.Writer,
			OnSampleRate:   recorder.SetSampleRate,
		}, sink)
	} else if cleanup := openFallbackMic(cfg, recorder); cleanup != nil {
		defer cleanup()
	}

	var exporter *export.Exporter
	if cfg.GDriveFolderID != "" {
		exporter, err = export.NewExporter(ctx, cfg.GoogleCredentialsFile, cfg.GDriveFolderID)
		if err != nil {
			log.Printf("warning: drive export disabled: %v", err)
			exporter = nil
		}
	}

	handler := &controlHandler{}
	conn := control.NewConn(cfg.ControlURL, handler)

	var finishOnce sync.Once
	done := make(chan struct{})
	finish := func(status string, assessment *protocol.FinalAssessment, messages []interview.Message) {
		finishOnce.Do(func() {
			finishInterview(cfg, store, transcripts, hub, recorder, loop, exporter, jobDescription, status, assessment, messages)
			close(done)
		})
	}

	cond := interview.NewConductor(
		interview.StartInfo{
			InterviewID:     cfg.InterviewID,
			CandidateID:     cfg.CandidateID,
			JobDescription:  jobDescription,
			CandidateResume: candidateResume,
		},
		conn, loop, voice,
		interview.WithPhaseListener(func(_, next interview.Phase) {
			hub.BroadcastPhaseChanged(cfg.InterviewID, string(next))
		}),
		interview.WithMessageListener(func(msg interview.Message) {
			if err := store.AppendMessage(cfg.InterviewID, msg); err != nil {
				log.Printf("warning: persist message failed: %v", err)
			}
			if err := transcripts.Append(cfg.InterviewID, msg); err != nil {
				log.Printf("warning: write transcript failed: %v", err)
			}
			hub.BroadcastTranscriptMessage(cfg.InterviewID, msg)
		}),
		interview.WithStatusListener(hub.BroadcastStatusUpdate),
		interview.WithCompletionHandler(func(assessment protocol.FinalAssessment, messages []interview.Message) {
			hub.BroadcastAssessmentReady(cfg.InterviewID, &assessment)
			go finish("completed", &assessment, messages)
		}),
	)
	handler.bind(cond)
	sink.bind(cond)

	controls := observer.Controls{
		Pause:        cond.Pause,
		Resume:       cond.Resume,
		End:          cond.End,
		SubmitAnswer: cond.SubmitAnswer,
		Snapshot:     func() any { return cond.Session().Snapshot() },
		Warnings:     func() []string { return warnings },
	}

	httpServer := &http.Server{Addr: cfg.ListenAddr, Handler: observer.Handler(hub, store, controls)}
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("http server error: %v", err)
		}
	}()

	if err := store.CreateInterview(cfg.InterviewID, cfg.CandidateID, time.Now().UTC()); err != nil {
		log.Printf("warning: create interview record failed: %v", err)
	}
	if err := recorder.Begin(cfg.InterviewID); err != nil {
		log.Printf("warning: audio capture disabled: %v", err)
	}

	if err := cond.Start(ctx); err != nil {
		log.Printf("warning: interview connect failed: %v", err)
	}

	log.Printf("openhire-agent: observer API on http://%s", cfg.ListenAddr)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sig:
		log.Println("openhire-agent: shutting down")
	case <-done:
		log.Println("openhire-agent: interview finished")
	}
	cancel()

	cond.Shutdown()
	finish("aborted", nil, cond.Session().Transcript().Messages())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("warning: http shutdown failed: %v", err)
	}
}

// finishInterview runs the end-of-interview pipeline: flush captured
// frames, finalize the audio recording, persist the terminal record,
// generate the debrief, and export artifacts.
func finishInterview(
	cfg config.Config,
	store *storage.SQLiteStore,
	transcripts *storage.Writer,
	hub *observer.Hub,
	recorder *audio.Recorder,
	loop *capture.Loop,
	exporter *export.Exporter,
	jobDescription string,
	status string,
	assessment *protocol.FinalAssessment,
	messages []interview.Message,
) {
	loop.Stop()

	flushCtx, flushCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer flushCancel()
	if err := loop.Flush(flushCtx); err != nil {
		log.Printf("warning: frame artifact flush failed: %v", err)
	}

	audioPath, err := recorder.Finish()
	if err != nil {
		log.Printf("warning: audio finalize failed: %v", err)
		audioPath = ""
	}

	assessmentJSON := ""
	if assessment != nil {
		if data, err := json.Marshal(assessment); err == nil {
			assessmentJSON = string(data)
		}
	}

	if err := store.EndInterview(cfg.InterviewID, time.Now().UTC(), status, assessmentJSON, audioPath); err != nil {
		log.Printf("warning: persist interview end failed: %v", err)
	}

	transcript := formatTranscript(messages)

	if status == "completed" {
		generateDebrief(cfg, store, hub, jobDescription, transcript, assessmentJSON)
	}

	if exporter != nil {
		if err := exporter.ExportTranscript(transcripts.Path(cfg.InterviewID), cfg.InterviewID); err != nil {
			log.Printf("warning: transcript export failed: %v", err)
		}
		if audioPath != "" {
			if err := exporter.ExportAudio(audioPath, cfg.InterviewID); err != nil {
				log.Printf("warning: audio export failed: %v", err)
			}
		}
	}
}

func generateDebrief(cfg config.Config, store *storage.SQLiteStore, hub *observer.Hub, jobDescription, transcript, assessmentJSON string) {
	debriefCfg := cfg.Debrief
	if len(debriefCfg.Presets) == 0 {
		debriefCfg.Presets = map[string]config.Preset{
			"default": {
				Description:  "General hiring debrief",
				SystemPrompt: "You are a recruiting coordinator. Write a concise hiring debrief in markdown from the interview transcript and assessment scores. Cover strengths, concerns, and a recommendation.",
				UserTemplate: "Interview date: {{date}}\n\nAssessment:\n{{assessment}}\n\nTranscript:\n{{transcript}}",
			},
		}
	}

	factory := func(provider, model string) (llm.Client, error) {
		return llm.NewClient(provider, cfg.APIKeyFor(provider), model)
	}

	if err := store.UpdateDebrief(cfg.InterviewID, "", storage.DebriefRunning); err != nil {
		log.Printf("warning: mark debrief running failed: %v", err)
	}

	debriefCtx, debriefCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer debriefCancel()

	d := debrief.New(debriefCfg, factory, store)
	text, preset, err := d.Generate(debriefCtx, cfg.InterviewID, jobDescription, transcript, assessmentJSON)
	switch {
	case err != nil:
		log.Printf("warning: debrief generation failed: %v", err)
		if err := store.UpdateDebrief(cfg.InterviewID, "", storage.DebriefFailed); err != nil {
			log.Printf("warning: mark debrief failed failed: %v", err)
		}
		hub.BroadcastDebriefReady(cfg.InterviewID, "", storage.DebriefFailed)
	case text == "":
		log.Println("debrief skipped (short transcript or duplicate request)")
	default:
		log.Printf("debrief generated with preset %s", preset)
		if err := store.UpdateDebrief(cfg.InterviewID, text, storage.DebriefCompleted); err != nil {
			log.Printf("warning: persist debrief failed: %v", err)
		}
		hub.BroadcastDebriefReady(cfg.InterviewID, text, storage.DebriefCompleted)
	}
}

// openFallbackMic records interview audio locally when no Deepgram key
// is configured, so the archive exists even without transcription. It
// returns the teardown to defer, or nil when no capture could start.
func openFallbackMic(cfg config.Config, recorder *audio.Recorder) func() {
	if err := portaudio.Initialize(); err != nil {
		log.Printf("warning: audio subsystem unavailable: %v", err)
		return nil
	}
	teardown := func() { _ = portaudio.Terminate() }

	mic, err := audio.NewMic(cfg.MicSampleRate, 4096)
	if err != nil {
		log.Printf("warning: fallback microphone open failed: %v", err)
		return teardown
	}
	recorder.SetSampleRate(cfg.MicSampleRate)
	if err := mic.Start(); err != nil {
		log.Printf("warning: fallback microphone start failed: %v", err)
		return teardown
	}

	go func() {
		if err := mic.Stream(recorder.Writer(io.Discard)); err != nil {
			log.Printf("fallback mic stream ended: %v", err)
		}
	}()
	return func() {
		_ = mic.Stop()
		teardown()
	}
}

func formatTranscript(messages []interview.Message) string {
	var b strings.Builder
	for _, msg := range messages {
		b.WriteString(msg.FormatMarkdown())
		b.WriteString("\n\n")
	}
	return strings.TrimSpace(b.String())
}

func readOptionalFile(path string) string {
	if path == "" {
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		log.Printf("warning: read %s failed: %v", path, err)
		return ""
	}
	return strings.TrimSpace(string(data))
}

func envOrDefault(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
