package transcription

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	api "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket/interfaces"
	microphone "github.com/deepgram/deepgram-go-sdk/v3/pkg/audio/microphone"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	client "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"
)

// Sink receives recognized speech. A finalized utterance replaces the
// pending answer draft; the silence detector submits it.
type Sink interface {
	SetPendingTranscript(text string)
	SubmitPending() bool
	DisableVoice(reason string)
}

// liveStream is the slice of the Deepgram client the channel uses.
type liveStream interface {
	io.Writer
	Connect() bool
	Stop()
}

// micStream is the slice of the SDK microphone the channel uses.
type micStream interface {
	Start() error
	Stop() error
	Stream(w io.Writer) error
}

// Options configures the voice channel.
type Options struct {
	APIKey         string
	Model          string
	Language       string
	SampleRates    []int
	SilenceTimeout time.Duration
	OnInterim      func(text string)

	// WrapAudio, when set, wraps the transcription writer so raw mic
	// audio can be teed to an archive recorder.
	WrapAudio func(dst io.Writer) io.Writer

	// OnSampleRate reports the microphone rate that actually opened.
	OnSampleRate func(rate int)
}

// Channel streams microphone audio to Deepgram and drives the sink
// from the transcription callbacks. One channel serves one interview;
// a failure disables voice input for the rest of the session rather
// than retrying.
type Channel struct {
	opts     Options
	sink     Sink
	buffer   *UtteranceBuffer
	detector *Detector

	openMic func(rate int) (micStream, error)
	dial    func(ctx context.Context, rate int, cb api.LiveMessageCallback) (liveStream, error)

	mu      sync.Mutex
	mic     micStream
	stream  liveStream
	started bool
}

func NewChannel(opts Options, sink Sink) *Channel {
	if opts.Model == "" {
		opts.Model = "nova-2"
	}
	if opts.Language == "" {
		opts.Language = "en-US"
	}
	if len(opts.SampleRates) == 0 {
		opts.SampleRates = []int{16000, 48000, 44100, 32000, 24000}
	}
	ch := &Channel{
		opts:     opts,
		sink:     sink,
		buffer:   NewUtteranceBuffer(),
		detector: NewDetector(opts.SilenceTimeout),
	}
	ch.openMic = func(rate int) (micStream, error) {
		return microphone.New(microphone.AudioConfig{InputChannels: 1, SamplingRate: float32(rate)})
	}
	ch.dial = func(ctx context.Context, rate int, cb api.LiveMessageCallback) (liveStream, error) {
		cOptions := &interfaces.ClientOptions{APIKey: ch.opts.APIKey, EnableKeepAlive: true}
		tOptions := &interfaces.LiveTranscriptionOptions{
			Model:       ch.opts.Model,
			Language:    ch.opts.Language,
			Punctuate:   true,
			SmartFormat: true,
			Encoding:    "linear16",
			SampleRate:  rate,
			Channels:    1,
		}
		return client.NewWSUsingCallback(ctx, ch.opts.APIKey, cOptions, tOptions, cb)
	}
	ch.detector.OnSilence(func() {
		if ch.sink.SubmitPending() {
			log.Println("transcription: silence window elapsed, answer submitted")
		}
	})
	return ch
}

// Start opens the microphone and the Deepgram stream. It returns an
// error when either is unavailable; the caller decides whether the
// session continues without voice input.
func (c *Channel) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return nil
	}

	var mic micStream
	var rate int
	var err error
	for _, candidate := range c.opts.SampleRates {
		mic, err = c.openMic(candidate)
		if err != nil {
			log.Printf("transcription: microphone open failed at %d Hz: %v", candidate, err)
			continue
		}
		rate = candidate
		break
	}
	if mic == nil {
		return fmt.Errorf("open microphone: %w", err)
	}
	if c.opts.OnSampleRate != nil {
		c.opts.OnSampleRate(rate)
	}

	stream, err := c.dial(ctx, rate, liveHandler{c})
	if err != nil {
		return fmt.Errorf("deepgram client: %w", err)
	}
	if ok := stream.Connect(); !ok {
		return fmt.Errorf("deepgram connect failed")
	}
	if err := mic.Start(); err != nil {
		stream.Stop()
		return fmt.Errorf("start microphone: %w", err)
	}

	c.mic = mic
	c.stream = stream
	c.started = true
	log.Printf("transcription: microphone streaming at %d Hz", rate)

	var dst io.Writer = stream
	if c.opts.WrapAudio != nil {
		dst = c.opts.WrapAudio(stream)
	}
	go streamWithRetry(ctx, mic, dst, time.Sleep, log.Printf)
	return nil
}

// Stop tears the channel down. Safe to call repeatedly and before
// Start succeeded.
func (c *Channel) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started {
		return
	}
	c.started = false
	c.detector.Stop()
	if c.mic != nil {
		_ = c.mic.Stop()
		c.mic = nil
	}
	if c.stream != nil {
		c.stream.Stop()
		c.stream = nil
	}
}

func (c *Channel) handleMessage(mr *api.MessageResponse) error {
	if len(mr.Channel.Alternatives) == 0 {
		return nil
	}
	sentence := strings.TrimSpace(mr.Channel.Alternatives[0].Transcript)
	if sentence == "" {
		return nil
	}

	words := make([]Word, 0, len(mr.Channel.Alternatives[0].Words))
	for _, word := range mr.Channel.Alternatives[0].Words {
		words = append(words, Word{
			PunctuatedWord: word.PunctuatedWord,
			Start:          word.Start,
			End:            word.End,
		})
	}

	if !mr.IsFinal {
		if c.opts.OnInterim != nil {
			c.opts.OnInterim(sentence)
		}
		return nil
	}

	c.buffer.AddWords(words)
	c.detector.OnSpeech()

	if mr.SpeechFinal {
		c.flush()
	}
	return nil
}

func (c *Channel) handleUtteranceEnd() error {
	c.flush()
	c.detector.OnUtteranceEnd()
	return nil
}

// flush completes the utterance and replaces the pending answer draft
// with it. Later utterances overwrite earlier ones; the draft holds
// whatever the candidate said last.
func (c *Channel) flush() {
	text := c.buffer.Flush()
	if text == "" {
		return
	}
	c.sink.SetPendingTranscript(text)
}

func (c *Channel) handleError(code, description string) {
	c.sink.DisableVoice(fmt.Sprintf("transcription error %s: %s", code, description))
}

// liveHandler adapts the Deepgram callback surface onto the channel.
type liveHandler struct {
	ch *Channel
}

func (h liveHandler) Message(mr *api.MessageResponse) error {
	return h.ch.handleMessage(mr)
}

func (h liveHandler) Open(*api.OpenResponse) error {
	log.Println("transcription: connected to Deepgram")
	return nil
}

func (h liveHandler) Metadata(*api.MetadataResponse) error { return nil }

func (h liveHandler) SpeechStarted(*api.SpeechStartedResponse) error { return nil }

func (h liveHandler) UtteranceEnd(*api.UtteranceEndResponse) error {
	return h.ch.handleUtteranceEnd()
}

func (h liveHandler) Close(*api.CloseResponse) error {
	log.Println("transcription: disconnected from Deepgram")
	return nil
}

func (h liveHandler) Error(er *api.ErrorResponse) error {
	log.Printf("transcription: deepgram error %s: %s", er.ErrCode, er.Description)
	h.ch.handleError(er.ErrCode, er.Description)
	return nil
}

func (h liveHandler) UnhandledEvent([]byte) error { return nil }

type audioStreamer interface {
	Stream(writer io.Writer) error
}

// streamWithRetry pumps mic audio into the Deepgram writer, restarting
// on the transient input-overflow error portaudio reports when the OS
// buffer backs up.
func streamWithRetry(
	ctx context.Context,
	streamer audioStreamer,
	writer io.Writer,
	wait func(time.Duration),
	logf func(string, ...any),
) {
	for {
		if ctx.Err() != nil {
			return
		}

		err := streamer.Stream(writer)
		if err == nil || ctx.Err() != nil {
			return
		}

		if strings.Contains(strings.ToLower(err.Error()), "overflow") {
			logf("transcription: mic input overflow, restarting stream")
			wait(250 * time.Millisecond)
			continue
		}

		logf("transcription: mic stream error: %v", err)
		return
	}
}
