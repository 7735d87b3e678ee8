// Package audio captures the candidate's microphone audio to disk
// while the same PCM stream feeds transcription.
package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
)

const (
	defaultSampleRate = 16000
	pcmChannels       = 1
	pcmBitDepth       = 16
)

// Recorder tees the raw PCM stream to a per-interview file and encodes
// it when the interview finishes. Encoding prefers ffmpeg, then lame,
// then a plain WAV wrap so the recording always lands somewhere.
type Recorder struct {
	audioDir string

	mu          sync.Mutex
	interviewID string
	rawPath     string
	rawFile     *os.File
	sampleRate  int

	encode func(rawPath, interviewID string) (string, error)
}

func NewRecorder(audioDir string) *Recorder {
	if audioDir == "" {
		audioDir = filepath.Join("data", "audio")
	}
	r := &Recorder{audioDir: audioDir, sampleRate: defaultSampleRate}
	r.encode = r.defaultEncode
	return r
}

func (r *Recorder) SetSampleRate(sampleRate int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sampleRate > 0 {
		r.sampleRate = sampleRate
	}
}

// Writer wraps dst so that everything streamed to it is also captured
// into the current interview's raw PCM file.
func (r *Recorder) Writer(dst io.Writer) io.Writer {
	return &teeWriter{recorder: r, dst: dst}
}

// Begin opens the raw capture file for an interview, replacing any
// capture still open from a previous one.
func (r *Recorder) Begin(interviewID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.MkdirAll(r.audioDir, 0o755); err != nil {
		return fmt.Errorf("create audio directory: %w", err)
	}
	if r.rawFile != nil {
		_ = r.rawFile.Close()
	}

	rawPath := filepath.Join(r.audioDir, interviewID+".pcm")
	rawFile, err := os.OpenFile(rawPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open raw pcm file: %w", err)
	}

	r.interviewID = interviewID
	r.rawPath = rawPath
	r.rawFile = rawFile
	return nil
}

// Finish closes the raw capture, encodes it, and returns the encoded
// path. With no capture in progress it returns "", nil.
func (r *Recorder) Finish() (string, error) {
	r.mu.Lock()
	if r.interviewID == "" || r.rawFile == nil {
		r.mu.Unlock()
		return "", nil
	}
	interviewID := r.interviewID
	rawPath := r.rawPath
	rawFile := r.rawFile
	r.interviewID = ""
	r.rawPath = ""
	r.rawFile = nil
	r.mu.Unlock()

	if err := rawFile.Close(); err != nil {
		return "", fmt.Errorf("close raw pcm file: %w", err)
	}

	audioPath, err := r.encode(rawPath, interviewID)
	if err != nil {
		return "", err
	}

	_ = os.Remove(rawPath)
	return audioPath, nil
}

func (r *Recorder) writePCM(data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.rawFile == nil {
		return nil
	}
	if _, err := r.rawFile.Write(data); err != nil {
		return fmt.Errorf("write raw pcm bytes: %w", err)
	}
	return nil
}

func (r *Recorder) defaultEncode(rawPath, interviewID string) (string, error) {
	r.mu.Lock()
	sampleRate := r.sampleRate
	r.mu.Unlock()
	if sampleRate <= 0 {
		sampleRate = defaultSampleRate
	}

	mp3Path := filepath.Join(r.audioDir, interviewID+".mp3")
	for _, enc := range []func(string, string, int) error{encodeWithFFmpeg, encodeWithLame} {
		if err := enc(rawPath, mp3Path, sampleRate); err == nil {
			return mp3Path, nil
		}
	}

	wavPath := filepath.Join(r.audioDir, interviewID+".wav")
	if err := pcmToWav(rawPath, wavPath, sampleRate); err != nil {
		return "", fmt.Errorf("encode wav fallback: %w", err)
	}
	return wavPath, nil
}

func pcmToWav(rawPath, wavPath string, sampleRate int) error {
	pcmData, err := os.ReadFile(rawPath)
	if err != nil {
		return fmt.Errorf("read raw pcm data: %w", err)
	}

	out, err := os.OpenFile(wavPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open wav output: %w", err)
	}
	defer out.Close()

	if _, err := out.Write(wavHeader(len(pcmData), sampleRate)); err != nil {
		return fmt.Errorf("write wav header: %w", err)
	}
	if _, err := out.Write(pcmData); err != nil {
		return fmt.Errorf("write wav payload: %w", err)
	}
	return nil
}

// wavHeader builds the 44-byte canonical PCM WAV header.
func wavHeader(dataSize, sampleRate int) []byte {
	byteRate := sampleRate * pcmChannels * pcmBitDepth / 8
	blockAlign := pcmChannels * pcmBitDepth / 8

	h := make([]byte, 0, 44)
	h = append(h, "RIFF"...)
	h = binary.LittleEndian.AppendUint32(h, uint32(36+dataSize))
	h = append(h, "WAVE"...)
	h = append(h, "fmt "...)
	h = binary.LittleEndian.AppendUint32(h, 16)
	h = binary.LittleEndian.AppendUint16(h, 1)
	h = binary.LittleEndian.AppendUint16(h, pcmChannels)
	h = binary.LittleEndian.AppendUint32(h, uint32(sampleRate))
	h = binary.LittleEndian.AppendUint32(h, uint32(byteRate))
	h = binary.LittleEndian.AppendUint16(h, uint16(blockAlign))
	h = binary.LittleEndian.AppendUint16(h, pcmBitDepth)
	h = append(h, "data"...)
	h = binary.LittleEndian.AppendUint32(h, uint32(dataSize))
	return h
}

func encodeWithFFmpeg(rawPath, outputPath string, sampleRate int) error {
	return runEncoder("ffmpeg",
		"-y",
		"-f", "s16le",
		"-ar", strconv.Itoa(sampleRate),
		"-ac", "1",
		"-i", rawPath,
		outputPath,
	)
}

func encodeWithLame(rawPath, outputPath string, sampleRate int) error {
	khz := strconv.FormatFloat(float64(sampleRate)/1000.0, 'f', -1, 64)
	return runEncoder("lame",
		"-r",
		"-s", khz,
		"--bitwidth", "16",
		"-m", "m",
		rawPath,
		outputPath,
	)
}

func runEncoder(name string, args ...string) error {
	return exec.Command(name, args...).Run()
}

type teeWriter struct {
	recorder *Recorder
	dst      io.Writer
}

func (w *teeWriter) Write(p []byte) (int, error) {
	n, err := w.dst.Write(p)
	if err != nil {
		return n, err
	}
	if err := w.recorder.writePCM(p[:n]); err != nil {
		return n, err
	}
	return n, nil
}
