package audio

import (
	"encoding/binary"
	"io"

	"github.com/gordonklaus/portaudio"
)

// Mic wraps a PortAudio capture stream. It is the fallback input when
// the transcription SDK's own microphone layer is not in use.
type Mic struct {
	stream *portaudio.Stream
	buf    []int16
}

// NewMic opens the default capture device at the given sample rate and
// buffer size in frames. The caller owns portaudio.Initialize.
func NewMic(sampleRate, framesPerBuffer int) (*Mic, error) {
	buf := make([]int16, framesPerBuffer)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(sampleRate), framesPerBuffer, buf)
	if err != nil {
		return nil, err
	}
	return &Mic{stream: stream, buf: buf}, nil
}

func (m *Mic) Start() error { return m.stream.Start() }
func (m *Mic) Stop() error  { return m.stream.Stop() }

// Stream reads from the device and writes PCM16-LE frames to w until
// the stream errors or is stopped.
func (m *Mic) Stream(w io.Writer) error {
	out := make([]byte, len(m.buf)*2)
	for {
		if err := m.stream.Read(); err != nil {
			return err
		}
		for i, s := range m.buf {
			binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
		}
		if _, err := w.Write(out); err != nil {
			return err
		}
	}
}
