package catalog

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	mp3 "github.com/hajimehoshi/go-mp3"
	"github.com/tphakala/flac"
)

// clip holds fully decoded interleaved PCM. It implements soundcore.Clip.
type clip struct {
	samples    []float32
	sampleRate int
	channels   int
	duration   time.Duration
}

func newClip(samples []float32, sampleRate, channels int) *clip {
	var d time.Duration
	if sampleRate > 0 && channels > 0 {
		frames := len(samples) / channels
		d = time.Duration(float64(frames) / float64(sampleRate) * float64(time.Second))
	}
	return &clip{
		samples:    samples,
		sampleRate: sampleRate,
		channels:   channels,
		duration:   d,
	}
}

func (c *clip) Duration() time.Duration { return c.duration }
func (c *clip) SampleRate() int         { return c.sampleRate }
func (c *clip) Channels() int           { return c.channels }
func (c *clip) Samples() []float32      { return c.samples }

// decodeFile decodes a sound file into interleaved float32 PCM in [-1, 1].
func decodeFile(path string) (*clip, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	switch lowerExt(path) {
	case ".wav":
		return decodeWAV(file)
	case ".flac":
		return decodeFLAC(file)
	case ".mp3":
		return decodeMP3(file)
	default:
		return nil, fmt.Errorf("unsupported audio format: %s", lowerExt(path))
	}
}

func decodeWAV(file *os.File) (*clip, error) {
	decoder := wav.NewDecoder(file)
	decoder.ReadInfo()
	if !decoder.IsValidFile() {
		return nil, errors.New("input is not a valid WAV audio file")
	}

	divisor, err := getAudioDivisor(int(decoder.BitDepth))
	if err != nil {
		return nil, err
	}

	buf := &audio.IntBuffer{
		Data: make([]int, 32768),
		Format: &audio.Format{
			SampleRate:  int(decoder.SampleRate),
			NumChannels: int(decoder.NumChans),
		},
	}

	var samples []float32
	for {
		n, err := decoder.PCMBuffer(buf)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			break
		}
		for _, sample := range buf.Data[:n] {
			samples = append(samples, float32(sample)/divisor)
		}
	}

	return newClip(samples, int(decoder.SampleRate), int(decoder.NumChans)), nil
}

func decodeFLAC(file *os.File) (*clip, error) {
	decoder, err := flac.NewDecoder(file)
	if err != nil {
		return nil, err
	}

	divisor, err := getAudioDivisor(decoder.BitsPerSample)
	if err != nil {
		return nil, err
	}
	bytesPerSample := decoder.BitsPerSample / 8

	var samples []float32
	for {
		frame, err := decoder.Next()
		if errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			return nil, err
		}

		for i := 0; i+bytesPerSample <= len(frame); i += bytesPerSample {
			var sample int32
			switch decoder.BitsPerSample {
			case 16:
				sample = int32(int16(binary.LittleEndian.Uint16(frame[i:])))
			case 24:
				sample = int32(frame[i]) | int32(frame[i+1])<<8 | int32(frame[i+2])<<16
				// sign-extend from 24 bits
				sample = sample << 8 >> 8
			case 32:
				sample = int32(binary.LittleEndian.Uint32(frame[i:]))
			}
			samples = append(samples, float32(sample)/divisor)
		}
	}

	return newClip(samples, decoder.SampleRate, decoder.NChannels), nil
}

// decodeMP3 reads the whole decoded stream; go-mp3 emits 16-bit little
// endian stereo regardless of the source layout.
func decodeMP3(file *os.File) (*clip, error) {
	decoder, err := mp3.NewDecoder(file)
	if err != nil {
		return nil, err
	}

	data, err := io.ReadAll(decoder)
	if err != nil {
		return nil, err
	}

	samples := make([]float32, 0, len(data)/2)
	for i := 0; i+1 < len(data); i += 2 {
		sample := int16(binary.LittleEndian.Uint16(data[i:]))
		samples = append(samples, float32(sample)/32768.0)
	}

	return newClip(samples, decoder.SampleRate(), 2), nil
}
