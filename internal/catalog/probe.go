package catalog

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-audio/wav"
	mp3 "github.com/hajimehoshi/go-mp3"
	"github.com/tphakala/flac"
)

// wavHeaderSize is the standard PCM RIFF header; the sample-count estimate
// assumes no extra metadata chunks.
const wavHeaderSize = 44

// AudioInfo describes a sound file's format without decoding it.
type AudioInfo struct {
	SampleRate   int
	TotalSamples int
	NumChannels  int
	BitDepth     int
}

// Duration returns the playing time at pitch 1.0.
func (i AudioInfo) Duration() time.Duration {
	if i.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(i.TotalSamples) / float64(i.SampleRate) * float64(time.Second))
}

// ProbeFile reads format information from a WAV, FLAC, or MP3 file header.
func ProbeFile(path string) (AudioInfo, error) {
	file, err := os.Open(path)
	if err != nil {
		return AudioInfo{}, err
	}
	defer file.Close()

	switch lowerExt(path) {
	case ".wav":
		return readWAVInfo(file)
	case ".flac":
		return readFLACInfo(file)
	case ".mp3":
		return readMP3Info(file)
	default:
		return AudioInfo{}, fmt.Errorf("unsupported audio format: %s", lowerExt(path))
	}
}

func readWAVInfo(file *os.File) (AudioInfo, error) {
	decoder := wav.NewDecoder(file)
	decoder.ReadInfo()

	if !decoder.IsValidFile() {
		return AudioInfo{}, errors.New("invalid WAV file format")
	}

	if decoder.BitDepth != 16 && decoder.BitDepth != 24 && decoder.BitDepth != 32 {
		return AudioInfo{}, fmt.Errorf("unsupported bit depth: %d", decoder.BitDepth)
	}

	if decoder.NumChans != 1 && decoder.NumChans != 2 {
		return AudioInfo{}, fmt.Errorf("unsupported number of channels: %d", decoder.NumChans)
	}

	fileInfo, err := file.Stat()
	if err != nil {
		return AudioInfo{}, err
	}

	// Estimate sample count from the file size; the exact count comes from
	// decoding.
	bytesPerSample := int(decoder.BitDepth / 8)
	pcmBytes := int(fileInfo.Size()) - wavHeaderSize
	if pcmBytes < 0 {
		pcmBytes = 0
	}
	totalSamples := pcmBytes / bytesPerSample / int(decoder.NumChans)

	return AudioInfo{
		SampleRate:   int(decoder.SampleRate),
		TotalSamples: totalSamples,
		NumChannels:  int(decoder.NumChans),
		BitDepth:     int(decoder.BitDepth),
	}, nil
}

func readFLACInfo(file *os.File) (AudioInfo, error) {
	decoder, err := flac.NewDecoder(file)
	if err != nil {
		return AudioInfo{}, err
	}

	return AudioInfo{
		SampleRate:   decoder.SampleRate,
		TotalSamples: int(decoder.TotalSamples),
		NumChannels:  decoder.NChannels,
		BitDepth:     decoder.BitsPerSample,
	}, nil
}

// readMP3Info reports the decoded stream format: go-mp3 always produces
// 16-bit stereo at the source sample rate.
func readMP3Info(file *os.File) (AudioInfo, error) {
	decoder, err := mp3.NewDecoder(file)
	if err != nil {
		return AudioInfo{}, err
	}

	length := decoder.Length()
	if length < 0 {
		length = 0
	}

	return AudioInfo{
		SampleRate:   decoder.SampleRate(),
		TotalSamples: int(length) / 4, // 2 channels of 2 bytes each
		NumChannels:  2,
		BitDepth:     16,
	}, nil
}

func getAudioDivisor(bitDepth int) (float32, error) {
	switch bitDepth {
	case 16:
		return 32768.0, nil
	case 24:
		return 8388608.0, nil
	case 32:
		return 2147483648.0, nil
	default:
		return 0, fmt.Errorf("unsupported audio bit depth: %d", bitDepth)
	}
}
