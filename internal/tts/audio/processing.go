// Package audio inspects the WAV artifacts produced by the synthesis process.
package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

// Limits used when validating a decoded header.
const (
	MaxSampleRate = 192000
	MaxChannels   = 8
)

// RIFF container identifiers.
const (
	riffID     = "RIFF"
	waveID     = "WAVE"
	fmtChunk   = "fmt "
	dataChunk  = "data"
	headerSize = 12
	chunkHead  = 8
	fmtMinSize = 16
)

var (
	// ErrNotWAV indicates that the file is not a RIFF/WAVE container.
	ErrNotWAV = errors.New("not a wav file")
	// ErrInvalidFormat indicates a malformed or out-of-range fmt chunk.
	ErrInvalidFormat = errors.New("invalid wav format")
	// ErrNoAudioData indicates that the data chunk is missing or empty.
	ErrNoAudioData = errors.New("wav file has no audio data")
)

// Info describes a WAV file.
type Info struct {
	Size          int64
	SampleRate    int
	Channels      int
	BitsPerSample int
	DataBytes     int64
	Duration      time.Duration
}

// Inspect reads the WAV header at path and validates it.
func Inspect(path string) (*Info, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio file: %w", err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat audio file: %w", err)
	}

	info, err := Parse(file)
	if err != nil {
		return nil, err
	}

	info.Size = stat.Size()

	return info, nil
}

// Parse walks the RIFF chunks of r until both fmt and data have been seen.
func Parse(r io.Reader) (*Info, error) {
	header := make([]byte, headerSize)

	_, err := io.ReadFull(r, header)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotWAV, err)
	}

	if string(header[0:4]) != riffID || string(header[8:12]) != waveID {
		return nil, ErrNotWAV
	}

	info := &Info{}
	byteRate := 0
	seenFmt := false

	for {
		chunk := make([]byte, chunkHead)

		_, err = io.ReadFull(r, chunk)
		if err != nil {
			break
		}

		id := string(chunk[0:4])
		size := int64(binary.LittleEndian.Uint32(chunk[4:8]))

		switch id {
		case fmtChunk:
			byteRate, err = parseFmt(r, size, info)
			if err != nil {
				return nil, err
			}

			seenFmt = true
		case dataChunk:
			if !seenFmt {
				return nil, fmt.Errorf("%w: data chunk before fmt chunk", ErrInvalidFormat)
			}

			info.DataBytes = size

			return finish(info, byteRate)
		default:
			_, err = io.CopyN(io.Discard, r, size+size%2)
			if err != nil {
				return nil, fmt.Errorf("%w: truncated %q chunk", ErrInvalidFormat, id)
			}
		}
	}

	return nil, ErrNoAudioData
}

func parseFmt(r io.Reader, size int64, info *Info) (int, error) {
	if size < fmtMinSize {
		return 0, fmt.Errorf("%w: fmt chunk is %d bytes", ErrInvalidFormat, size)
	}

	body := make([]byte, size+size%2)

	_, err := io.ReadFull(r, body)
	if err != nil {
		return 0, fmt.Errorf("%w: truncated fmt chunk", ErrInvalidFormat)
	}

	info.Channels = int(binary.LittleEndian.Uint16(body[2:4]))
	info.SampleRate = int(binary.LittleEndian.Uint32(body[4:8]))
	byteRate := int(binary.LittleEndian.Uint32(body[8:12]))
	info.BitsPerSample = int(binary.LittleEndian.Uint16(body[14:16]))

	if info.SampleRate <= 0 || info.SampleRate > MaxSampleRate {
		return 0, fmt.Errorf("%w: sample rate %d", ErrInvalidFormat, info.SampleRate)
	}

	if info.Channels <= 0 || info.Channels > MaxChannels {
		return 0, fmt.Errorf("%w: %d channels", ErrInvalidFormat, info.Channels)
	}

	return byteRate, nil
}

func finish(info *Info, byteRate int) (*Info, error) {
	if info.DataBytes == 0 {
		return nil, ErrNoAudioData
	}

	if byteRate > 0 {
		info.Duration = time.Duration(float64(info.DataBytes) / float64(byteRate) * float64(time.Second))
	}

	return info, nil
}
