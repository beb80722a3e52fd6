// Package statedb patches the player name cached in the client's binary
// state store (osu!.db).
//
// Only the header is parsed:
//
//	int32   client version
//	int32   folder count
//	bool    account unlocked
//	int64   unlock date (ticks)
//	string  player name
//
// Strings are a 0x00 byte when absent, or 0x0b followed by a ULEB128 byte
// length and UTF-8 data. Everything after the player name is copied as is.
package statedb

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"unicode/utf8"

	"github.com/natefinch/atomic"

	"github.com/atinyakov/ServerSwitcher/internal/models"
)

var (
	// ErrCorruptState means the header could not be parsed.
	ErrCorruptState = models.ErrCorruptState
	// ErrMissingState means the state store does not exist.
	ErrMissingState = models.ErrMissingState
)

const (
	stringAbsent  byte = 0x00
	stringPresent byte = 0x0b

	// version, folder count, unlocked flag, unlock date
	fixedHeaderLen = 4 + 4 + 1 + 8
	// beatmap count that must follow the player name
	trailerMinLen = 4
)

type header struct {
	version    int32
	nameStart  int
	nameEnd    int
	playerName string
}

func parseHeader(data []byte) (header, error) {
	if len(data) < fixedHeaderLen+1 {
		return header{}, fmt.Errorf("%w: %d bytes is shorter than the header", ErrCorruptState, len(data))
	}
	h := header{
		version:   int32(binary.LittleEndian.Uint32(data[0:4])),
		nameStart: fixedHeaderLen,
	}
	if h.version <= 0 {
		return header{}, fmt.Errorf("%w: bad version %d", ErrCorruptState, h.version)
	}
	if unlocked := data[8]; unlocked > 1 {
		return header{}, fmt.Errorf("%w: bad unlocked flag 0x%02x", ErrCorruptState, unlocked)
	}

	name, n, err := readString(data[h.nameStart:])
	if err != nil {
		return header{}, err
	}
	h.playerName = name
	h.nameEnd = h.nameStart + n
	if len(data)-h.nameEnd < trailerMinLen {
		return header{}, fmt.Errorf("%w: truncated after player name", ErrCorruptState)
	}
	return h, nil
}

// readString decodes one string and returns it with the bytes consumed.
func readString(b []byte) (string, int, error) {
	switch b[0] {
	case stringAbsent:
		return "", 1, nil
	case stringPresent:
	default:
		return "", 0, fmt.Errorf("%w: bad string marker 0x%02x", ErrCorruptState, b[0])
	}
	size, n := binary.Uvarint(b[1:])
	if n <= 0 {
		return "", 0, fmt.Errorf("%w: bad string length", ErrCorruptState)
	}
	start := 1 + n
	if size > uint64(len(b)-start) {
		return "", 0, fmt.Errorf("%w: string length %d overruns the file", ErrCorruptState, size)
	}
	s := b[start : start+int(size)]
	if !utf8.Valid(s) {
		return "", 0, fmt.Errorf("%w: player name is not UTF-8", ErrCorruptState)
	}
	return string(s), start + int(size), nil
}

func appendString(dst []byte, s string) []byte {
	if s == "" {
		return append(dst, stringAbsent)
	}
	dst = append(dst, stringPresent)
	dst = binary.AppendUvarint(dst, uint64(len(s)))
	return append(dst, s...)
}

// Patcher rewrites the player name of one state store file.
type Patcher struct {
	path string
}

// NewPatcher returns a patcher for the state store at path.
func NewPatcher(path string) *Patcher {
	return &Patcher{path: path}
}

// Available reports whether the state store exists.
func (p *Patcher) Available() bool {
	_, err := os.Stat(p.path)
	return err == nil
}

func (p *Patcher) read() ([]byte, header, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, header{}, fmt.Errorf("%w: %s", ErrMissingState, p.path)
		}
		return nil, header{}, fmt.Errorf("read %s: %w", p.path, err)
	}
	h, err := parseHeader(data)
	if err != nil {
		return nil, header{}, err
	}
	return data, h, nil
}

// PlayerName returns the cached player name.
func (p *Patcher) PlayerName() (string, error) {
	_, h, err := p.read()
	if err != nil {
		return "", err
	}
	return h.playerName, nil
}

// SetPlayerName replaces the cached player name and leaves every other
// byte of the store as it was. The file is untouched on ErrCorruptState.
func (p *Patcher) SetPlayerName(name string) error {
	data, h, err := p.read()
	if err != nil {
		return err
	}
	if h.playerName == name {
		return nil
	}

	out := make([]byte, 0, len(data)-(h.nameEnd-h.nameStart)+len(name)+binary.MaxVarintLen64+1)
	out = append(out, data[:h.nameStart]...)
	out = appendString(out, name)
	out = append(out, data[h.nameEnd:]...)

	if err := atomic.WriteFile(p.path, bytes.NewReader(out)); err != nil {
		return fmt.Errorf("write %s: %w", p.path, err)
	}
	return nil
}
