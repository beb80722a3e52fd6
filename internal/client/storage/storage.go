// Package storage reads and writes the key-value files behind a switch:
// the client's live per-user config and the switcher's credential vault.
package storage

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/natefinch/atomic"
	"gopkg.in/ini.v1"
)

// Passwords are opaque, so comment markers and trailing backslashes inside
// values must survive a load/save cycle untouched.
var loadOptions = ini.LoadOptions{
	IgnoreInlineComment:     true,
	IgnoreContinuation:      true,
	PreserveSurroundedQuote: true,
	KeyValueDelimiters:      "=",
}

// ErrUnrepresentable means a value would not read back unchanged from the
// file format.
var ErrUnrepresentable = errors.New("value cannot be stored verbatim")

// encodedPrefix marks a vault value kept as base64.
const encodedPrefix = "base64:"

func init() {
	// The client writes "Key = Value" without column alignment.
	ini.PrettyFormat = false
	ini.PrettyEqual = true
}

func exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// setKeys updates keys in place, or appends them when absent. NewKey only
// touches sec itself, never a dotted parent section.
func setKeys(sec *ini.Section, kv ...string) error {
	for i := 0; i+1 < len(kv); i += 2 {
		if _, err := sec.NewKey(kv[i], kv[i+1]); err != nil {
			return fmt.Errorf("set %s: %w", kv[i], err)
		}
	}
	return nil
}

// verbatim reports whether v survives a save/load cycle as is. The writer
// quotes values with edge whitespace, newlines or backticks, and the reader
// strips a leading """ or backtick pair.
func verbatim(v string) bool {
	if strings.TrimSpace(v) != v {
		return false
	}
	if strings.ContainsAny(v, "\n\r`") {
		return false
	}
	return !strings.HasPrefix(v, `"""`)
}

// encodeValue leaves plain values readable and base64-encodes the rest.
func encodeValue(v string) string {
	if verbatim(v) && !strings.HasPrefix(v, encodedPrefix) {
		return v
	}
	return encodedPrefix + base64.StdEncoding.EncodeToString([]byte(v))
}

func decodeValue(v string) (string, error) {
	rest, ok := strings.CutPrefix(v, encodedPrefix)
	if !ok {
		return v, nil
	}
	b, err := base64.StdEncoding.DecodeString(rest)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func load(path string) (*ini.File, error) {
	f, err := ini.LoadSources(loadOptions, path)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return f, nil
}

// save encodes f in memory first and swaps it into place, so a failed
// encode never truncates the file on disk.
func save(f *ini.File, path string) error {
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := atomic.WriteFile(path, &buf); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
