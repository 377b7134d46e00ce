package export

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"
)

// Format is the record encoding of an export file.
type Format string

const (
	FormatJSONLines Format = "jsonl"
	FormatMsgpack   Format = "msgpack"
)

// ParseFormat accepts jsonl (the default when empty) and msgpack.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", FormatJSONLines:
		return FormatJSONLines, nil
	case FormatMsgpack:
		return FormatMsgpack, nil
	}
	return "", fmt.Errorf("unknown export format %q", s)
}

func (f Format) ext() string {
	if f == FormatMsgpack {
		return ".msgpack"
	}
	return ".jsonl"
}

type encoder interface {
	Encode(v any) error
}

// file is one export file: an encoder over an optional zstd stream over a
// buffered os.File.
type file struct {
	path string
	f    *os.File
	bw   *bufio.Writer
	zw   *zstd.Encoder
	enc  encoder
}

func createFile(dir, name string, format Format, compress bool) (*file, error) {
	path := filepath.Join(dir, name+format.ext())
	if compress {
		path += ".zst"
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
	out := &file{path: path, f: f, bw: bufio.NewWriter(f)}

	var w io.Writer = out.bw
	if compress {
		zw, err := zstd.NewWriter(out.bw, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("create zstd encoder: %w", err)
		}
		out.zw = zw
		w = zw
	}

	switch format {
	case FormatMsgpack:
		enc := msgpack.NewEncoder(w)
		enc.SetSortMapKeys(true)
		out.enc = enc
	default:
		out.enc = json.NewEncoder(w)
	}
	return out, nil
}

// Close flushes every layer and closes the file.
func (f *file) Close() error {
	var first error
	if f.zw != nil {
		if err := f.zw.Close(); err != nil {
			first = err
		}
	}
	if err := f.bw.Flush(); err != nil && first == nil {
		first = err
	}
	if err := f.f.Close(); err != nil && first == nil {
		first = err
	}
	if first != nil {
		return fmt.Errorf("close %s: %w", f.path, first)
	}
	return nil
}
