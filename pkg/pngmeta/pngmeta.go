// Package pngmeta reads and writes PNG text chunks (tEXt, iTXt, and the
// host ecosystem's bare "comf" variant) directly at the chunk level,
// without decoding pixel data. The reader is byte-exact with the chunk
// layout the host application writes: callers cross-check its output
// against metadata the host itself embedded, so the framing here must not
// drift from the container format.
//
// Malformed input never fails the reader. A truncated or corrupt stream
// yields every chunk fully parsed before the damage and nothing else.
package pngmeta

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"io"
	"os"
	"strings"
)

// PNG chunk stream framing: 4-byte big-endian length, 4-byte ASCII type,
// payload, 4-byte CRC. IEND terminates the stream.
const (
	chunkHeaderSize  = 8
	chunkTrailerSize = 4

	typeText     = "tEXt"
	typeIntlText = "iTXt"
	typeComf     = "comf"
	typeEnd      = "IEND"
)

var pngSignature = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}

// ReadTextChunks scans the PNG chunk stream from r and returns a mapping
// from chunk keyword to decoded text for every recognized text chunk
// before IEND. Keywords decode as Latin-1 and must be non-empty; chunks
// without a valid keyword are skipped. Unrecognized chunk types are
// skipped by their declared length, never scanned for a delimiter. CRCs
// are not verified.
func ReadTextChunks(r io.Reader) map[string]string {
	result := map[string]string{}

	sig := make([]byte, len(pngSignature))
	if _, err := io.ReadFull(r, sig); err != nil {
		return result
	}
	if !bytes.Equal(sig[:4], pngSignature[:4]) {
		return result
	}

	header := make([]byte, chunkHeaderSize)
	for {
		if _, err := io.ReadFull(r, header); err != nil {
			return result
		}
		length := binary.BigEndian.Uint32(header[:4])
		chunkType := string(header[4:8])
		if length > 0x7FFFFFFF {
			// Invalid per the container format; the stream is corrupt
			// beyond this point.
			return result
		}

		switch chunkType {
		case typeText, typeIntlText, typeComf:
			data := make([]byte, length)
			if _, err := io.ReadFull(r, data); err != nil {
				return result
			}
			if keyword, text, ok := decodeTextPayload(chunkType, data); ok {
				result[keyword] = text
			}
		case typeEnd:
			return result
		default:
			if _, err := io.CopyN(io.Discard, r, int64(length)); err != nil {
				return result
			}
		}

		if _, err := io.CopyN(io.Discard, r, chunkTrailerSize); err != nil {
			return result
		}
	}
}

// ReadFileTextChunks opens path and reads its text chunks. The single
// error case is the file being unopenable; parse problems degrade to a
// partial (possibly empty) map as with ReadTextChunks.
func ReadFileTextChunks(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadTextChunks(f), nil
}

// decodeTextPayload splits a text chunk payload into keyword and text.
// tEXt and comf carry keyword NUL text. iTXt carries keyword NUL,
// a compression flag byte, a compression method byte, language NUL,
// translated keyword NUL, then text; a set compression flag means the
// text is zlib-deflated.
func decodeTextPayload(chunkType string, data []byte) (string, string, bool) {
	nul := bytes.IndexByte(data, 0)
	if nul <= 0 {
		return "", "", false
	}
	keyword := decodeLatin1(data[:nul])
	rest := data[nul+1:]

	if chunkType != typeIntlText {
		return keyword, string(rest), true
	}

	if len(rest) < 2 {
		return "", "", false
	}
	compressed := rest[0] != 0
	rest = rest[2:]

	// Language tag, then translated keyword, both NUL terminated.
	for i := 0; i < 2; i++ {
		next := bytes.IndexByte(rest, 0)
		if next < 0 {
			return "", "", false
		}
		rest = rest[next+1:]
	}

	if !compressed {
		return keyword, string(rest), true
	}
	inflated, err := inflate(rest)
	if err != nil {
		return "", "", false
	}
	return keyword, string(inflated), true
}

func inflate(data []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}

// decodeLatin1 maps each byte to the Unicode code point of the same value.
func decodeLatin1(data []byte) string {
	var b strings.Builder
	b.Grow(len(data))
	for _, c := range data {
		b.WriteRune(rune(c))
	}
	return b.String()
}

// HasKey reports whether chunks contains key (compared case-insensitively)
// with a non-empty value.
func HasKey(chunks map[string]string, key string) bool {
	for k, v := range chunks {
		if strings.EqualFold(k, key) && v != "" {
			return true
		}
	}
	return false
}
