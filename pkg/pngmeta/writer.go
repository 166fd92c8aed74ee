package pngmeta

import (
	"bytes"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"sort"
)

var (
	// ErrNotPNG reports input that does not start with the PNG signature.
	ErrNotPNG = errors.New("pngmeta: not a png stream")
	// ErrNoHeader reports a PNG whose first chunk is not IHDR.
	ErrNoHeader = errors.New("pngmeta: missing header chunk")
)

// EncodeTextChunk builds a complete tEXt chunk (length, type, keyword NUL
// text, CRC) for the given pair. Keyword runes above the Latin-1 range are
// replaced with '?' since the container format cannot carry them.
func EncodeTextChunk(keyword, text string) []byte {
	payload := make([]byte, 0, len(keyword)+1+len(text))
	for _, r := range keyword {
		if r > 0xFF {
			r = '?'
		}
		payload = append(payload, byte(r))
	}
	payload = append(payload, 0)
	payload = append(payload, text...)

	chunk := make([]byte, 0, chunkHeaderSize+len(payload)+chunkTrailerSize)
	chunk = binary.BigEndian.AppendUint32(chunk, uint32(len(payload)))
	chunk = append(chunk, typeText...)
	chunk = append(chunk, payload...)

	crc := crc32.NewIEEE()
	crc.Write([]byte(typeText))
	crc.Write(payload)
	return binary.BigEndian.AppendUint32(chunk, crc.Sum32())
}

// InsertTextChunks splices one tEXt chunk per entry of texts into an
// encoded PNG, directly after the header chunk where the host ecosystem's
// readers expect text to appear. Entries are written in sorted keyword
// order so output is deterministic. The input slice is not modified.
func InsertTextChunks(png []byte, texts map[string]string) ([]byte, error) {
	if len(png) < len(pngSignature)+chunkHeaderSize || !bytes.Equal(png[:4], pngSignature[:4]) {
		return nil, ErrNotPNG
	}
	header := png[len(pngSignature):]
	if string(header[4:8]) != "IHDR" {
		return nil, ErrNoHeader
	}
	headerLen := binary.BigEndian.Uint32(header[:4])
	splitAt := len(pngSignature) + chunkHeaderSize + int(headerLen) + chunkTrailerSize
	if splitAt > len(png) {
		return nil, ErrNoHeader
	}

	keys := make([]string, 0, len(texts))
	for k := range texts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]byte, 0, len(png)+len(texts)*64)
	out = append(out, png[:splitAt]...)
	for _, k := range keys {
		out = append(out, EncodeTextChunk(k, texts[k])...)
	}
	return append(out, png[splitAt:]...), nil
}
