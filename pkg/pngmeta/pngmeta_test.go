package pngmeta_test

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/WASasquatch/ComfyUI-Viewer-Image-Search-Extension/pkg/pngmeta"
)

var pngSig = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}

func rawChunk(chunkType string, payload []byte) []byte {
	var buf bytes.Buffer
	lenBytes := make([]byte, 4)
	binary.BigEndian.PutUint32(lenBytes, uint32(len(payload)))
	buf.Write(lenBytes)
	buf.WriteString(chunkType)
	buf.Write(payload)
	crc := crc32.NewIEEE()
	crc.Write([]byte(chunkType))
	crc.Write(payload)
	crcBytes := make([]byte, 4)
	binary.BigEndian.PutUint32(crcBytes, crc.Sum32())
	buf.Write(crcBytes)
	return buf.Bytes()
}

func stream(chunks ...[]byte) *bytes.Reader {
	var buf bytes.Buffer
	buf.Write(pngSig)
	for _, c := range chunks {
		buf.Write(c)
	}
	return bytes.NewReader(buf.Bytes())
}

func textPayload(keyword, text string) []byte {
	return append(append([]byte(keyword), 0), []byte(text)...)
}

func intlPayload(keyword string, compressed bool, lang, translated string, text []byte) []byte {
	payload := append([]byte(keyword), 0)
	if compressed {
		payload = append(payload, 1)
	} else {
		payload = append(payload, 0)
	}
	payload = append(payload, 0) // compression method
	payload = append(payload, []byte(lang)...)
	payload = append(payload, 0)
	payload = append(payload, []byte(translated)...)
	payload = append(payload, 0)
	return append(payload, text...)
}

var _ = Describe("ReadTextChunks", func() {
	It("reads a tEXt chunk", func() {
		r := stream(rawChunk("tEXt", textPayload("prompt", `{"1":{}}`)), rawChunk("IEND", nil))
		chunks := pngmeta.ReadTextChunks(r)
		Expect(chunks).To(HaveKeyWithValue("prompt", `{"1":{}}`))
	})

	It("reads a comf chunk like tEXt", func() {
		r := stream(rawChunk("comf", textPayload("workflow", "abc")), rawChunk("IEND", nil))
		Expect(pngmeta.ReadTextChunks(r)).To(HaveKeyWithValue("workflow", "abc"))
	})

	It("reads an uncompressed iTXt chunk with language fields", func() {
		payload := intlPayload("workflow", false, "en", "Workflow", []byte(`{"nodes":[]}`))
		r := stream(rawChunk("iTXt", payload), rawChunk("IEND", nil))
		Expect(pngmeta.ReadTextChunks(r)).To(HaveKeyWithValue("workflow", `{"nodes":[]}`))
	})

	It("inflates a compressed iTXt chunk", func() {
		var deflated bytes.Buffer
		zw := zlib.NewWriter(&deflated)
		_, err := zw.Write([]byte("compressed body"))
		Expect(err).NotTo(HaveOccurred())
		Expect(zw.Close()).To(Succeed())

		payload := intlPayload("notes", true, "", "", deflated.Bytes())
		r := stream(rawChunk("iTXt", payload), rawChunk("IEND", nil))
		Expect(pngmeta.ReadTextChunks(r)).To(HaveKeyWithValue("notes", "compressed body"))
	})

	It("skips an iTXt chunk whose compressed body does not inflate", func() {
		payload := intlPayload("broken", true, "", "", []byte{0xDE, 0xAD, 0xBE, 0xEF})
		r := stream(
			rawChunk("iTXt", payload),
			rawChunk("tEXt", textPayload("after", "still parsed")),
			rawChunk("IEND", nil),
		)
		chunks := pngmeta.ReadTextChunks(r)
		Expect(chunks).NotTo(HaveKey("broken"))
		Expect(chunks).To(HaveKeyWithValue("after", "still parsed"))
	})

	It("decodes keywords as Latin-1", func() {
		r := stream(rawChunk("tEXt", textPayload("caf\xe9", "v")), rawChunk("IEND", nil))
		Expect(pngmeta.ReadTextChunks(r)).To(HaveKeyWithValue("café", "v"))
	})

	It("skips chunks with an empty keyword", func() {
		r := stream(rawChunk("tEXt", append([]byte{0}, []byte("orphan")...)), rawChunk("IEND", nil))
		Expect(pngmeta.ReadTextChunks(r)).To(BeEmpty())
	})

	It("skips chunks without a keyword terminator", func() {
		r := stream(
			rawChunk("tEXt", []byte("no terminator here")),
			rawChunk("tEXt", textPayload("ok", "yes")),
			rawChunk("IEND", nil),
		)
		chunks := pngmeta.ReadTextChunks(r)
		Expect(chunks).To(HaveLen(1))
		Expect(chunks).To(HaveKeyWithValue("ok", "yes"))
	})

	It("skips unrecognized chunk types by declared length", func() {
		binaryJunk := []byte{0, 1, 2, 0, 0, 3}
		r := stream(
			rawChunk("IDAT", binaryJunk),
			rawChunk("tEXt", textPayload("k", "v")),
			rawChunk("IEND", nil),
		)
		Expect(pngmeta.ReadTextChunks(r)).To(HaveKeyWithValue("k", "v"))
	})

	It("stops at IEND", func() {
		r := stream(
			rawChunk("tEXt", textPayload("before", "1")),
			rawChunk("IEND", nil),
			rawChunk("tEXt", textPayload("after", "2")),
		)
		chunks := pngmeta.ReadTextChunks(r)
		Expect(chunks).To(HaveKeyWithValue("before", "1"))
		Expect(chunks).NotTo(HaveKey("after"))
	})

	It("returns chunks parsed before a mid-chunk truncation", func() {
		full := rawChunk("tEXt", textPayload("kept", "complete"))
		cut := rawChunk("tEXt", textPayload("lost", "this chunk is cut short"))
		var buf bytes.Buffer
		buf.Write(pngSig)
		buf.Write(full)
		buf.Write(cut[:len(cut)-10])

		chunks := pngmeta.ReadTextChunks(bytes.NewReader(buf.Bytes()))
		Expect(chunks).To(HaveKeyWithValue("kept", "complete"))
		Expect(chunks).NotTo(HaveKey("lost"))
	})

	It("returns empty for a non-PNG stream", func() {
		Expect(pngmeta.ReadTextChunks(bytes.NewReader([]byte("GIF89a not a png")))).To(BeEmpty())
	})

	It("returns empty for an empty stream", func() {
		Expect(pngmeta.ReadTextChunks(bytes.NewReader(nil))).To(BeEmpty())
	})
})

var _ = Describe("HasKey", func() {
	It("matches case-insensitively", func() {
		chunks := map[string]string{"Workflow": "{}"}
		Expect(pngmeta.HasKey(chunks, "workflow")).To(BeTrue())
	})

	It("rejects empty values", func() {
		chunks := map[string]string{"prompt": ""}
		Expect(pngmeta.HasKey(chunks, "prompt")).To(BeFalse())
	})

	It("rejects absent keys", func() {
		Expect(pngmeta.HasKey(map[string]string{}, "prompt")).To(BeFalse())
	})
})

var _ = Describe("EncodeTextChunk", func() {
	It("round-trips through ReadTextChunks", func() {
		chunk := pngmeta.EncodeTextChunk("workflow", `{"nodes":[1,2]}`)
		r := stream(chunk, rawChunk("IEND", nil))
		Expect(pngmeta.ReadTextChunks(r)).To(HaveKeyWithValue("workflow", `{"nodes":[1,2]}`))
	})

	It("produces byte-identical framing to the reference layout", func() {
		Expect(pngmeta.EncodeTextChunk("k", "v")).To(Equal(rawChunk("tEXt", textPayload("k", "v"))))
	})
})

var _ = Describe("InsertTextChunks", func() {
	encodeTestImage := func() []byte {
		img := image.NewRGBA(image.Rect(0, 0, 4, 4))
		for y := 0; y < 4; y++ {
			for x := 0; x < 4; x++ {
				img.Set(x, y, color.RGBA{R: uint8(x * 60), G: uint8(y * 60), B: 128, A: 255})
			}
		}
		var buf bytes.Buffer
		Expect(png.Encode(&buf, img)).To(Succeed())
		return buf.Bytes()
	}

	It("splices chunks that decoders and the reader both see", func() {
		spliced, err := pngmeta.InsertTextChunks(encodeTestImage(), map[string]string{
			"workflow": `{"a":1}`,
			"prompt":   `{"b":2}`,
		})
		Expect(err).NotTo(HaveOccurred())

		chunks := pngmeta.ReadTextChunks(bytes.NewReader(spliced))
		Expect(chunks).To(HaveKeyWithValue("workflow", `{"a":1}`))
		Expect(chunks).To(HaveKeyWithValue("prompt", `{"b":2}`))

		decoded, err := png.Decode(bytes.NewReader(spliced))
		Expect(err).NotTo(HaveOccurred())
		Expect(decoded.Bounds().Dx()).To(Equal(4))
	})

	It("rejects non-PNG input", func() {
		_, err := pngmeta.InsertTextChunks([]byte("plain text"), map[string]string{"k": "v"})
		Expect(err).To(MatchError(pngmeta.ErrNotPNG))
	})

	It("leaves the original bytes untouched", func() {
		original := encodeTestImage()
		snapshot := append([]byte(nil), original...)
		_, err := pngmeta.InsertTextChunks(original, map[string]string{"k": "v"})
		Expect(err).NotTo(HaveOccurred())
		Expect(original).To(Equal(snapshot))
	})
})
