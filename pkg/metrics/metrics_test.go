package metrics_test

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/WASasquatch/ComfyUI-Viewer-Image-Search-Extension/pkg/dirs"
	"github.com/WASasquatch/ComfyUI-Viewer-Image-Search-Extension/pkg/metrics"
	"github.com/WASasquatch/ComfyUI-Viewer-Image-Search-Extension/pkg/pngmeta"
)

func fillImage(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func writePNG(path string, img image.Image, texts map[string]string) {
	var buf bytes.Buffer
	Expect(png.Encode(&buf, img)).To(Succeed())
	data := buf.Bytes()
	if len(texts) > 0 {
		var err error
		data, err = pngmeta.InsertTextChunks(data, texts)
		Expect(err).ToNot(HaveOccurred())
	}
	Expect(os.WriteFile(path, data, 0o644)).To(Succeed())
}

var _ = Describe("Gatherer", func() {
	var (
		d        dirs.Dirs
		gatherer *metrics.Gatherer
	)

	BeforeEach(func() {
		root := GinkgoT().TempDir()
		d = dirs.Dirs{
			Input:  filepath.Join(root, "input"),
			Output: filepath.Join(root, "output"),
			Temp:   filepath.Join(root, "temp"),
		}
		for _, p := range []string{d.Input, d.Output, d.Temp} {
			Expect(os.MkdirAll(p, 0o755)).To(Succeed())
		}

		gatherer = metrics.NewGatherer(&metrics.Config{
			Dirs:   d,
			Logger: zap.NewNop(),
		})
	})

	It("fills in file, dimension and brightness detail", func() {
		path := filepath.Join(d.Output, "bright.png")
		writePNG(path, fillImage(8, 4, color.NRGBA{R: 255, G: 255, B: 255, A: 255}), nil)

		results := gatherer.Gather([]metrics.Item{{Path: path, Score: 0.9}}, 0.5)
		Expect(results).To(HaveLen(1))

		r := results[0]
		Expect(r.Error).To(BeEmpty())
		Expect(r.Path).To(Equal(path))
		Expect(r.Filename).To(Equal("bright.png"))
		Expect(r.Subfolder).To(BeEmpty())
		Expect(r.Type).To(Equal("output"))
		Expect(r.Similarity).To(Equal(float32(0.9)))
		Expect(r.FileSize).To(BeNumerically(">", 0))
		Expect(r.ModifiedTime).To(BeNumerically(">", 0))
		Expect(r.Width).To(Equal(8))
		Expect(r.Height).To(Equal(4))
		Expect(r.Format).To(Equal("PNG"))
		Expect(r.Brightness).To(BeNumerically("~", 1.0, 0.01))
		Expect(r.IsDark).To(BeFalse())
	})

	It("classifies darkness against the brightness split", func() {
		path := filepath.Join(d.Output, "dark.png")
		writePNG(path, fillImage(4, 4, color.NRGBA{R: 10, G: 10, B: 10, A: 255}), nil)

		results := gatherer.Gather([]metrics.Item{{Path: path, Score: 0.5}}, 0.5)
		Expect(results[0].IsDark).To(BeTrue())

		results = gatherer.Gather([]metrics.Item{{Path: path, Score: 0.5}}, 0.01)
		Expect(results[0].IsDark).To(BeFalse())
	})

	It("detects workflow and prompt chunks in PNGs", func() {
		path := filepath.Join(d.Output, "meta.png")
		writePNG(path, fillImage(2, 2, color.NRGBA{A: 255}), map[string]string{
			"workflow": `{"nodes": []}`,
			"Prompt":   `{"1": {}}`,
		})

		results := gatherer.Gather([]metrics.Item{{Path: path, Score: 0.7}}, 0.5)
		Expect(results[0].HasWorkflow).To(BeTrue())
		Expect(results[0].HasPrompt).To(BeTrue())
	})

	It("does not look for chunks outside PNG files", func() {
		path := filepath.Join(d.Output, "photo.jpg")
		var buf bytes.Buffer
		Expect(jpeg.Encode(&buf, fillImage(6, 6, color.NRGBA{R: 128, G: 128, B: 128, A: 255}), nil)).To(Succeed())
		Expect(os.WriteFile(path, buf.Bytes(), 0o644)).To(Succeed())

		results := gatherer.Gather([]metrics.Item{{Path: path, Score: 0.4}}, 0.5)
		r := results[0]
		Expect(r.Error).To(BeEmpty())
		Expect(r.Format).To(Equal("JPEG"))
		Expect(r.HasWorkflow).To(BeFalse())
		Expect(r.HasPrompt).To(BeFalse())
	})

	It("records an error for a missing file and keeps the rest of the batch", func() {
		good := filepath.Join(d.Output, "good.png")
		writePNG(good, fillImage(2, 2, color.NRGBA{R: 255, A: 255}), nil)
		missing := filepath.Join(d.Output, "missing.png")

		results := gatherer.Gather([]metrics.Item{
			{Path: good, Score: 0.8},
			{Path: missing, Score: 0.6},
		}, 0.5)
		Expect(results).To(HaveLen(2))

		Expect(results[0].Path).To(Equal(good))
		Expect(results[0].Error).To(BeEmpty())

		Expect(results[1].Path).To(Equal(missing))
		Expect(results[1].Error).ToNot(BeEmpty())
		Expect(results[1].Filename).To(Equal("missing.png"))
	})

	It("keeps stat detail when the file is not a decodable image", func() {
		path := filepath.Join(d.Output, "corrupt.png")
		Expect(os.WriteFile(path, []byte("not a png"), 0o644)).To(Succeed())

		results := gatherer.Gather([]metrics.Item{{Path: path, Score: 0.3}}, 0.5)
		r := results[0]
		Expect(r.Error).ToNot(BeEmpty())
		Expect(r.FileSize).To(Equal(int64(9)))
		Expect(r.Width).To(BeZero())
	})

	It("sorts results by similarity descending regardless of input order", func() {
		var items []metrics.Item
		scores := []float32{0.2, 0.9, 0.5}
		for i, s := range scores {
			path := filepath.Join(d.Output, []string{"a.png", "b.png", "c.png"}[i])
			writePNG(path, fillImage(2, 2, color.NRGBA{A: 255}), nil)
			items = append(items, metrics.Item{Path: path, Score: s})
		}

		results := gatherer.Gather(items, 0.5)
		Expect(results[0].Similarity).To(Equal(float32(0.9)))
		Expect(results[1].Similarity).To(Equal(float32(0.5)))
		Expect(results[2].Similarity).To(Equal(float32(0.2)))
	})

	It("returns an empty list for no items", func() {
		Expect(gatherer.Gather(nil, 0.5)).To(BeEmpty())
	})
})
