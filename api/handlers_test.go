package api

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"

	"github.com/gofiber/fiber/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/WASasquatch/ComfyUI-Viewer-Image-Search-Extension/pkg/dirs"
	"github.com/WASasquatch/ComfyUI-Viewer-Image-Search-Extension/pkg/pngmeta"
)

// writeChunkedPNG writes a small PNG at path carrying the given text chunks.
func writeChunkedPNG(path string, texts map[string]string) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 200, G: 200, B: 200, A: 255})
		}
	}

	var buf bytes.Buffer
	Expect(png.Encode(&buf, img)).To(Succeed())

	data := buf.Bytes()
	if len(texts) > 0 {
		var err error
		data, err = pngmeta.InsertTextChunks(data, texts)
		Expect(err).NotTo(HaveOccurred())
	}

	Expect(os.MkdirAll(filepath.Dir(path), 0o755)).To(Succeed())
	Expect(os.WriteFile(path, data, 0o644)).To(Succeed())
}

var _ = Describe("Metadata handlers", func() {
	var (
		server *Server
		d      dirs.Dirs
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

		server = NewServer(Config{ListenAddr: ":0"}, nil, nil, d, zap.NewNop())
	})

	Describe("GET /ping", func() {
		It("returns pong", func() {
			req, err := http.NewRequest(http.MethodGet, "/ping", nil)
			Expect(err).NotTo(HaveOccurred())

			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(Equal(`"pong"`))
		})
	})

	Describe("GET /image_search/metadata", func() {
		It("returns 400 when filename is missing", func() {
			req, err := http.NewRequest(http.MethodGet, "/image_search/metadata", nil)
			Expect(err).NotTo(HaveOccurred())

			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))

			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(ContainSubstring("missing filename parameter"))
		})

		It("returns 404 when the image does not exist", func() {
			req, err := http.NewRequest(http.MethodGet, "/image_search/metadata?filename=missing.png", nil)
			Expect(err).NotTo(HaveOccurred())

			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusNotFound))

			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(ContainSubstring("image not found"))
		})

		It("returns parsed workflow and prompt chunks", func() {
			writeChunkedPNG(filepath.Join(d.Output, "render.png"), map[string]string{
				"workflow": `{"nodes": [1, 2]}`,
				"prompt":   "not valid json {",
			})

			req, err := http.NewRequest(http.MethodGet, "/image_search/metadata?filename=render.png", nil)
			Expect(err).NotTo(HaveOccurred())

			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var out MetadataResponse
			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(json.Unmarshal(body, &out)).To(Succeed())

			Expect(out.HasWorkflow).To(BeTrue())
			Expect(out.HasPrompt).To(BeTrue())
			Expect(out.MetadataKeys).To(ConsistOf("workflow", "prompt"))

			workflow, ok := out.Workflow.(map[string]any)
			Expect(ok).To(BeTrue(), "workflow should decode as a JSON object")
			Expect(workflow).To(HaveKey("nodes"))

			// Unparseable chunk text comes back verbatim.
			Expect(out.Prompt).To(Equal("not valid json {"))
		})

		It("reports absence when the image has no text chunks", func() {
			writeChunkedPNG(filepath.Join(d.Output, "plain.png"), nil)

			req, err := http.NewRequest(http.MethodGet, "/image_search/metadata?filename=plain.png", nil)
			Expect(err).NotTo(HaveOccurred())

			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var out MetadataResponse
			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(json.Unmarshal(body, &out)).To(Succeed())

			Expect(out.HasWorkflow).To(BeFalse())
			Expect(out.HasPrompt).To(BeFalse())
			Expect(out.Workflow).To(BeNil())
			Expect(out.Prompt).To(BeNil())
			Expect(out.MetadataKeys).To(BeEmpty())
		})

		It("resolves subfolders within the requested class", func() {
			writeChunkedPNG(filepath.Join(d.Output, "renders", "final.png"), map[string]string{
				"workflow": `{"id": 7}`,
			})

			q := url.Values{}
			q.Set("filename", "final.png")
			q.Set("subfolder", "renders")
			req, err := http.NewRequest(http.MethodGet, "/image_search/metadata?"+q.Encode(), nil)
			Expect(err).NotTo(HaveOccurred())

			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var out MetadataResponse
			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(json.Unmarshal(body, &out)).To(Succeed())
			Expect(out.HasWorkflow).To(BeTrue())
		})

		It("resolves against the input root when type=input", func() {
			writeChunkedPNG(filepath.Join(d.Input, "source.png"), nil)

			req, err := http.NewRequest(http.MethodGet, "/image_search/metadata?filename=source.png&type=input", nil)
			Expect(err).NotTo(HaveOccurred())

			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			// The same filename is absent from the default output class.
			req, err = http.NewRequest(http.MethodGet, "/image_search/metadata?filename=source.png", nil)
			Expect(err).NotTo(HaveOccurred())

			resp, err = server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusNotFound))
		})

		It("matches workflow keys case-insensitively", func() {
			writeChunkedPNG(filepath.Join(d.Output, "cased.png"), map[string]string{
				"Workflow": `{"nodes": []}`,
			})

			req, err := http.NewRequest(http.MethodGet, "/image_search/metadata?filename=cased.png", nil)
			Expect(err).NotTo(HaveOccurred())

			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var out MetadataResponse
			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(json.Unmarshal(body, &out)).To(Succeed())
			Expect(out.HasWorkflow).To(BeTrue())
			Expect(out.MetadataKeys).To(ConsistOf("Workflow"))
		})
	})
})
