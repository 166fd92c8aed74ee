package api

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/WASasquatch/ComfyUI-Viewer-Image-Search-Extension/pkg/dirs"
	"github.com/WASasquatch/ComfyUI-Viewer-Image-Search-Extension/pkg/gallery"
	"github.com/WASasquatch/ComfyUI-Viewer-Image-Search-Extension/pkg/indexer"
	"github.com/WASasquatch/ComfyUI-Viewer-Image-Search-Extension/pkg/metrics"
	"github.com/WASasquatch/ComfyUI-Viewer-Image-Search-Extension/pkg/search"
	"github.com/WASasquatch/ComfyUI-Viewer-Image-Search-Extension/pkg/session"
	"github.com/WASasquatch/ComfyUI-Viewer-Image-Search-Extension/pkg/store"
)

// newEmbedStub fakes the embedding sidecar: each image maps to a 3-wide
// vector from its top-left pixel, keeping similarities predictable.
func newEmbedStub() *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Images []string `json:"images"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		vecs := make([][]float32, 0, len(req.Images))
		for _, b64 := range req.Images {
			raw, err := base64.StdEncoding.DecodeString(b64)
			if err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			img, err := png.Decode(bytes.NewReader(raw))
			if err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			cr, cg, cb, _ := img.At(img.Bounds().Min.X, img.Bounds().Min.Y).RGBA()
			vecs = append(vecs, []float32{float32(cr >> 8), float32(cg >> 8), float32(cb >> 8)})
		}
		json.NewEncoder(w).Encode(map[string][][]float32{"embeddings": vecs})
	}))
}

func writeSolid(path string, c color.NRGBA) {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	f, err := os.Create(path)
	Expect(err).NotTo(HaveOccurred())
	defer f.Close()
	Expect(png.Encode(f, img)).To(Succeed())
}

var _ = Describe("Search and select handlers", func() {
	var (
		server   *Server
		d        dirs.Dirs
		queries  string
		sessions *session.Cache[gallery.Options]
		sidecar  *httptest.Server
		engine   *search.Engine
	)

	BeforeEach(func() {
		root := GinkgoT().TempDir()
		d = dirs.Dirs{
			Input:  filepath.Join(root, "input"),
			Output: filepath.Join(root, "output"),
			Temp:   filepath.Join(root, "temp"),
		}
		queries = filepath.Join(root, "queries")
		for _, p := range []string{d.Input, d.Output, d.Temp, queries} {
			Expect(os.MkdirAll(p, 0o755)).To(Succeed())
		}

		st, err := store.New(filepath.Join(root, "cache"), zap.NewNop())
		Expect(err).NotTo(HaveOccurred())

		sessions = session.NewCache[gallery.Options](0)
		sidecar = newEmbedStub()

		engine = search.NewEngine(&search.Config{
			Dirs:  d,
			Store: st,
			Indexer: indexer.NewIndexer(&indexer.Config{
				Store:  st,
				Logger: zap.NewNop(),
			}),
			Sessions: sessions,
			Metrics: metrics.NewGatherer(&metrics.Config{
				Dirs:   d,
				Logger: zap.NewNop(),
			}),
			Provider:    "clipd",
			ProviderURL: sidecar.URL,
			Logger:      zap.NewNop(),
		})

		loader := gallery.NewLoader(&gallery.LoaderConfig{
			Dirs:     d,
			Sessions: sessions,
			Logger:   zap.NewNop(),
		})

		server = NewServer(Config{ListenAddr: ":0"}, engine, loader, d, zap.NewNop())
	})

	AfterEach(func() {
		engine.Close()
		sidecar.Close()
	})

	postJSON := func(path, body string) *http.Response {
		req, err := http.NewRequest(http.MethodPost, path, strings.NewReader(body))
		Expect(err).NotTo(HaveOccurred())
		req.Header.Set("Content-Type", fiber.MIMEApplicationJSON)

		// Searches index and embed synchronously; allow more than the
		// default 1s test timeout.
		resp, err := server.app.Test(req, 30000)
		Expect(err).NotTo(HaveOccurred())
		return resp
	}

	Describe("POST /image_search/search", func() {
		It("returns a ranked gallery", func() {
			writeSolid(filepath.Join(d.Output, "red.png"), color.NRGBA{R: 255, A: 255})
			writeSolid(filepath.Join(d.Output, "green.png"), color.NRGBA{G: 255, A: 255})
			writeSolid(filepath.Join(d.Output, "blue.png"), color.NRGBA{B: 255, A: 255})

			query := filepath.Join(queries, "q.png")
			writeSolid(query, color.NRGBA{R: 255, G: 32, A: 255})

			body, err := json.Marshal(map[string]any{
				"session_id":           "api-sess",
				"query_images":         []string{query},
				"similarity_threshold": 0,
				"max_results":          10,
			})
			Expect(err).NotTo(HaveOccurred())

			resp := postJSON("/image_search/search", string(body))
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var g gallery.Gallery
			raw, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(json.Unmarshal(raw, &g)).To(Succeed())

			Expect(g.Type).To(Equal("image_search_gallery"))
			Expect(g.SessionID).To(Equal("api-sess"))
			Expect(g.TotalIndexed).To(Equal(3))
			Expect(g.Results).To(HaveLen(3))
			Expect(g.Results[0].Filename).To(Equal("red.png"))
		})

		It("answers 200 with a reason when there is nothing to search", func() {
			query := filepath.Join(queries, "q.png")
			writeSolid(query, color.NRGBA{R: 255, A: 255})

			body, err := json.Marshal(map[string]any{
				"session_id":   "empty-sess",
				"query_images": []string{query},
			})
			Expect(err).NotTo(HaveOccurred())

			resp := postJSON("/image_search/search", string(body))
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var g gallery.Gallery
			raw, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(json.Unmarshal(raw, &g)).To(Succeed())

			Expect(g.Results).To(BeEmpty())
			Expect(g.Reason).To(Equal("No files to search"))
		})

		It("returns 400 for a malformed body", func() {
			resp := postJSON("/image_search/search", "not json")
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})
	})

	Describe("POST /image_search/select", func() {
		It("materializes selected images", func() {
			writeSolid(filepath.Join(d.Output, "pick.png"), color.NRGBA{R: 255, A: 255})

			body, err := json.Marshal(map[string]any{
				"session_id": "sel-sess",
				"selected": []map[string]string{
					{"filename": "pick.png", "subfolder": "", "type": "output"},
				},
			})
			Expect(err).NotTo(HaveOccurred())

			resp := postJSON("/image_search/select", string(body))
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var result gallery.LoadResult
			raw, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(json.Unmarshal(raw, &result)).To(Succeed())

			Expect(result.SessionID).To(Equal("sel-sess"))
			Expect(result.All).To(HaveLen(1))
			Expect(result.All[0]).To(BeAnExistingFile())
			Expect(result.DisplayText).To(ContainSubstring("Loaded 1 images"))
		})

		It("returns 400 for a malformed body", func() {
			resp := postJSON("/image_search/select", "{broken")
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})
	})
})
