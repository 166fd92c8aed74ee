package store_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/WASasquatch/ComfyUI-Viewer-Image-Search-Extension/pkg/store"
)

var _ = Describe("Store", func() {
	var (
		dir string
		s   *store.Store
	)

	matrixFile := func(modelKey string) string {
		return filepath.Join(dir, "index_"+store.Fingerprint(modelKey)+".bin")
	}
	metaFile := func(modelKey string) string {
		return filepath.Join(dir, "meta_"+store.Fingerprint(modelKey)+".json")
	}

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
		var err error
		s, err = store.New(dir, zap.NewNop())
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("Fingerprint", func() {
		It("is stable and eight hex characters long", func() {
			fp := store.Fingerprint("openai/clip-vit-base-patch32")
			Expect(fp).To(HaveLen(8))
			Expect(fp).To(Equal(store.Fingerprint("openai/clip-vit-base-patch32")))
		})

		It("differs across model identifiers", func() {
			Expect(store.Fingerprint("model-a")).NotTo(Equal(store.Fingerprint("model-b")))
		})
	})

	Describe("Load and Save", func() {
		It("round-trips vectors and metadata", func() {
			vecs := [][]float32{{1, 2, 3}, {4, 5, 6}}
			entries := []store.Entry{
				{Path: "/pool/a.png", MTime: 100},
				{Path: "/pool/b.png", MTime: 200},
			}
			Expect(s.Save("abc12345", vecs, entries)).To(Succeed())

			gotVecs, gotEntries := s.Load("abc12345")
			Expect(gotVecs).To(Equal(vecs))
			Expect(gotEntries).To(Equal(entries))
		})

		It("returns an empty index when nothing was saved", func() {
			vecs, entries := s.Load("missing0")
			Expect(vecs).To(BeEmpty())
			Expect(entries).To(BeEmpty())
		})

		It("round-trips an empty index", func() {
			Expect(s.Save("empty000", nil, nil)).To(Succeed())
			vecs, entries := s.Load("empty000")
			Expect(vecs).To(BeEmpty())
			Expect(entries).To(BeEmpty())
		})

		It("treats corrupt metadata as an empty index", func() {
			Expect(s.Save("key00001", [][]float32{{1}}, []store.Entry{{Path: "/a", MTime: 1}})).To(Succeed())
			Expect(os.WriteFile(metaFile("key00001"), []byte("{not json"), 0o644)).To(Succeed())

			vecs, entries := s.Load("key00001")
			Expect(vecs).To(BeEmpty())
			Expect(entries).To(BeEmpty())
		})

		It("treats a truncated matrix as an empty index", func() {
			Expect(s.Save("key00002", [][]float32{{1, 2}}, []store.Entry{{Path: "/a", MTime: 1}})).To(Succeed())
			raw, err := os.ReadFile(matrixFile("key00002"))
			Expect(err).NotTo(HaveOccurred())
			Expect(os.WriteFile(matrixFile("key00002"), raw[:len(raw)-3], 0o644)).To(Succeed())

			vecs, entries := s.Load("key00002")
			Expect(vecs).To(BeEmpty())
			Expect(entries).To(BeEmpty())
		})

		It("treats desynchronized artifacts as an empty index", func() {
			Expect(s.Save("key00003", [][]float32{{1}, {2}}, []store.Entry{
				{Path: "/a", MTime: 1},
				{Path: "/b", MTime: 2},
			})).To(Succeed())
			Expect(os.WriteFile(metaFile("key00003"), []byte(`[{"path":"/a","mtime":1}]`), 0o644)).To(Succeed())

			vecs, entries := s.Load("key00003")
			Expect(vecs).To(BeEmpty())
			Expect(entries).To(BeEmpty())
		})

		It("rejects ragged matrices", func() {
			err := s.Save("key00004", [][]float32{{1, 2}, {3}}, []store.Entry{
				{Path: "/a", MTime: 1},
				{Path: "/b", MTime: 2},
			})
			Expect(err).To(HaveOccurred())
		})

		It("rejects mismatched row counts", func() {
			err := s.Save("key00005", [][]float32{{1}}, nil)
			Expect(err).To(HaveOccurred())
		})

		It("writes byte-identical artifacts for identical content", func() {
			vecs := [][]float32{{0.5, -1.25}}
			entries := []store.Entry{{Path: "/a", MTime: 42}}
			Expect(s.Save("key00006", vecs, entries)).To(Succeed())
			first, err := os.ReadFile(matrixFile("key00006"))
			Expect(err).NotTo(HaveOccurred())
			firstMeta, err := os.ReadFile(metaFile("key00006"))
			Expect(err).NotTo(HaveOccurred())

			Expect(s.Save("key00006", vecs, entries)).To(Succeed())
			second, err := os.ReadFile(matrixFile("key00006"))
			Expect(err).NotTo(HaveOccurred())
			secondMeta, err := os.ReadFile(metaFile("key00006"))
			Expect(err).NotTo(HaveOccurred())

			Expect(second).To(Equal(first))
			Expect(secondMeta).To(Equal(firstMeta))
		})

		It("keeps model keys isolated", func() {
			Expect(s.Save("keyaaaa1", [][]float32{{1}}, []store.Entry{{Path: "/a", MTime: 1}})).To(Succeed())
			Expect(s.Save("keybbbb2", [][]float32{{2}}, []store.Entry{{Path: "/b", MTime: 2}})).To(Succeed())

			vecsA, _ := s.Load("keyaaaa1")
			vecsB, _ := s.Load("keybbbb2")
			Expect(vecsA[0][0]).To(Equal(float32(1)))
			Expect(vecsB[0][0]).To(Equal(float32(2)))
		})
	})

	Describe("Clear", func() {
		It("removes both artifacts", func() {
			Expect(s.Save("gone0001", [][]float32{{1}}, []store.Entry{{Path: "/a", MTime: 1}})).To(Succeed())
			Expect(s.Clear("gone0001")).To(Succeed())

			Expect(matrixFile("gone0001")).NotTo(BeAnExistingFile())
			Expect(metaFile("gone0001")).NotTo(BeAnExistingFile())
		})

		It("names artifacts by model fingerprint so slashed identifiers are safe", func() {
			Expect(s.Save("openai/clip-vit-base-patch16", [][]float32{{1}}, []store.Entry{{Path: "/a", MTime: 1}})).To(Succeed())
			Expect(matrixFile("openai/clip-vit-base-patch16")).To(BeAnExistingFile())

			vecs, _ := s.Load("openai/clip-vit-base-patch16")
			Expect(vecs).To(HaveLen(1))
			Expect(s.Clear("openai/clip-vit-base-patch16")).To(Succeed())
			Expect(matrixFile("openai/clip-vit-base-patch16")).NotTo(BeAnExistingFile())
		})

		It("succeeds when nothing exists", func() {
			Expect(s.Clear("nothing1")).To(Succeed())
		})
	})
})
