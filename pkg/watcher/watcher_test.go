package watcher_test

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/WASasquatch/ComfyUI-Viewer-Image-Search-Extension/pkg/watcher"
)

var _ = Describe("Watcher", func() {
	var (
		root    string
		changes atomic.Int64
		w       *watcher.Watcher
	)

	BeforeEach(func() {
		root = GinkgoT().TempDir()
		changes.Store(0)

		var err error
		w, err = watcher.NewWatcher(&watcher.Config{
			Roots:    []string{root},
			OnChange: func() { changes.Add(1) },
			Logger:   zap.NewNop(),
		})
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		Expect(w.Close()).To(Succeed())
	})

	It("reports file creation under a watched root", func() {
		err := os.WriteFile(filepath.Join(root, "render.png"), []byte("x"), 0o644)
		Expect(err).NotTo(HaveOccurred())

		Eventually(changes.Load).
			WithTimeout(2 * time.Second).
			WithPolling(10 * time.Millisecond).
			Should(BeNumerically(">", 0))
	})

	It("reports modifications to existing files", func() {
		path := filepath.Join(root, "render.png")
		Expect(os.WriteFile(path, []byte("x"), 0o644)).To(Succeed())

		Eventually(changes.Load).
			WithTimeout(2 * time.Second).
			WithPolling(10 * time.Millisecond).
			Should(BeNumerically(">", 0))

		before := changes.Load()
		Expect(os.WriteFile(path, []byte("xy"), 0o644)).To(Succeed())

		Eventually(changes.Load).
			WithTimeout(2 * time.Second).
			WithPolling(10 * time.Millisecond).
			Should(BeNumerically(">", before))
	})

	It("reports file removal", func() {
		path := filepath.Join(root, "render.png")
		Expect(os.WriteFile(path, []byte("x"), 0o644)).To(Succeed())

		Eventually(changes.Load).
			WithTimeout(2 * time.Second).
			WithPolling(10 * time.Millisecond).
			Should(BeNumerically(">", 0))

		before := changes.Load()
		Expect(os.Remove(path)).To(Succeed())

		Eventually(changes.Load).
			WithTimeout(2 * time.Second).
			WithPolling(10 * time.Millisecond).
			Should(BeNumerically(">", before))
	})

	It("picks up files inside directories created after the watch started", func() {
		sub := filepath.Join(root, "renders")
		Expect(os.Mkdir(sub, 0o755)).To(Succeed())

		// The subdirectory watch is added asynchronously; give the event
		// loop a moment before writing into it.
		Eventually(changes.Load).
			WithTimeout(2 * time.Second).
			WithPolling(10 * time.Millisecond).
			Should(BeNumerically(">", 0))

		Eventually(func() int64 {
			path := filepath.Join(sub, "nested.png")
			_ = os.WriteFile(path, []byte("x"), 0o644)
			_ = os.Remove(path)
			return changes.Load()
		}).
			WithTimeout(2 * time.Second).
			WithPolling(50 * time.Millisecond).
			Should(BeNumerically(">", 1))
	})
})

var _ = Describe("NewWatcher", func() {
	It("requires an OnChange callback", func() {
		_, err := watcher.NewWatcher(&watcher.Config{
			Roots: []string{GinkgoT().TempDir()},
		})
		Expect(err).To(HaveOccurred())
	})

	It("tolerates roots that do not exist", func() {
		w, err := watcher.NewWatcher(&watcher.Config{
			Roots:    []string{filepath.Join(GinkgoT().TempDir(), "missing")},
			OnChange: func() {},
			Logger:   zap.NewNop(),
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(w.Close()).To(Succeed())
	})

	It("skips empty root entries", func() {
		w, err := watcher.NewWatcher(&watcher.Config{
			Roots:    []string{"", GinkgoT().TempDir()},
			OnChange: func() {},
			Logger:   zap.NewNop(),
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(w.Close()).To(Succeed())
	})
})
