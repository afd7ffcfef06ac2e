package services_test

import (
	"archive/tar"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/klauspost/compress/gzip"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/openrail/provision-agent/internal/models"
	"github.com/openrail/provision-agent/internal/services"
)

// fakeReporter collects progress and log lines for assertions.
type fakeReporter struct {
	progress []int
	lines    []string
}

func (f *fakeReporter) Progress(percent int) { f.progress = append(f.progress, percent) }
func (f *fakeReporter) Indeterminate()       { f.progress = append(f.progress, models.ProgressIndeterminate) }
func (f *fakeReporter) Log(line string)      { f.lines = append(f.lines, line) }

func toolchainArchive(binary string) []byte {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	content := []byte("#!/bin/sh\nexit 0\n")
	Expect(tw.WriteHeader(&tar.Header{
		Name:     binary,
		Mode:     0o755,
		Size:     int64(len(content)),
		Typeflag: tar.TypeReg,
	})).To(Succeed())
	_, err := tw.Write(content)
	Expect(err).NotTo(HaveOccurred())

	Expect(tw.Close()).To(Succeed())
	Expect(gz.Close()).To(Succeed())
	return buf.Bytes()
}

var _ = Describe("ToolchainProvisioner", func() {
	var (
		dir       string
		downloads atomic.Int32
		archive   []byte
		server    *httptest.Server
		rep       *fakeReporter
	)

	BeforeEach(func() {
		if runtime.GOOS == "windows" {
			Skip("archive fixture is tar.gz")
		}
		dir = GinkgoT().TempDir()
		downloads.Store(0)
		archive = toolchainArchive("arduino-cli")
		rep = &fakeReporter{}

		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			downloads.Add(1)
			w.Header().Set("Content-Length", strconv.Itoa(len(archive)))
			_, _ = w.Write(archive)
		}))
	})

	AfterEach(func() {
		server.Close()
	})

	newProvisioner := func() *services.ToolchainProvisioner {
		return services.NewToolchainProvisioner(dir, server.URL, 5*time.Second)
	}

	It("should download, extract and promote the toolchain", func() {
		path, err := newProvisioner().Ensure(context.Background(), rep)
		Expect(err).NotTo(HaveOccurred())
		Expect(path).To(Equal(filepath.Join(dir, "toolchain", "arduino-cli")))

		info, err := os.Stat(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(info.Mode().IsRegular()).To(BeTrue())

		_, err = os.Stat(filepath.Join(dir, "toolchain", "manifest.json"))
		Expect(err).NotTo(HaveOccurred())
		Expect(rep.progress).To(ContainElement(100))
	})

	It("should not download again when already installed", func() {
		p := newProvisioner()
		_, err := p.Ensure(context.Background(), rep)
		Expect(err).NotTo(HaveOccurred())
		Expect(downloads.Load()).To(Equal(int32(1)))

		_, err = p.Ensure(context.Background(), rep)
		Expect(err).NotTo(HaveOccurred())
		Expect(downloads.Load()).To(Equal(int32(1)))
	})

	It("should fail with a corrupt artifact error on a short download", func() {
		truncated := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Length", strconv.Itoa(len(archive)+1000))
			_, _ = w.Write(archive)
		}))
		defer truncated.Close()

		p := services.NewToolchainProvisioner(dir, truncated.URL, 5*time.Second)
		_, err := p.Ensure(context.Background(), rep)
		Expect(err).To(HaveOccurred())

		te, ok := models.AsTaskError(err)
		Expect(ok).To(BeTrue())
		Expect(te.Kind).To(Equal(models.ErrKindCorruptArtifact))

		// Nothing is promoted and no partial download survives.
		_, statErr := os.Stat(filepath.Join(dir, "toolchain"))
		Expect(os.IsNotExist(statErr)).To(BeTrue())
		leftovers, _ := filepath.Glob(filepath.Join(dir, "toolchain-download-*"))
		Expect(leftovers).To(BeEmpty())
	})

	It("should fail with a corrupt artifact error when the binary is missing", func() {
		archive = toolchainArchive("some-other-tool")

		_, err := newProvisioner().Ensure(context.Background(), rep)
		Expect(err).To(HaveOccurred())

		te, ok := models.AsTaskError(err)
		Expect(ok).To(BeTrue())
		Expect(te.Kind).To(Equal(models.ErrKindCorruptArtifact))
	})

	It("should classify a refused connection as retryable", func() {
		dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		dead.Close()

		p := services.NewToolchainProvisioner(dir, dead.URL, time.Second)
		_, err := p.Ensure(context.Background(), rep)
		Expect(err).To(HaveOccurred())

		te, ok := models.AsTaskError(err)
		Expect(ok).To(BeTrue())
		Expect(te.Retryable()).To(BeTrue())
	})

	It("should leave nothing visible after cancellation", func() {
		slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Length", strconv.Itoa(len(archive)*10))
			for i := 0; i < 10; i++ {
				_, _ = w.Write(archive)
				w.(http.Flusher).Flush()
				time.Sleep(100 * time.Millisecond)
			}
		}))
		defer slow.Close()

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(150 * time.Millisecond)
			cancel()
		}()

		p := services.NewToolchainProvisioner(dir, slow.URL, 5*time.Second)
		_, err := p.Ensure(ctx, rep)
		Expect(err).To(MatchError(context.Canceled))

		_, statErr := os.Stat(filepath.Join(dir, "toolchain"))
		Expect(os.IsNotExist(statErr)).To(BeTrue())
		leftovers, _ := filepath.Glob(filepath.Join(dir, "toolchain-download-*"))
		Expect(leftovers).To(BeEmpty())
	})
})

