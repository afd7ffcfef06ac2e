package services

import (
	"archive/tar"
	"archive/zip"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/zeebo/blake3"
	"go.uber.org/zap"

	"github.com/openrail/provision-agent/internal/models"
)

// downloadChunkSize bounds the copy loop so cancellation is observed
// between chunks rather than only at stream end.
const downloadChunkSize = 128 * 1024

// toolchainBinary is the executable the archive must contain.
const toolchainBinary = "arduino-cli"

// manifestName records what was installed so presence checks do not
// re-download an unchanged toolchain.
const manifestName = "manifest.json"

type toolchainManifest struct {
	URL    string `json:"url"`
	Digest string `json:"digest"`
	Size   int64  `json:"size"`
	Binary string `json:"binary"`
}

// ToolchainProvisioner downloads and installs the board toolchain into
// the agent's data folder. Installation is atomic: a partially
// extracted toolchain is never visible at the final path.
type ToolchainProvisioner struct {
	baseURL string
	dir     string
	client  *http.Client
}

// NewToolchainProvisioner installs under dir. baseURL overrides the
// default download host, mainly for tests.
func NewToolchainProvisioner(dir, baseURL string, timeout time.Duration) *ToolchainProvisioner {
	if baseURL == "" {
		baseURL = "https://downloads.arduino.cc/arduino-cli"
	}
	return &ToolchainProvisioner{
		baseURL: strings.TrimRight(baseURL, "/"),
		dir:     dir,
		// Timeout guards connection setup and headers only; the body
		// copy is bounded by the task context instead.
		client: &http.Client{Timeout: timeout},
	}
}

// BinaryPath is where the toolchain executable lives once installed.
func (p *ToolchainProvisioner) BinaryPath() string {
	name := toolchainBinary
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	return filepath.Join(p.dir, "toolchain", name)
}

// archiveName maps the host platform to the published archive.
func (p *ToolchainProvisioner) archiveName() (string, error) {
	switch {
	case runtime.GOOS == "linux" && runtime.GOARCH == "amd64":
		return "arduino-cli_latest_Linux_64bit.tar.gz", nil
	case runtime.GOOS == "linux" && runtime.GOARCH == "arm64":
		return "arduino-cli_latest_Linux_ARM64.tar.gz", nil
	case runtime.GOOS == "linux" && runtime.GOARCH == "arm":
		return "arduino-cli_latest_Linux_ARMv7.tar.gz", nil
	case runtime.GOOS == "darwin":
		return "arduino-cli_latest_macOS_64bit.tar.gz", nil
	case runtime.GOOS == "windows":
		return "arduino-cli_latest_Windows_64bit.zip", nil
	default:
		return "", fmt.Errorf("no toolchain archive for %s/%s", runtime.GOOS, runtime.GOARCH)
	}
}

// Ensure installs the toolchain if it is not already present and
// returns the path to its executable. A valid manifest next to an
// existing binary short-circuits the download.
func (p *ToolchainProvisioner) Ensure(ctx context.Context, rep ProgressReporter) (string, error) {
	if path, ok := p.installed(); ok {
		zap.S().Infow("toolchain already installed", "path", path)
		rep.Progress(100)
		return path, nil
	}

	name, err := p.archiveName()
	if err != nil {
		return "", models.NewTaskError(models.ErrKindInternal, "resolve toolchain archive", err)
	}
	archiveURL := p.baseURL + "/" + name

	Logf(rep, "downloading %s", archiveURL)
	archive, digest, size, err := p.download(ctx, archiveURL, rep)
	if err != nil {
		return "", err
	}
	defer os.Remove(archive)

	staging, err := os.MkdirTemp(p.dir, "toolchain-staging-")
	if err != nil {
		return "", classifyFS("prepare staging folder", err)
	}
	defer os.RemoveAll(staging)

	Logf(rep, "extracting %s", name)
	if strings.HasSuffix(name, ".zip") {
		err = extractZip(ctx, archive, staging)
	} else {
		err = extractTarGz(ctx, archive, staging)
	}
	if err != nil {
		return "", err
	}

	binary := filepath.Base(p.BinaryPath())
	if _, statErr := os.Stat(filepath.Join(staging, binary)); statErr != nil {
		return "", models.NewTaskError(models.ErrKindCorruptArtifact, "verify toolchain archive",
			fmt.Errorf("archive does not contain %s: %w", binary, statErr))
	}

	manifest := toolchainManifest{URL: archiveURL, Digest: digest, Size: size, Binary: binary}
	raw, err := json.Marshal(manifest)
	if err != nil {
		return "", models.NewTaskError(models.ErrKindInternal, "encode toolchain manifest", err)
	}
	if err := os.WriteFile(filepath.Join(staging, manifestName), raw, 0o644); err != nil {
		return "", classifyFS("write toolchain manifest", err)
	}

	final := filepath.Join(p.dir, "toolchain")
	if err := os.RemoveAll(final); err != nil {
		return "", classifyFS("replace toolchain folder", err)
	}
	if err := os.Rename(staging, final); err != nil {
		return "", classifyFS("install toolchain", err)
	}

	path := p.BinaryPath()
	zap.S().Infow("toolchain installed", "path", path, "digest", digest)
	rep.Progress(100)
	return path, nil
}

// installed reports whether a previously installed toolchain is usable.
func (p *ToolchainProvisioner) installed() (string, bool) {
	path := p.BinaryPath()
	raw, err := os.ReadFile(filepath.Join(filepath.Dir(path), manifestName))
	if err != nil {
		return "", false
	}
	var manifest toolchainManifest
	if err := json.Unmarshal(raw, &manifest); err != nil {
		return "", false
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", false
	}
	return path, true
}

// download streams the archive to a temporary file, hashing as it
// writes, and returns the file path, its blake3 digest and its size.
// Partial downloads are removed before the error is returned.
func (p *ToolchainProvisioner) download(ctx context.Context, rawURL string, rep ProgressReporter) (string, string, int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", "", 0, models.NewTaskError(models.ErrKindInternal, "build download request", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return "", "", 0, classifyNet("download toolchain", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", 0, models.NewTaskError(models.ErrKindTransientNetwork, "download toolchain",
			fmt.Errorf("unexpected status %s", resp.Status))
	}

	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return "", "", 0, classifyFS("prepare data folder", err)
	}
	tmp, err := os.CreateTemp(p.dir, "toolchain-download-")
	if err != nil {
		return "", "", 0, classifyFS("create download file", err)
	}
	defer tmp.Close()

	hasher := blake3.New()
	total := resp.ContentLength
	var written int64
	buf := make([]byte, downloadChunkSize)
	for {
		if err := ctx.Err(); err != nil {
			os.Remove(tmp.Name())
			return "", "", 0, err
		}
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := tmp.Write(buf[:n]); werr != nil {
				os.Remove(tmp.Name())
				return "", "", 0, classifyFS("write download", werr)
			}
			hasher.Write(buf[:n])
			written += int64(n)
			if total > 0 {
				rep.Progress(int(written * 100 / total))
			} else {
				rep.Indeterminate()
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			os.Remove(tmp.Name())
			if ctx.Err() != nil {
				return "", "", 0, ctx.Err()
			}
			if errors.Is(readErr, io.ErrUnexpectedEOF) {
				return "", "", 0, models.NewTaskError(models.ErrKindCorruptArtifact, "download toolchain",
					fmt.Errorf("connection closed mid-download: %w", readErr))
			}
			return "", "", 0, classifyNet("download toolchain", readErr)
		}
	}

	if total > 0 && written != total {
		os.Remove(tmp.Name())
		return "", "", 0, models.NewTaskError(models.ErrKindCorruptArtifact, "download toolchain",
			fmt.Errorf("short download: got %d of %d bytes", written, total))
	}
	return tmp.Name(), hex.EncodeToString(hasher.Sum(nil)), written, nil
}

func extractTarGz(ctx context.Context, archive, dest string) error {
	f, err := os.Open(archive)
	if err != nil {
		return classifyFS("open archive", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return models.NewTaskError(models.ErrKindCorruptArtifact, "extract toolchain archive", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return models.NewTaskError(models.ErrKindCorruptArtifact, "extract toolchain archive", err)
		}
		target, err := securePath(dest, hdr.Name)
		if err != nil {
			return models.NewTaskError(models.ErrKindCorruptArtifact, "extract toolchain archive", err)
		}
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return classifyFS("extract toolchain archive", err)
			}
		case tar.TypeReg:
			if err := writeExtracted(target, tr, hdr.FileInfo().Mode()); err != nil {
				return err
			}
		}
	}
}

func extractZip(ctx context.Context, archive, dest string) error {
	zr, err := zip.OpenReader(archive)
	if err != nil {
		return models.NewTaskError(models.ErrKindCorruptArtifact, "extract toolchain archive", err)
	}
	defer zr.Close()

	for _, entry := range zr.File {
		if err := ctx.Err(); err != nil {
			return err
		}
		target, err := securePath(dest, entry.Name)
		if err != nil {
			return models.NewTaskError(models.ErrKindCorruptArtifact, "extract toolchain archive", err)
		}
		if entry.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return classifyFS("extract toolchain archive", err)
			}
			continue
		}
		rc, err := entry.Open()
		if err != nil {
			return models.NewTaskError(models.ErrKindCorruptArtifact, "extract toolchain archive", err)
		}
		err = writeExtracted(target, rc, entry.FileInfo().Mode())
		rc.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

func writeExtracted(target string, src io.Reader, mode fs.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return classifyFS("extract toolchain archive", err)
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode.Perm()|0o200)
	if err != nil {
		return classifyFS("extract toolchain archive", err)
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return classifyFS("extract toolchain archive", err)
	}
	return out.Close()
}

// securePath rejects archive entries that escape dest.
func securePath(dest, name string) (string, error) {
	target := filepath.Join(dest, filepath.Clean(name))
	if !strings.HasPrefix(target, filepath.Clean(dest)+string(os.PathSeparator)) {
		return "", fmt.Errorf("archive entry %q escapes destination", name)
	}
	return target, nil
}

// classifyNet turns transport errors into the retryable kinds the
// wizard understands.
func classifyNet(step string, err error) *models.TaskError {
	var uerr *url.Error
	if errors.As(err, &uerr) && uerr.Timeout() {
		return models.NewTaskError(models.ErrKindTimeout, step, err)
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return models.NewTaskError(models.ErrKindTimeout, step, err)
	}
	return models.NewTaskError(models.ErrKindTransientNetwork, step, err)
}

// classifyFS distinguishes disk exhaustion from other filesystem
// failures.
func classifyFS(step string, err error) *models.TaskError {
	if errors.Is(err, syscall.ENOSPC) {
		return models.NewTaskError(models.ErrKindDiskSpace, step, err)
	}
	return models.NewTaskError(models.ErrKindInternal, step, err)
}
