package services

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/openrail/provision-agent/internal/models"
)

// commandTimeout bounds a single compile or upload invocation.
const commandTimeout = 300 * time.Second

// DevicePresence re-validates that the flash target is still attached.
type DevicePresence interface {
	Present(ctx context.Context, port string) (bool, error)
}

// BuildFlash drives the board toolchain to compile a sketch and upload
// the resulting firmware over serial.
type BuildFlash struct {
	toolchain string
	presence  DevicePresence
}

// NewBuildFlash builds with the toolchain executable at toolchainPath.
func NewBuildFlash(toolchainPath string, presence DevicePresence) *BuildFlash {
	return &BuildFlash{toolchain: toolchainPath, presence: presence}
}

// Compile builds the sketch at sketchDir for the given FQBN. The
// required configuration files must already be present; a missing file
// fails before the compiler is invoked.
func (b *BuildFlash) Compile(ctx context.Context, rep ProgressReporter, sketchDir, fqbn string, requiredFiles []string) error {
	for _, name := range requiredFiles {
		if _, err := os.Stat(filepath.Join(sketchDir, name)); err != nil {
			return models.NewTaskError(models.ErrKindConfigIncomplete, "compile",
				fmt.Errorf("configuration file %s missing from sketch", name))
		}
	}

	args := []string{"compile", "-b", fqbn, sketchDir}
	Logf(rep, "%s %s", b.toolchain, strings.Join(args, " "))
	if err := b.stream(ctx, rep, args); err != nil {
		return wrapTool(err, models.ErrKindBuild, "compile")
	}
	zap.S().Infow("compile succeeded", "sketch", sketchDir, "fqbn", fqbn)
	return nil
}

// Upload flashes the compiled sketch to the device on port. The device
// is re-checked immediately before the uploader runs; a vanished device
// fails without invoking the toolchain.
func (b *BuildFlash) Upload(ctx context.Context, rep ProgressReporter, sketchDir, fqbn, port string) error {
	present, err := b.presence.Present(ctx, port)
	if err != nil {
		return err
	}
	if !present {
		return models.NewTaskError(models.ErrKindDeviceUnavailable, "upload",
			fmt.Errorf("device on %s is no longer attached", port))
	}

	args := []string{"upload", "-v", "-t", "-b", fqbn, "-p", port}
	if strings.HasPrefix(fqbn, "esp32:") {
		// ESP32 boards flash reliably only at the lower speed.
		args = append(args, "--board-options", "UploadSpeed=115200")
	}
	args = append(args, sketchDir)

	Logf(rep, "%s %s", b.toolchain, strings.Join(args, " "))
	if err := b.stream(ctx, rep, args); err != nil {
		return wrapTool(err, models.ErrKindFlash, "upload")
	}
	zap.S().Infow("upload succeeded", "port", port, "fqbn", fqbn)
	return nil
}

// stream runs the toolchain, feeding every output line to the reporter.
func (b *BuildFlash) stream(ctx context.Context, rep ProgressReporter, args []string) error {
	runCtx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, b.toolchain, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return models.NewTaskError(models.ErrKindInternal, "start toolchain", err)
	}
	cmd.Stderr = cmd.Stdout

	rep.Indeterminate()
	if err := cmd.Start(); err != nil {
		return models.NewTaskError(models.ErrKindInternal, "start toolchain", err)
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 512*1024)
	for scanner.Scan() {
		rep.Log(scanner.Text())
	}

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if runCtx.Err() == context.DeadlineExceeded {
			return models.NewTaskError(models.ErrKindTimeout, "run toolchain",
				fmt.Errorf("toolchain did not finish within %s", commandTimeout))
		}
		return err
	}
	return nil
}

// wrapTool classifies a toolchain exit as kind unless the error already
// carries a classification.
func wrapTool(err error, kind models.ErrorKind, step string) error {
	if _, ok := models.AsTaskError(err); ok {
		return err
	}
	if err == context.Canceled || err == context.DeadlineExceeded {
		return err
	}
	return models.NewTaskError(kind, step, err)
}
