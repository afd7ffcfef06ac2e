package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/openrail/provision-agent/internal/models"
	"github.com/openrail/provision-agent/internal/store"
)

// ToolchainService installs the board toolchain.
type ToolchainService interface {
	Ensure(ctx context.Context, rep ProgressReporter) (string, error)
}

// VersionService discovers and checks out product releases.
type VersionService interface {
	ListReleases(ctx context.Context, repoURL string) ([]models.Release, error)
	CloneOrUpdate(ctx context.Context, rep ProgressReporter, product, repoURL string) (string, error)
	Checkout(ctx context.Context, product, ref string) (string, error)
}

// DeviceService lists attached devices.
type DeviceService interface {
	Enumerate(ctx context.Context) ([]models.Device, error)
	Present(ctx context.Context, port string) (bool, error)
}

// BuildService compiles and flashes firmware.
type BuildService interface {
	Compile(ctx context.Context, rep ProgressReporter, sketchDir, fqbn string, requiredFiles []string) error
	Upload(ctx context.Context, rep ProgressReporter, sketchDir, fqbn, port string) error
}

// ConfigService renders and imports configuration files.
type ConfigService interface {
	Generate(set models.ConfigurationSet, dir string) error
	ImportExisting(src, dir string, required []string) error
}

// Wizard drives the linear provisioning flow: one stage at a time, at
// most one background task, strict forward order with explicit steps
// back. All methods are safe for concurrent use; the HTTP handlers call
// them from gin's request goroutines.
type Wizard struct {
	runner    *TaskRunner
	toolchain ToolchainService
	versions  VersionService
	devices   DeviceService
	builder   BuildService
	configs   ConfigService
	products  *store.ProductStore
	sessions  *store.SessionStore

	mu       sync.Mutex
	session  *models.Session
	releases []models.Release
	lastErr  *models.TaskError
	// observedTask is the last terminal task already folded into the
	// session, so each outcome is applied exactly once.
	observedTask uuid.UUID
	// retry re-submits the operation that produced lastErr.
	retry func() error
	// followUp chains the upload task after a successful compile.
	followUp func()
}

var (
	ErrStageMismatch = errors.New("operation not valid in the current stage")
	ErrNotSatisfied  = errors.New("current stage is not complete")
)

func NewWizard(
	runner *TaskRunner,
	toolchain ToolchainService,
	versions VersionService,
	devices DeviceService,
	builder BuildService,
	configs ConfigService,
	products *store.ProductStore,
	sessions *store.SessionStore,
) *Wizard {
	return &Wizard{
		runner:    runner,
		toolchain: toolchain,
		versions:  versions,
		devices:   devices,
		builder:   builder,
		configs:   configs,
		products:  products,
		sessions:  sessions,
		session:   models.NewSession(),
	}
}

// Restore loads a persisted session, if any, so the wizard resumes
// where the previous process stopped. A session parked on a task stage
// is rewound to the start of that stage since the task itself is gone.
func (w *Wizard) Restore(ctx context.Context) error {
	session, err := w.sessions.Get(ctx)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.session = session
	zap.S().Infow("session restored", "session", session.ID, "stage", session.Stage)
	return nil
}

// Status returns the current wizard view. It also drains the runner: a
// terminal task snapshot is folded into the session exactly once here,
// which keeps all stage transitions on the caller's control path.
func (w *Wizard) Status() models.WizardStatus {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.observeLocked()

	status := models.WizardStatus{
		Stage:         w.session.Stage,
		Failed:        w.lastErr != nil,
		Error:         w.lastErr,
		Task:          w.runner.Snapshot(),
		ToolchainPath: w.session.ToolchainPath,
		Device:        w.session.Device,
		Product:       w.session.Product,
		Version:       w.session.Version,
		Releases:      w.releases,
	}
	if w.lastErr != nil {
		status.RetryOffered = w.lastErr.Retryable() && w.retry != nil
	}
	if w.session.Stage == models.StageConfigure && !w.session.ConfigImported {
		status.ConfigProblems = w.session.Config.Validate()
	}
	return status
}

// observeLocked folds a finished task into the session. Chained tasks
// (upload after compile) are started here.
func (w *Wizard) observeLocked() {
	snap := w.runner.Snapshot()
	if snap == nil || !snap.Status.IsTerminal() || snap.ID == w.observedTask {
		return
	}
	w.observedTask = snap.ID

	switch snap.Status {
	case models.TaskStatusSucceeded:
		w.lastErr = nil
		w.retry = nil
		w.applyResultLocked(snap)
	case models.TaskStatusFailed:
		w.lastErr = snap.Error
		w.followUp = nil
	case models.TaskStatusCancelled:
		// Cancellation returns the stage to its pre-task state.
		w.lastErr = nil
		w.retry = nil
		w.followUp = nil
	}
	w.persistLocked()
}

func (w *Wizard) applyResultLocked(snap *models.TaskSnapshot) {
	switch snap.Kind {
	case models.TaskKindEnsureToolchain:
		if path, ok := snap.Result.(string); ok {
			w.session.ToolchainPath = path
		}
		w.advanceLocked()
	case models.TaskKindSyncRepository, models.TaskKindCheckout:
		if sel, ok := snap.Result.(*models.VersionSelection); ok {
			w.session.Version = sel
			w.advanceLocked()
		}
	case models.TaskKindCompile:
		if w.followUp != nil {
			start := w.followUp
			w.followUp = nil
			start()
		}
	case models.TaskKindUpload:
		w.session.Flashed = true
		w.advanceLocked()
	}
}

func (w *Wizard) advanceLocked() {
	next, ok := w.session.Stage.Next()
	if !ok {
		return
	}
	zap.S().Infow("stage advanced", "from", w.session.Stage, "to", next)
	w.session.Stage = next
}

// Advance moves the wizard forward one stage. It fails with
// ErrNotSatisfied when the current stage has not collected what the
// next stage needs. Task stages advance themselves on success, so
// Advance only covers the selection stages and the welcome screen.
func (w *Wizard) Advance() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.observeLocked()

	if !w.runner.Idle() {
		return ErrTaskRunning
	}
	if w.lastErr != nil {
		return fmt.Errorf("%w: resolve the failure first", ErrNotSatisfied)
	}

	switch w.session.Stage {
	case models.StageWelcome:
		// Nothing to satisfy.
	case models.StageSelectDevice:
		if w.session.Device == nil {
			return fmt.Errorf("%w: no device selected", ErrNotSatisfied)
		}
	case models.StageSelectProduct:
		if w.session.Product == "" {
			return fmt.Errorf("%w: no product selected", ErrNotSatisfied)
		}
	case models.StageConfigure:
		if !w.session.ConfigImported && !w.session.Config.Complete() {
			return fmt.Errorf("%w: configuration incomplete", ErrNotSatisfied)
		}
	default:
		// Toolchain, version and build stages advance via their tasks.
		return fmt.Errorf("%w: stage %s completes through its task", ErrStageMismatch, w.session.Stage)
	}

	w.advanceLocked()
	w.persistLocked()
	return nil
}

// Back steps to an earlier stage, discarding everything collected at or
// after it. Stepping back is rejected while a task is running.
func (w *Wizard) Back(target models.Stage) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.observeLocked()

	if !w.runner.Idle() {
		return ErrTaskRunning
	}
	if !target.IsValid() || !target.Before(w.session.Stage) {
		return fmt.Errorf("%w: %s is not an earlier stage", ErrStageMismatch, target)
	}

	zap.S().Infow("stepping back", "from", w.session.Stage, "to", target)
	w.session.Stage = target
	w.session.DiscardFrom(target)
	w.lastErr = nil
	w.retry = nil
	w.followUp = nil
	if target.Index() <= models.StageSelectVersion.Index() {
		w.releases = nil
	}
	w.persistLocked()
	return nil
}

// Retry re-submits the failed operation of the current stage.
func (w *Wizard) Retry() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.observeLocked()

	if w.lastErr == nil || w.retry == nil {
		return fmt.Errorf("%w: nothing to retry", ErrStageMismatch)
	}
	if !w.lastErr.Retryable() {
		return fmt.Errorf("%s failure is not retryable", w.lastErr.Kind)
	}
	w.lastErr = nil
	return w.retry()
}

// Cancel aborts the running task, if any.
func (w *Wizard) Cancel() {
	w.runner.Cancel()
}

// ListDevices enumerates attached serial devices for the selection
// stage.
func (w *Wizard) ListDevices(ctx context.Context) ([]models.Device, error) {
	return w.devices.Enumerate(ctx)
}

// ListProducts returns the product catalog, filtered to products that
// support the selected device when its board is known.
func (w *Wizard) ListProducts(ctx context.Context) ([]models.Product, error) {
	products, err := w.products.List(ctx)
	if err != nil {
		return nil, err
	}
	w.mu.Lock()
	device := w.session.Device
	w.mu.Unlock()
	if device == nil || !device.Known() {
		return products, nil
	}
	matching := make([]models.Product, 0, len(products))
	for _, p := range products {
		if p.SupportsBoard(device.FQBN) {
			matching = append(matching, p)
		}
	}
	return matching, nil
}

// SelectDevice records the flash target. An unknown board needs an
// explicit FQBN from the user.
func (w *Wizard) SelectDevice(device models.Device) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.observeLocked()

	if w.session.Stage != models.StageSelectDevice {
		return ErrStageMismatch
	}
	if device.Port == "" {
		return errors.New("device has no port")
	}
	if device.FQBN == "" {
		return errors.New("device needs an FQBN; unknown boards require one explicitly")
	}
	w.session.Device = &device
	w.persistLocked()
	zap.S().Infow("device selected", "port", device.Port, "fqbn", device.FQBN)
	return nil
}

// SelectProduct records the firmware product. The product must exist in
// the catalog and support the selected device.
func (w *Wizard) SelectProduct(ctx context.Context, name string) error {
	product, err := w.products.Get(ctx, name)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.observeLocked()

	if w.session.Stage != models.StageSelectProduct {
		return ErrStageMismatch
	}
	if w.session.Device != nil && w.session.Device.Known() && !product.SupportsBoard(w.session.Device.FQBN) {
		return fmt.Errorf("%s does not support board %s", product.DisplayName, w.session.Device.FQBN)
	}
	w.session.Product = product.Name
	w.persistLocked()
	zap.S().Infow("product selected", "product", product.Name)
	return nil
}

// StartToolchain submits the toolchain installation task.
func (w *Wizard) StartToolchain() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.observeLocked()

	if w.session.Stage != models.StageAcquireToolchain {
		return ErrStageMismatch
	}
	return w.submitLocked(models.TaskKindEnsureToolchain, func(ctx context.Context, rep ProgressReporter) (any, error) {
		return w.toolchain.Ensure(ctx, rep)
	})
}

// SyncRepository submits a task that mirrors the selected product's
// repository and lists its releases.
func (w *Wizard) SyncRepository(ctx context.Context) error {
	w.mu.Lock()
	product := w.session.Product
	stage := w.session.Stage
	w.mu.Unlock()

	if stage != models.StageSelectVersion {
		return ErrStageMismatch
	}
	p, err := w.products.Get(ctx, product)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.observeLocked()
	return w.submitLocked(models.TaskKindSyncRepository, func(ctx context.Context, rep ProgressReporter) (any, error) {
		releases, err := w.versions.ListReleases(ctx, p.RepoURL)
		if err != nil {
			return nil, err
		}
		if _, err := w.versions.CloneOrUpdate(ctx, rep, p.Name, p.RepoURL); err != nil {
			return nil, err
		}
		w.mu.Lock()
		w.releases = releases
		w.mu.Unlock()
		// The stage completes on checkout, not on sync.
		return releases, nil
	})
}

// Checkout submits a task that switches the product working copy to
// ref. On success the wizard advances to the configure stage.
func (w *Wizard) Checkout(ref string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.observeLocked()

	if w.session.Stage != models.StageSelectVersion {
		return ErrStageMismatch
	}
	product := w.session.Product
	return w.submitLocked(models.TaskKindCheckout, func(ctx context.Context, rep ProgressReporter) (any, error) {
		path, err := w.versions.Checkout(ctx, product, ref)
		if err != nil {
			return nil, err
		}
		return &models.VersionSelection{Product: product, Ref: ref, Path: path}, nil
	})
}

// SetConfig merges options into the configuration set. Validation
// problems are reported through Status, not here; the user fixes them
// incrementally.
func (w *Wizard) SetConfig(options map[string]string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.observeLocked()

	if w.session.Stage != models.StageConfigure {
		return ErrStageMismatch
	}
	for k, v := range options {
		w.session.Config[k] = v
	}
	if w.session.Device != nil {
		w.session.Config.ApplyBoardConstraints(w.session.Device.FQBN)
	}
	w.session.ConfigImported = false
	w.persistLocked()
	return nil
}

// ImportConfig copies existing configuration files from src into the
// checked out working copy instead of generating them.
func (w *Wizard) ImportConfig(ctx context.Context, src string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.observeLocked()

	if w.session.Stage != models.StageConfigure {
		return ErrStageMismatch
	}
	if w.session.Version == nil {
		return fmt.Errorf("%w: no version checked out", ErrNotSatisfied)
	}
	product, err := w.products.Get(ctx, w.session.Product)
	if err != nil {
		return err
	}
	if err := w.configs.ImportExisting(src, w.session.Version.Path, product.RequiredConfigFiles); err != nil {
		return err
	}
	w.session.ConfigImported = true
	w.persistLocked()
	return nil
}

// StartBuild generates configuration files (unless imported), then
// submits the compile task; the upload task chains automatically after
// a successful compile.
func (w *Wizard) StartBuild(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.observeLocked()

	if w.session.Stage != models.StageBuildFlash {
		return ErrStageMismatch
	}
	if w.session.Version == nil || w.session.Device == nil {
		return fmt.Errorf("%w: missing version or device", ErrNotSatisfied)
	}
	product, err := w.products.Get(ctx, w.session.Product)
	if err != nil {
		return err
	}
	if !w.session.ConfigImported {
		if !w.session.Config.Complete() {
			return models.NewTaskError(models.ErrKindConfigIncomplete, "start build",
				fmt.Errorf("configuration incomplete: %v", w.session.Config.Validate()))
		}
		if err := w.configs.Generate(w.session.Config, w.session.Version.Path); err != nil {
			return err
		}
	}

	sketch := w.session.Version.Path
	fqbn := w.session.Device.FQBN
	port := w.session.Device.Port
	required := product.RequiredConfigFiles

	compile := func(ctx context.Context, rep ProgressReporter) (any, error) {
		return nil, w.builder.Compile(ctx, rep, sketch, fqbn, required)
	}
	upload := func(ctx context.Context, rep ProgressReporter) (any, error) {
		return nil, w.builder.Upload(ctx, rep, sketch, fqbn, port)
	}

	chainUpload := func() {
		if _, err := w.runner.Submit(models.TaskKindUpload, upload); err != nil {
			zap.S().Errorw("failed to chain upload task", "error", err)
		}
		w.retry = func() error {
			_, err := w.runner.Submit(models.TaskKindUpload, upload)
			return err
		}
	}
	// A retried compile must chain the upload again, so the retry
	// closure re-installs the follow-up alongside each submission.
	var submitCompile func() error
	submitCompile = func() error {
		if _, err := w.runner.Submit(models.TaskKindCompile, compile); err != nil {
			return err
		}
		w.followUp = chainUpload
		w.retry = submitCompile
		return nil
	}
	if err := submitCompile(); err != nil {
		return err
	}
	w.persistLocked()
	return nil
}

// submitLocked hands op to the runner and records how to retry it.
func (w *Wizard) submitLocked(kind models.TaskKind, op Operation) error {
	if _, err := w.runner.Submit(kind, op); err != nil {
		return err
	}
	w.retry = func() error {
		_, err := w.runner.Submit(kind, op)
		return err
	}
	w.persistLocked()
	return nil
}

func (w *Wizard) persistLocked() {
	// Session persistence is best effort; the wizard keeps working from
	// memory if the store write fails.
	if err := w.sessions.Save(context.Background(), w.session); err != nil {
		zap.S().Warnw("failed to persist session", "error", err)
	}
}

// Reset discards the session entirely and returns to the welcome stage.
func (w *Wizard) Reset() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.runner.Idle() {
		return ErrTaskRunning
	}
	w.session = models.NewSession()
	w.releases = nil
	w.lastErr = nil
	w.retry = nil
	w.followUp = nil
	if err := w.sessions.Delete(context.Background()); err != nil {
		zap.S().Warnw("failed to clear persisted session", "error", err)
	}
	zap.S().Infow("session reset", "session", w.session.ID)
	return nil
}
