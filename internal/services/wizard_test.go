package services_test

import (
	"context"
	"database/sql"
	"errors"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/openrail/provision-agent/internal/models"
	"github.com/openrail/provision-agent/internal/services"
	"github.com/openrail/provision-agent/internal/store"
	"github.com/openrail/provision-agent/internal/store/migrations"
	"github.com/openrail/provision-agent/pkg/scheduler"
)

type fakeToolchain struct {
	mu    sync.Mutex
	path  string
	err   error
	block chan struct{}
	calls int
}

func (f *fakeToolchain) Ensure(ctx context.Context, rep services.ProgressReporter) (string, error) {
	f.mu.Lock()
	f.calls++
	path, err, block := f.path, f.err, f.block
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err != nil {
		return "", err
	}
	return path, nil
}

func (f *fakeToolchain) set(path string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.path, f.err = path, err
}

type fakeVersions struct {
	releases    []models.Release
	listErr     error
	clonePath   string
	cloneErr    error
	checkoutErr error
}

func (f *fakeVersions) ListReleases(ctx context.Context, repoURL string) ([]models.Release, error) {
	return f.releases, f.listErr
}

func (f *fakeVersions) CloneOrUpdate(ctx context.Context, rep services.ProgressReporter, product, repoURL string) (string, error) {
	return f.clonePath, f.cloneErr
}

func (f *fakeVersions) Checkout(ctx context.Context, product, ref string) (string, error) {
	return f.clonePath, f.checkoutErr
}

type fakeDevices struct {
	devices []models.Device
	present bool
}

func (f *fakeDevices) Enumerate(ctx context.Context) ([]models.Device, error) {
	return f.devices, nil
}

func (f *fakeDevices) Present(ctx context.Context, port string) (bool, error) {
	return f.present, nil
}

type fakeBuilder struct {
	mu         sync.Mutex
	compileErr error
	uploadErr  error
	compiled   int
	uploaded   int
}

func (f *fakeBuilder) Compile(ctx context.Context, rep services.ProgressReporter, sketchDir, fqbn string, requiredFiles []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.compiled++
	return f.compileErr
}

func (f *fakeBuilder) Upload(ctx context.Context, rep services.ProgressReporter, sketchDir, fqbn, port string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploaded++
	return f.uploadErr
}

func (f *fakeBuilder) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.compiled, f.uploaded
}

type fakeConfigs struct {
	generated int
	importErr error
	imported  int
}

func (f *fakeConfigs) Generate(set models.ConfigurationSet, dir string) error {
	f.generated++
	return nil
}

func (f *fakeConfigs) ImportExisting(src, dir string, required []string) error {
	if f.importErr != nil {
		return f.importErr
	}
	f.imported++
	return nil
}

var _ = Describe("Wizard", func() {
	var (
		sched     *scheduler.Scheduler
		db        *sql.DB
		s         *store.Store
		toolchain *fakeToolchain
		vers      *fakeVersions
		devs      *fakeDevices
		builder   *fakeBuilder
		configs   *fakeConfigs
		wizard    *services.Wizard
	)

	uno := models.Device{Port: "/dev/ttyACM0", VendorID: "2341", ProductID: "0043", Board: "Arduino Uno", FQBN: "arduino:avr:uno"}

	BeforeEach(func() {
		sched = scheduler.NewScheduler(1)

		var err error
		db, err = store.NewDB(":memory:")
		Expect(err).NotTo(HaveOccurred())
		Expect(migrations.Run(context.Background(), db)).To(Succeed())
		s = store.NewStore(db)

		toolchain = &fakeToolchain{path: "/data/toolchain/arduino-cli"}
		vers = &fakeVersions{
			releases: []models.Release{
				{Tag: "v5.1.0-Devel", Channel: models.ChannelDevelopment},
				{Tag: "v5.0.0-Prod", Channel: models.ChannelProduction},
			},
			clonePath: "/data/repos/ex_commandstation",
		}
		devs = &fakeDevices{devices: []models.Device{uno}, present: true}
		builder = &fakeBuilder{}
		configs = &fakeConfigs{}

		runner := services.NewTaskRunner(sched)
		wizard = services.NewWizard(runner, toolchain, vers, devs, builder, configs, s.Products(), s.Sessions())
	})

	AfterEach(func() {
		sched.Close()
		if db != nil {
			_ = db.Close()
		}
	})

	stage := func() models.Stage {
		return wizard.Status().Stage
	}

	// walkTo drives the wizard through the happy path up to target.
	walkTo := func(target models.Stage) {
		steps := []func(){
			func() { Expect(wizard.Advance()).To(Succeed()) }, // welcome -> acquire_toolchain
			func() {
				Expect(wizard.StartToolchain()).To(Succeed())
				Eventually(stage).Should(Equal(models.StageSelectDevice))
			},
			func() {
				Expect(wizard.SelectDevice(uno)).To(Succeed())
				Expect(wizard.Advance()).To(Succeed())
			},
			func() {
				Expect(wizard.SelectProduct(context.Background(), "ex_commandstation")).To(Succeed())
				Expect(wizard.Advance()).To(Succeed())
			},
			func() {
				Expect(wizard.SyncRepository(context.Background())).To(Succeed())
				Eventually(func() []models.Release { return wizard.Status().Releases }).ShouldNot(BeEmpty())
				Expect(wizard.Checkout("v5.0.0-Prod")).To(Succeed())
				Eventually(stage).Should(Equal(models.StageConfigure))
			},
			func() {
				Expect(wizard.SetConfig(map[string]string{models.OptionMotorDriver: "STANDARD_MOTOR_SHIELD"})).To(Succeed())
				Expect(wizard.Advance()).To(Succeed())
			},
		}
		for _, step := range steps {
			if stage() == target {
				return
			}
			step()
		}
		Expect(stage()).To(Equal(target))
	}

	It("should start at the welcome stage", func() {
		status := wizard.Status()
		Expect(status.Stage).To(Equal(models.StageWelcome))
		Expect(status.Failed).To(BeFalse())
		Expect(status.Task).To(BeNil())
	})

	Describe("stage guards", func() {
		It("should reject selections out of stage", func() {
			Expect(wizard.SelectDevice(uno)).To(MatchError(services.ErrStageMismatch))
			Expect(wizard.SelectProduct(context.Background(), "ex_commandstation")).To(MatchError(services.ErrStageMismatch))
			Expect(wizard.Checkout("v5.0.0-Prod")).To(MatchError(services.ErrStageMismatch))
		})

		It("should reject advancing past an empty selection stage", func() {
			walkTo(models.StageSelectDevice)
			err := wizard.Advance()
			Expect(errors.Is(err, services.ErrNotSatisfied)).To(BeTrue())
		})

		It("should reject a device without an FQBN", func() {
			walkTo(models.StageSelectDevice)
			unknown := models.Device{Port: "/dev/ttyUSB9", Board: models.UnknownBoard}
			Expect(wizard.SelectDevice(unknown)).To(HaveOccurred())
		})

		It("should reject a product that does not support the selected board", func() {
			devs.devices = []models.Device{{Port: "/dev/ttyUSB0", VendorID: "10C4", ProductID: "EA60", Board: "ESP32 Dev Kit", FQBN: "esp32:esp32:esp32"}}
			walkTo(models.StageSelectDevice)
			Expect(wizard.SelectDevice(devs.devices[0])).To(Succeed())
			Expect(wizard.Advance()).To(Succeed())

			// EX-Turntable only targets AVR boards.
			Expect(wizard.SelectProduct(context.Background(), "ex_turntable")).To(HaveOccurred())
			Expect(wizard.SelectProduct(context.Background(), "ex_commandstation")).To(Succeed())
		})

		It("should reject advancing with an incomplete configuration", func() {
			walkTo(models.StageConfigure)
			Expect(wizard.SetConfig(map[string]string{models.OptionWiFiEnabled: "true", models.OptionWiFiMode: "station"})).To(Succeed())

			err := wizard.Advance()
			Expect(errors.Is(err, services.ErrNotSatisfied)).To(BeTrue())
			Expect(wizard.Status().ConfigProblems).NotTo(BeEmpty())
		})
	})

	Describe("toolchain stage", func() {
		It("should advance once the toolchain is installed", func() {
			Expect(wizard.Advance()).To(Succeed())
			Expect(wizard.StartToolchain()).To(Succeed())

			Eventually(stage).Should(Equal(models.StageSelectDevice))
			Expect(wizard.Status().ToolchainPath).To(Equal("/data/toolchain/arduino-cli"))
		})

		It("should surface a retryable failure and recover on retry", func() {
			toolchain.set("", models.NewTaskError(models.ErrKindTransientNetwork, "download toolchain", errors.New("connection reset")))

			Expect(wizard.Advance()).To(Succeed())
			Expect(wizard.StartToolchain()).To(Succeed())

			Eventually(func() bool { return wizard.Status().Failed }).Should(BeTrue())
			status := wizard.Status()
			Expect(status.Stage).To(Equal(models.StageAcquireToolchain))
			Expect(status.RetryOffered).To(BeTrue())
			Expect(status.Error.Kind).To(Equal(models.ErrKindTransientNetwork))

			toolchain.set("/data/toolchain/arduino-cli", nil)
			Expect(wizard.Retry()).To(Succeed())
			Eventually(stage).Should(Equal(models.StageSelectDevice))
			Expect(wizard.Status().Failed).To(BeFalse())
		})

		It("should not offer a retry for disk exhaustion", func() {
			toolchain.set("", models.NewTaskError(models.ErrKindDiskSpace, "write download", errors.New("no space left on device")))

			Expect(wizard.Advance()).To(Succeed())
			Expect(wizard.StartToolchain()).To(Succeed())

			Eventually(func() bool { return wizard.Status().Failed }).Should(BeTrue())
			Expect(wizard.Status().RetryOffered).To(BeFalse())
			Expect(wizard.Retry()).To(HaveOccurred())
		})

		It("should return to the pre-task state on cancellation", func() {
			toolchain.block = make(chan struct{})

			Expect(wizard.Advance()).To(Succeed())
			Expect(wizard.StartToolchain()).To(Succeed())

			wizard.Cancel()
			Eventually(func() bool {
				t := wizard.Status().Task
				return t != nil && t.Status.IsTerminal()
			}).Should(BeTrue())

			status := wizard.Status()
			Expect(status.Stage).To(Equal(models.StageAcquireToolchain))
			Expect(status.Failed).To(BeFalse())
		})
	})

	Describe("version stage", func() {
		It("should list releases after syncing and advance on checkout", func() {
			walkTo(models.StageSelectVersion)

			Expect(wizard.SyncRepository(context.Background())).To(Succeed())
			Eventually(func() []models.Release { return wizard.Status().Releases }).ShouldNot(BeEmpty())
			Expect(stage()).To(Equal(models.StageSelectVersion))

			Expect(wizard.Checkout("v5.0.0-Prod")).To(Succeed())
			Eventually(stage).Should(Equal(models.StageConfigure))

			version := wizard.Status().Version
			Expect(version).NotTo(BeNil())
			Expect(version.Ref).To(Equal("v5.0.0-Prod"))
			Expect(version.Path).To(Equal("/data/repos/ex_commandstation"))
		})

		It("should stay on the version stage when the ref is missing", func() {
			walkTo(models.StageSelectVersion)
			vers.checkoutErr = models.NewTaskError(models.ErrKindRepositoryState, "checkout v9.9.9-Prod", errors.New("ref not found"))

			Expect(wizard.Checkout("v9.9.9-Prod")).To(Succeed())
			Eventually(func() bool { return wizard.Status().Failed }).Should(BeTrue())
			Expect(stage()).To(Equal(models.StageSelectVersion))
		})
	})

	Describe("build stage", func() {
		It("should generate configuration, compile, then chain the upload", func() {
			walkTo(models.StageBuildFlash)

			Expect(wizard.StartBuild(context.Background())).To(Succeed())
			Eventually(stage).Should(Equal(models.StageDone))

			compiled, uploaded := builder.counts()
			Expect(compiled).To(Equal(1))
			Expect(uploaded).To(Equal(1))
			Expect(configs.generated).To(Equal(1))
		})

		It("should not upload when the compile fails", func() {
			walkTo(models.StageBuildFlash)
			builder.compileErr = models.NewTaskError(models.ErrKindBuild, "compile", errors.New("exit status 1"))

			Expect(wizard.StartBuild(context.Background())).To(Succeed())
			Eventually(func() bool { return wizard.Status().Failed }).Should(BeTrue())

			_, uploaded := builder.counts()
			Expect(uploaded).To(BeZero())
			Expect(stage()).To(Equal(models.StageBuildFlash))
		})

		It("should chain the upload after a retried compile succeeds", func() {
			walkTo(models.StageBuildFlash)
			builder.compileErr = models.NewTaskError(models.ErrKindBuild, "compile", errors.New("exit status 1"))

			Expect(wizard.StartBuild(context.Background())).To(Succeed())
			Eventually(func() bool { return wizard.Status().Failed }).Should(BeTrue())
			Expect(wizard.Status().RetryOffered).To(BeTrue())

			builder.mu.Lock()
			builder.compileErr = nil
			builder.mu.Unlock()
			Expect(wizard.Retry()).To(Succeed())
			Eventually(stage).Should(Equal(models.StageDone))

			compiled, uploaded := builder.counts()
			Expect(compiled).To(Equal(2))
			Expect(uploaded).To(Equal(1))
		})

		It("should fail on a vanished device and offer a retry of the upload", func() {
			walkTo(models.StageBuildFlash)
			builder.uploadErr = models.NewTaskError(models.ErrKindDeviceUnavailable, "upload", errors.New("device gone"))

			Expect(wizard.StartBuild(context.Background())).To(Succeed())
			Eventually(func() bool { return wizard.Status().Failed }).Should(BeTrue())

			status := wizard.Status()
			Expect(status.Error.Kind).To(Equal(models.ErrKindDeviceUnavailable))
			Expect(status.RetryOffered).To(BeTrue())

			builder.mu.Lock()
			builder.uploadErr = nil
			builder.mu.Unlock()
			Expect(wizard.Retry()).To(Succeed())
			Eventually(stage).Should(Equal(models.StageDone))

			compiled, uploaded := builder.counts()
			Expect(compiled).To(Equal(1))
			Expect(uploaded).To(Equal(2))
		})
	})

	Describe("Back", func() {
		It("should discard state collected at and after the target stage", func() {
			walkTo(models.StageConfigure)
			Expect(wizard.Back(models.StageSelectDevice)).To(Succeed())

			status := wizard.Status()
			Expect(status.Stage).To(Equal(models.StageSelectDevice))
			Expect(status.Device).To(BeNil())
			Expect(status.Product).To(BeEmpty())
			Expect(status.Version).To(BeNil())
			Expect(status.Releases).To(BeEmpty())
			Expect(status.ToolchainPath).NotTo(BeEmpty())
		})

		It("should reject stepping forward or to the same stage", func() {
			walkTo(models.StageSelectDevice)
			Expect(wizard.Back(models.StageSelectDevice)).To(HaveOccurred())
			Expect(wizard.Back(models.StageConfigure)).To(HaveOccurred())
		})

		It("should reject stepping back while a task runs", func() {
			toolchain.block = make(chan struct{})
			Expect(wizard.Advance()).To(Succeed())
			Expect(wizard.StartToolchain()).To(Succeed())

			Expect(wizard.Back(models.StageWelcome)).To(MatchError(services.ErrTaskRunning))
			close(toolchain.block)
			Eventually(stage).Should(Equal(models.StageSelectDevice))
		})

		It("should clear a failure when stepping back", func() {
			toolchain.set("", models.NewTaskError(models.ErrKindTimeout, "download toolchain", errors.New("timeout")))
			Expect(wizard.Advance()).To(Succeed())
			Expect(wizard.StartToolchain()).To(Succeed())
			Eventually(func() bool { return wizard.Status().Failed }).Should(BeTrue())

			Expect(wizard.Back(models.StageWelcome)).To(Succeed())
			status := wizard.Status()
			Expect(status.Failed).To(BeFalse())
			Expect(status.RetryOffered).To(BeFalse())
		})
	})

	Describe("session persistence", func() {
		It("should persist progress and restore it into a new wizard", func() {
			walkTo(models.StageConfigure)

			runner := services.NewTaskRunner(sched)
			other := services.NewWizard(runner, toolchain, vers, devs, builder, configs, s.Products(), s.Sessions())
			Expect(other.Restore(context.Background())).To(Succeed())

			status := other.Status()
			Expect(status.Stage).To(Equal(models.StageConfigure))
			Expect(status.Product).To(Equal("ex_commandstation"))
			Expect(status.Device).NotTo(BeNil())
			Expect(status.Device.FQBN).To(Equal("arduino:avr:uno"))
		})

		It("should clear the persisted session on reset", func() {
			walkTo(models.StageConfigure)
			Expect(wizard.Reset()).To(Succeed())
			Expect(stage()).To(Equal(models.StageWelcome))

			_, err := s.Sessions().Get(context.Background())
			Expect(err).To(MatchError(store.ErrNotFound))
		})
	})
})
