package models

// Stage is one step of the linear provisioning wizard.
type Stage string

const (
	// StageWelcome - initial landing stage, no requirements
	StageWelcome Stage = "welcome"
	// StageAcquireToolchain - download/verify the build toolchain
	StageAcquireToolchain Stage = "acquire_toolchain"
	// StageSelectDevice - pick an attached serial device
	StageSelectDevice Stage = "select_device"
	// StageSelectProduct - pick a product from the catalog
	StageSelectProduct Stage = "select_product"
	// StageSelectVersion - sync the product repository and check out a release
	StageSelectVersion Stage = "select_version"
	// StageConfigure - build the configuration set for the firmware
	StageConfigure Stage = "configure"
	// StageBuildFlash - compile the firmware and upload it to the device
	StageBuildFlash Stage = "build_flash"
	// StageDone - firmware flashed successfully, terminal
	StageDone Stage = "done"
)

// stageOrder defines the strict forward progression of the wizard.
var stageOrder = []Stage{
	StageWelcome,
	StageAcquireToolchain,
	StageSelectDevice,
	StageSelectProduct,
	StageSelectVersion,
	StageConfigure,
	StageBuildFlash,
	StageDone,
}

// Stages returns the wizard stages in order.
func Stages() []Stage {
	out := make([]Stage, len(stageOrder))
	copy(out, stageOrder)
	return out
}

func (s Stage) IsValid() bool {
	return s.Index() >= 0
}

// Index returns the position of the stage in the wizard sequence, or -1
// for an unknown stage.
func (s Stage) Index() int {
	for i, stage := range stageOrder {
		if stage == s {
			return i
		}
	}
	return -1
}

// Next returns the following stage. The second return value is false when
// the stage is terminal or unknown.
func (s Stage) Next() (Stage, bool) {
	i := s.Index()
	if i < 0 || i == len(stageOrder)-1 {
		return s, false
	}
	return stageOrder[i+1], true
}

// Before reports whether s comes strictly before other in the wizard
// sequence.
func (s Stage) Before(other Stage) bool {
	si, oi := s.Index(), other.Index()
	return si >= 0 && oi >= 0 && si < oi
}

// IsTerminal reports whether the wizard has completed.
func (s Stage) IsTerminal() bool {
	return s == StageDone
}

func (s Stage) String() string {
	return string(s)
}
