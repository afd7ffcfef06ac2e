package models

import "github.com/google/uuid"

// Session holds all state the wizard collects as the user moves through
// the stages. There is exactly one session per agent process; the working
// directory it points at is owned exclusively by it.
type Session struct {
	ID    uuid.UUID
	Stage Stage

	ToolchainPath string
	Device        *Device
	Product       string
	Version       *VersionSelection
	Config        ConfigurationSet

	// ConfigImported is set when the user supplied existing configuration
	// files instead of generating them from Config.
	ConfigImported bool
	// Flashed is set once the upload step has succeeded.
	Flashed bool
}

func NewSession() *Session {
	return &Session{
		ID:     uuid.New(),
		Stage:  StageWelcome,
		Config: ConfigurationSet{},
	}
}

// DiscardFrom clears all state collected at or after the given stage.
// Used by the wizard's back transition.
func (s *Session) DiscardFrom(stage Stage) {
	s.Flashed = false
	if stage.Index() <= StageConfigure.Index() {
		s.Config = ConfigurationSet{}
		s.ConfigImported = false
	}
	if stage.Index() <= StageSelectVersion.Index() {
		s.Version = nil
	}
	if stage.Index() <= StageSelectProduct.Index() {
		s.Product = ""
	}
	if stage.Index() <= StageSelectDevice.Index() {
		s.Device = nil
	}
	if stage.Index() <= StageAcquireToolchain.Index() {
		s.ToolchainPath = ""
	}
}
