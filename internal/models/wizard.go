package models

// WizardStatus is the point-in-time view of the wizard the presentation
// layer polls. Failed is not a terminal stage: it marks that the current
// stage could not complete, and the user may retry or step back.
type WizardStatus struct {
	Stage          Stage
	Failed         bool
	Error          *TaskError
	RetryOffered   bool
	Task           *TaskSnapshot
	ToolchainPath  string
	Device         *Device
	Product        string
	Version        *VersionSelection
	Releases       []Release
	ConfigProblems []string
}
