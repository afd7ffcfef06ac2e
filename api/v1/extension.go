package v1

import (
	"github.com/openrail/provision-agent/internal/models"
)

func (w *WizardStatus) FromModel(m models.WizardStatus) {
	w.Stage = string(m.Stage)
	for _, s := range models.Stages() {
		w.Stages = append(w.Stages, string(s))
	}
	w.Failed = m.Failed
	w.RetryOffered = m.RetryOffered
	w.ToolchainPath = m.ToolchainPath
	w.Product = m.Product
	w.ConfigProblems = m.ConfigProblems

	if m.Error != nil {
		w.Error = taskErrorFromModel(m.Error)
	}
	if m.Task != nil {
		t := &Task{}
		t.FromModel(*m.Task)
		w.Task = t
	}
	if m.Device != nil {
		d := &Device{}
		d.FromModel(*m.Device)
		w.Device = d
	}
	if m.Version != nil {
		w.Version = &VersionSelection{Product: m.Version.Product, Ref: m.Version.Ref}
	}
	for _, r := range m.Releases {
		w.Releases = append(w.Releases, Release{Tag: r.Tag, Channel: string(r.Channel)})
	}
}

func (t *Task) FromModel(m models.TaskSnapshot) {
	t.ID = m.ID.String()
	t.Kind = string(m.Kind)
	t.Status = string(m.Status)
	t.Progress = m.Progress
	t.Log = m.Log
	if m.Error != nil {
		t.Error = taskErrorFromModel(m.Error)
	}
}

func (d *Device) FromModel(m models.Device) {
	d.Port = m.Port
	d.VendorID = m.VendorID
	d.ProductID = m.ProductID
	d.Board = m.Board
	d.FQBN = m.FQBN
}

func (p *Product) FromModel(m models.Product) {
	p.Name = m.Name
	p.DisplayName = m.DisplayName
	p.SupportedBoards = m.SupportedBoards
}

func taskErrorFromModel(m *models.TaskError) *TaskError {
	return &TaskError{
		Kind:      string(m.Kind),
		Step:      m.Step,
		Message:   m.Error(),
		LogTail:   m.LogTail,
		Retryable: m.Retryable(),
	}
}
