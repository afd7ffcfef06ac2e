package v1

// Wire types for the provisioning API. Kept separate from the domain
// models so the JSON surface can evolve independently.

type WizardStatus struct {
	Stage          string            `json:"stage"`
	Stages         []string          `json:"stages"`
	Failed         bool              `json:"failed"`
	Error          *TaskError        `json:"error,omitempty"`
	RetryOffered   bool              `json:"retry_offered"`
	Task           *Task             `json:"task,omitempty"`
	ToolchainPath  string            `json:"toolchain_path,omitempty"`
	Device         *Device           `json:"device,omitempty"`
	Product        string            `json:"product,omitempty"`
	Version        *VersionSelection `json:"version,omitempty"`
	Releases       []Release         `json:"releases,omitempty"`
	ConfigProblems []string          `json:"config_problems,omitempty"`
}

type Task struct {
	ID       string     `json:"id"`
	Kind     string     `json:"kind"`
	Status   string     `json:"status"`
	Progress int        `json:"progress"`
	Log      []string   `json:"log,omitempty"`
	Error    *TaskError `json:"error,omitempty"`
}

type TaskError struct {
	Kind      string   `json:"kind"`
	Step      string   `json:"step"`
	Message   string   `json:"message"`
	LogTail   []string `json:"log_tail,omitempty"`
	Retryable bool     `json:"retryable"`
}

type Device struct {
	Port      string `json:"port"`
	VendorID  string `json:"vendor_id,omitempty"`
	ProductID string `json:"product_id,omitempty"`
	Board     string `json:"board"`
	FQBN      string `json:"fqbn,omitempty"`
}

type DeviceList struct {
	Devices []Device `json:"devices"`
}

type Product struct {
	Name            string   `json:"name"`
	DisplayName     string   `json:"display_name"`
	SupportedBoards []string `json:"supported_boards"`
}

type ProductList struct {
	Products []Product `json:"products"`
}

type Release struct {
	Tag     string `json:"tag"`
	Channel string `json:"channel"`
}

type VersionSelection struct {
	Product string `json:"product"`
	Ref     string `json:"ref"`
}

type BackRequest struct {
	Stage string `json:"stage" binding:"required"`
}

type SelectDeviceRequest struct {
	Port string `json:"port" binding:"required"`
	// FQBN overrides or supplies the board identity; required for
	// devices enumerated as unknown.
	FQBN string `json:"fqbn,omitempty"`
}

type SelectProductRequest struct {
	Name string `json:"name" binding:"required"`
}

type CheckoutRequest struct {
	Ref string `json:"ref" binding:"required"`
}

type ConfigRequest struct {
	Options map[string]string `json:"options" binding:"required"`
}

type ImportConfigRequest struct {
	Path string `json:"path" binding:"required"`
}

// Board is one entry of the known-board catalog; the console offers
// these when the user has to pick an FQBN for an unknown device.
type Board struct {
	Name      string `json:"name"`
	FQBN      string `json:"fqbn"`
	VendorID  string `json:"vendor_id"`
	ProductID string `json:"product_id"`
}

type BoardList struct {
	Boards []Board `json:"boards"`
}

type Preferences struct {
	Preferences map[string]string `json:"preferences"`
}

type Error struct {
	Error string `json:"error"`
}
