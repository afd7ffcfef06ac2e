package config

import "time"

type ServerModeType string

const (
	ServerModeProd ServerModeType = "prod"
	ServerModeDev  ServerModeType = "dev"
)

//go:generate go run github.com/ecordell/optgen -output zz_generated.configuration.go . Configuration ServerConfig AgentConfig
type Configuration struct {
	Server ServerConfig `debugmap:"visible"`
	Agent  AgentConfig  `debugmap:"visible"`

	// Log
	LogFormat string `debugmap:"visible" default:"console"`
	LogLevel  string `debugmap:"visible" default:"info"`
}

type ServerConfig struct {
	HTTPPort      int    `debugmap:"visible" default:"8420"`
	StaticsFolder string `debugmap:"visible"`
	ServerMode    string `debugmap:"visible" default:"dev"`
}

type AgentConfig struct {
	// DataFolder holds the database, the toolchain and the repository
	// mirrors. Empty means in-memory database and a temporary folder.
	DataFolder string `debugmap:"visible"`
	NumWorkers int    `debugmap:"visible" default:"1"`
	// ToolchainURL overrides the default toolchain download host.
	ToolchainURL   string        `debugmap:"visible"`
	NetworkTimeout time.Duration `debugmap:"visible" default:"30s"`
}
