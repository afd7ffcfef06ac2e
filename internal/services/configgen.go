package services

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/openrail/provision-agent/internal/models"
)

// ConfigGenerator renders configuration headers into a sketch directory
// and imports existing configuration files from a previous install.
type ConfigGenerator struct{}

func NewConfigGenerator() *ConfigGenerator {
	return &ConfigGenerator{}
}

// Generate writes config.h and, when automation directives apply,
// myAutomation.h into dir from a validated configuration set.
func (g *ConfigGenerator) Generate(set models.ConfigurationSet, dir string) error {
	if problems := set.Validate(); len(problems) > 0 {
		return models.NewTaskError(models.ErrKindConfigIncomplete, "generate configuration",
			fmt.Errorf("configuration incomplete: %s", strings.Join(problems, "; ")))
	}

	if err := os.WriteFile(filepath.Join(dir, "config.h"), []byte(renderConfigHeader(set)), 0o644); err != nil {
		return classifyFS("write config.h", err)
	}

	automation := renderAutomation(set)
	if automation != "" {
		if err := os.WriteFile(filepath.Join(dir, "myAutomation.h"), []byte(automation), 0o644); err != nil {
			return classifyFS("write myAutomation.h", err)
		}
	}
	zap.S().Infow("configuration generated", "dir", dir)
	return nil
}

func renderConfigHeader(set models.ConfigurationSet) string {
	var b strings.Builder
	b.WriteString("// Generated by provision-agent. Edits are overwritten on the next run.\n")
	b.WriteString("#ifndef CONFIG_H\n#define CONFIG_H\n\n")

	fmt.Fprintf(&b, "#define MOTOR_SHIELD_TYPE %s\n", set[models.OptionMotorDriver])

	if display := set[models.OptionDisplayType]; display != "" {
		fmt.Fprintf(&b, "#define %s\n", display)
	}

	switch {
	case set.Bool(models.OptionWiFiEnabled):
		b.WriteString("#define ENABLE_WIFI true\n")
		if set[models.OptionWiFiMode] == models.WiFiModeStation {
			fmt.Fprintf(&b, "#define WIFI_SSID \"%s\"\n", set[models.OptionWiFiSSID])
			fmt.Fprintf(&b, "#define WIFI_PASSWORD \"%s\"\n", set[models.OptionWiFiPassword])
		} else {
			b.WriteString("#define WIFI_SSID \"Your network name\"\n")
			b.WriteString("#define WIFI_PASSWORD \"Your network passwd\"\n")
			fmt.Fprintf(&b, "#define WIFI_CHANNEL %s\n", set[models.OptionWiFiChannel])
		}
		if hostname := set[models.OptionWiFiHostname]; hostname != "" {
			fmt.Fprintf(&b, "#define WIFI_HOSTNAME \"%s\"\n", hostname)
		}
	case set.Bool(models.OptionEthernet):
		b.WriteString("#define ENABLE_ETHERNET true\n")
	}

	if limit := set[models.OptionCurrentLimit]; limit != "" {
		fmt.Fprintf(&b, "#define MAX_CURRENT %s\n", limit)
	}
	if set.Bool(models.OptionDisableEEPROM) {
		b.WriteString("#define DISABLE_EEPROM\n")
	}
	if set.Bool(models.OptionDisableProg) {
		b.WriteString("#define DISABLE_PROG\n")
	}

	b.WriteString("\n#endif\n")
	return b.String()
}

// renderAutomation produces myAutomation.h contents, or "" when no
// directive applies.
func renderAutomation(set models.ConfigurationSet) string {
	var lines []string

	if set.Bool(models.OptionPowerOnStart) {
		lines = append(lines, "AUTOSTART", "POWERON")
	}

	if set.Bool(models.OptionTrackManager) {
		lines = append(lines, trackLines("A", set[models.OptionTrackAMode], set[models.OptionTrackAID])...)
		lines = append(lines, trackLines("B", set[models.OptionTrackBMode], set[models.OptionTrackBID])...)
	}

	if len(lines) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("// Generated by provision-agent. Edits are overwritten on the next run.\n")
	for _, line := range lines {
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString("DONE\n")
	return b.String()
}

func trackLines(track, mode, id string) []string {
	if mode == "" {
		return nil
	}
	if mode == "DC" || mode == "DCX" {
		return []string{
			fmt.Sprintf("SETLOCO(%s) SET_TRACK(%s,%s)", id, track, mode),
			fmt.Sprintf("ROSTER(%s,\"DC TRACK %s\",\"/* */\")", id, track),
		}
	}
	return []string{fmt.Sprintf("SET_TRACK(%s,%s)", track, mode)}
}

// ImportExisting copies the required configuration files (and any other
// *.h the user kept alongside them) from src into dir. Missing required
// files abort the import before anything is copied.
func (g *ConfigGenerator) ImportExisting(src, dir string, required []string) error {
	for _, name := range required {
		if _, err := os.Stat(filepath.Join(src, name)); err != nil {
			return models.NewTaskError(models.ErrKindConfigIncomplete, "import configuration",
				fmt.Errorf("required file %s not found in %s", name, src))
		}
	}

	entries, err := os.ReadDir(src)
	if err != nil {
		return classifyFS("read configuration folder", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".h") {
			continue
		}
		if err := copyFile(filepath.Join(src, entry.Name()), filepath.Join(dir, entry.Name())); err != nil {
			return err
		}
	}
	zap.S().Infow("configuration imported", "from", src, "to", dir)
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return classifyFS("copy configuration file", err)
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return classifyFS("copy configuration file", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return classifyFS("copy configuration file", err)
	}
	return out.Close()
}
