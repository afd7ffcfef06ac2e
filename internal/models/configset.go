package models

import (
	"fmt"
	"strconv"
	"strings"
)

// Configuration option names. Values are stored as strings; booleans are
// "true"/"false", numbers are decimal.
const (
	OptionMotorDriver  = "motor_driver"
	OptionDisplayType  = "display_type"
	OptionWiFiEnabled  = "wifi_enabled"
	OptionWiFiMode     = "wifi_mode" // "ap" or "station"
	OptionWiFiSSID     = "wifi_ssid"
	OptionWiFiPassword = "wifi_password"
	OptionWiFiHostname = "wifi_hostname"
	OptionWiFiChannel  = "wifi_channel"
	OptionEthernet     = "ethernet_enabled"
	OptionCurrentLimit = "current_limit"
	OptionDisableEEPROM = "disable_eeprom"
	OptionDisableProg   = "disable_prog"
	OptionPowerOnStart  = "power_on_start"
	OptionTrackManager  = "track_manager"
	OptionTrackAMode    = "track_a_mode"
	OptionTrackAID      = "track_a_id"
	OptionTrackBMode    = "track_b_mode"
	OptionTrackBID      = "track_b_id"
)

const (
	WiFiModeAccessPoint = "ap"
	WiFiModeStation     = "station"

	// Loco/cab IDs for DC track modes must stay in this range.
	MinLocoID = 1
	MaxLocoID = 10293

	MinWiFiChannel = 1
	MaxWiFiChannel = 11
)

// ConfigurationSet maps configuration option names to chosen values. It
// is built incrementally across the configure stage and must validate as
// complete before a build may start.
type ConfigurationSet map[string]string

// Bool reads a boolean option; absent options are false.
func (c ConfigurationSet) Bool(name string) bool {
	return c[name] == "true"
}

// Int reads a numeric option.
func (c ConfigurationSet) Int(name string) (int, error) {
	v, ok := c[name]
	if !ok {
		return 0, fmt.Errorf("option %s not set", name)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("option %s is not a number: %q", name, v)
	}
	return n, nil
}

// Validate checks the set against the product configuration rules and
// returns the list of problems. An empty list means the set is complete
// and a build may proceed.
func (c ConfigurationSet) Validate() []string {
	var problems []string

	if c[OptionMotorDriver] == "" {
		problems = append(problems, "motor driver not set")
	}

	wifi := c.Bool(OptionWiFiEnabled)
	ethernet := c.Bool(OptionEthernet)
	if wifi && ethernet {
		problems = append(problems, "cannot have both Ethernet and WiFi enabled")
	}

	if wifi {
		switch c[OptionWiFiMode] {
		case WiFiModeAccessPoint:
			if ch, err := c.Int(OptionWiFiChannel); err != nil || ch < MinWiFiChannel || ch > MaxWiFiChannel {
				problems = append(problems, fmt.Sprintf("WiFi channel must be from %d to %d", MinWiFiChannel, MaxWiFiChannel))
			}
		case WiFiModeStation:
			if c[OptionWiFiSSID] == "" {
				problems = append(problems, "WiFi SSID/name not set")
			}
		default:
			problems = append(problems, "WiFi mode must be \"ap\" or \"station\"")
		}
	}

	if _, ok := c[OptionCurrentLimit]; ok {
		if _, err := c.Int(OptionCurrentLimit); err != nil {
			problems = append(problems, "current limit must be a number in mA")
		}
	}

	if c.Bool(OptionTrackManager) {
		problems = append(problems, c.validateTrack(OptionTrackAMode, OptionTrackAID, "A")...)
		problems = append(problems, c.validateTrack(OptionTrackBMode, OptionTrackBID, "B")...)
	}

	return problems
}

func (c ConfigurationSet) validateTrack(modeOpt, idOpt, label string) []string {
	mode := c[modeOpt]
	if mode == "" {
		return []string{fmt.Sprintf("track %s mode not set", label)}
	}
	// DC and DCX modes drive a specific loco/cab ID.
	if mode == "DC" || mode == "DCX" {
		id, err := c.Int(idOpt)
		if err != nil || id < MinLocoID || id > MaxLocoID {
			return []string{fmt.Sprintf("track %s loco/cab ID must be from %d to %d", label, MinLocoID, MaxLocoID)}
		}
	}
	return nil
}

// lowMemoryBoards cannot fit the EEPROM or WiFi code paths alongside the
// command station firmware.
var lowMemoryBoards = map[string]bool{
	"arduino:avr:uno":  true,
	"arduino:avr:nano": true,
}

// ApplyBoardConstraints forces the options the selected board does not
// leave a choice about: low-memory AVR boards run without EEPROM and
// WiFi, ESP32 boards always have WiFi on.
func (c ConfigurationSet) ApplyBoardConstraints(fqbn string) {
	if lowMemoryBoards[fqbn] {
		c[OptionDisableEEPROM] = "true"
		c[OptionWiFiEnabled] = "false"
	}
	if strings.HasPrefix(fqbn, "esp32:") {
		c[OptionWiFiEnabled] = "true"
	}
}

// Complete reports whether the configuration set passes validation.
func (c ConfigurationSet) Complete() bool {
	return len(c.Validate()) == 0
}
