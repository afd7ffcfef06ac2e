package models_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/openrail/provision-agent/internal/models"
)

var _ = Describe("ConfigurationSet", func() {
	var set models.ConfigurationSet

	BeforeEach(func() {
		set = models.ConfigurationSet{
			models.OptionMotorDriver: "STANDARD_MOTOR_SHIELD",
		}
	})

	It("should accept a minimal set with a motor driver", func() {
		Expect(set.Validate()).To(BeEmpty())
		Expect(set.Complete()).To(BeTrue())
	})

	It("should require a motor driver", func() {
		delete(set, models.OptionMotorDriver)
		Expect(set.Validate()).To(ContainElement("motor driver not set"))
	})

	It("should reject WiFi and Ethernet together", func() {
		set[models.OptionWiFiEnabled] = "true"
		set[models.OptionWiFiMode] = models.WiFiModeStation
		set[models.OptionWiFiSSID] = "home"
		set[models.OptionEthernet] = "true"
		Expect(set.Validate()).To(ContainElement("cannot have both Ethernet and WiFi enabled"))
	})

	Describe("WiFi options", func() {
		BeforeEach(func() {
			set[models.OptionWiFiEnabled] = "true"
		})

		It("should require an SSID in station mode", func() {
			set[models.OptionWiFiMode] = models.WiFiModeStation
			Expect(set.Validate()).To(ContainElement("WiFi SSID/name not set"))
		})

		It("should bound the channel in access point mode", func() {
			set[models.OptionWiFiMode] = models.WiFiModeAccessPoint
			set[models.OptionWiFiChannel] = "14"
			Expect(set.Validate()).NotTo(BeEmpty())

			set[models.OptionWiFiChannel] = "11"
			Expect(set.Validate()).To(BeEmpty())
		})

		It("should reject an unknown mode", func() {
			set[models.OptionWiFiMode] = "mesh"
			Expect(set.Validate()).NotTo(BeEmpty())
		})
	})

	It("should require the current limit to be numeric", func() {
		set[models.OptionCurrentLimit] = "lots"
		Expect(set.Validate()).To(ContainElement("current limit must be a number in mA"))

		set[models.OptionCurrentLimit] = "2000"
		Expect(set.Validate()).To(BeEmpty())
	})

	Describe("track manager", func() {
		BeforeEach(func() {
			set[models.OptionTrackManager] = "true"
			set[models.OptionTrackAMode] = "MAIN"
			set[models.OptionTrackBMode] = "PROG"
		})

		It("should accept plain track modes without an ID", func() {
			Expect(set.Validate()).To(BeEmpty())
		})

		It("should bound the loco ID for DC modes", func() {
			set[models.OptionTrackAMode] = "DC"
			set[models.OptionTrackAID] = "10294"
			Expect(set.Validate()).NotTo(BeEmpty())

			set[models.OptionTrackAID] = "10293"
			Expect(set.Validate()).To(BeEmpty())
		})

		It("should require a mode for each track", func() {
			delete(set, models.OptionTrackBMode)
			Expect(set.Validate()).To(ContainElement("track B mode not set"))
		})
	})

	Describe("board constraints", func() {
		It("should force EEPROM and WiFi off on low-memory boards", func() {
			set[models.OptionWiFiEnabled] = "true"
			set.ApplyBoardConstraints("arduino:avr:uno")
			Expect(set.Bool(models.OptionDisableEEPROM)).To(BeTrue())
			Expect(set.Bool(models.OptionWiFiEnabled)).To(BeFalse())
		})

		It("should force WiFi on for ESP32 boards", func() {
			set[models.OptionWiFiEnabled] = "false"
			set.ApplyBoardConstraints("esp32:esp32:esp32")
			Expect(set.Bool(models.OptionWiFiEnabled)).To(BeTrue())
		})

		It("should leave capable boards alone", func() {
			set[models.OptionWiFiEnabled] = "true"
			set.ApplyBoardConstraints("arduino:avr:mega")
			Expect(set.Bool(models.OptionWiFiEnabled)).To(BeTrue())
			Expect(set.Bool(models.OptionDisableEEPROM)).To(BeFalse())
		})
	})
})
