package services_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/openrail/provision-agent/internal/models"
	"github.com/openrail/provision-agent/internal/services"
)

var _ = Describe("ConfigGenerator", func() {
	var (
		gen *services.ConfigGenerator
		dir string
		set models.ConfigurationSet
	)

	BeforeEach(func() {
		gen = services.NewConfigGenerator()
		dir = GinkgoT().TempDir()
		set = models.ConfigurationSet{
			models.OptionMotorDriver: "STANDARD_MOTOR_SHIELD",
		}
	})

	readFile := func(name string) string {
		content, err := os.ReadFile(filepath.Join(dir, name))
		Expect(err).NotTo(HaveOccurred())
		return string(content)
	}

	Describe("Generate", func() {
		It("should render the motor driver define", func() {
			Expect(gen.Generate(set, dir)).To(Succeed())
			Expect(readFile("config.h")).To(ContainSubstring("#define MOTOR_SHIELD_TYPE STANDARD_MOTOR_SHIELD"))
		})

		It("should refuse an incomplete configuration", func() {
			delete(set, models.OptionMotorDriver)
			err := gen.Generate(set, dir)
			Expect(err).To(HaveOccurred())

			te, ok := models.AsTaskError(err)
			Expect(ok).To(BeTrue())
			Expect(te.Kind).To(Equal(models.ErrKindConfigIncomplete))
			Expect(te.Retryable()).To(BeFalse())

			_, statErr := os.Stat(filepath.Join(dir, "config.h"))
			Expect(os.IsNotExist(statErr)).To(BeTrue())
		})

		It("should render station mode WiFi credentials", func() {
			set[models.OptionWiFiEnabled] = "true"
			set[models.OptionWiFiMode] = models.WiFiModeStation
			set[models.OptionWiFiSSID] = "home-net"
			set[models.OptionWiFiPassword] = "hunter2"

			Expect(gen.Generate(set, dir)).To(Succeed())
			content := readFile("config.h")
			Expect(content).To(ContainSubstring("#define ENABLE_WIFI true"))
			Expect(content).To(ContainSubstring(`#define WIFI_SSID "home-net"`))
			Expect(content).To(ContainSubstring(`#define WIFI_PASSWORD "hunter2"`))
		})

		It("should render the access point channel", func() {
			set[models.OptionWiFiEnabled] = "true"
			set[models.OptionWiFiMode] = models.WiFiModeAccessPoint
			set[models.OptionWiFiChannel] = "6"

			Expect(gen.Generate(set, dir)).To(Succeed())
			Expect(readFile("config.h")).To(ContainSubstring("#define WIFI_CHANNEL 6"))
		})

		It("should not write automation directives for a plain setup", func() {
			Expect(gen.Generate(set, dir)).To(Succeed())
			_, err := os.Stat(filepath.Join(dir, "myAutomation.h"))
			Expect(os.IsNotExist(err)).To(BeTrue())
		})

		It("should render power-on automation", func() {
			set[models.OptionPowerOnStart] = "true"

			Expect(gen.Generate(set, dir)).To(Succeed())
			content := readFile("myAutomation.h")
			Expect(content).To(ContainSubstring("AUTOSTART"))
			Expect(content).To(ContainSubstring("POWERON"))
			Expect(content).To(ContainSubstring("DONE"))
		})

		It("should render track manager directives with loco IDs", func() {
			set[models.OptionTrackManager] = "true"
			set[models.OptionTrackAMode] = "MAIN"
			set[models.OptionTrackBMode] = "DC"
			set[models.OptionTrackBID] = "3"

			Expect(gen.Generate(set, dir)).To(Succeed())
			content := readFile("myAutomation.h")
			Expect(content).To(ContainSubstring("SET_TRACK(A,MAIN)"))
			Expect(content).To(ContainSubstring("SETLOCO(3) SET_TRACK(B,DC)"))
			Expect(content).To(ContainSubstring(`ROSTER(3,"DC TRACK B"`))
		})
	})

	Describe("ImportExisting", func() {
		var src string

		BeforeEach(func() {
			src = GinkgoT().TempDir()
		})

		It("should copy header files when the required ones exist", func() {
			Expect(os.WriteFile(filepath.Join(src, "config.h"), []byte("// mine\n"), 0o644)).To(Succeed())
			Expect(os.WriteFile(filepath.Join(src, "myAutomation.h"), []byte("POWERON\n"), 0o644)).To(Succeed())
			Expect(os.WriteFile(filepath.Join(src, "notes.txt"), []byte("skip me\n"), 0o644)).To(Succeed())

			Expect(gen.ImportExisting(src, dir, []string{"config.h"})).To(Succeed())

			Expect(readFile("config.h")).To(Equal("// mine\n"))
			Expect(readFile("myAutomation.h")).To(Equal("POWERON\n"))
			_, err := os.Stat(filepath.Join(dir, "notes.txt"))
			Expect(os.IsNotExist(err)).To(BeTrue())
		})

		It("should refuse when a required file is missing, copying nothing", func() {
			Expect(os.WriteFile(filepath.Join(src, "myAutomation.h"), []byte("POWERON\n"), 0o644)).To(Succeed())

			err := gen.ImportExisting(src, dir, []string{"config.h"})
			Expect(err).To(HaveOccurred())
			te, ok := models.AsTaskError(err)
			Expect(ok).To(BeTrue())
			Expect(te.Kind).To(Equal(models.ErrKindConfigIncomplete))

			_, statErr := os.Stat(filepath.Join(dir, "myAutomation.h"))
			Expect(os.IsNotExist(statErr)).To(BeTrue())
		})
	})
})
