package config_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"github.com/tauraamui/dragoneye/pkg/config"
	"github.com/tauraamui/dragoneye/pkg/configdef"
)

var _ = Describe("Config", func() {
	var (
		dir        string
		configPath string
		resetEnv   func()
	)

	BeforeEach(func() {
		var err error
		dir, err = os.MkdirTemp("", "dragoneye-config")
		Expect(err).ToNot(HaveOccurred())
		configPath = filepath.Join(dir, "dragoneye", "config.json")

		existing, set := os.LookupEnv("DRAGON_EYE_CONFIG")
		Expect(os.Setenv("DRAGON_EYE_CONFIG", configPath)).To(Succeed())
		resetEnv = func() {
			if set {
				os.Setenv("DRAGON_EYE_CONFIG", existing)
				return
			}
			os.Unsetenv("DRAGON_EYE_CONFIG")
		}
	})

	AfterEach(func() {
		resetEnv()
		Expect(os.RemoveAll(dir)).To(Succeed())
	})

	Context("Creating default config", func() {
		It("Should write a config which resolves with defaults", func() {
			Expect(config.DefaultCreator().Create()).To(Succeed())

			values, err := config.DefaultResolver().Resolve()
			Expect(err).ToNot(HaveOccurred())
			Expect(values.VideoBackend).To(Equal("ffmpeg"))
			Expect(values.SnapshotFormat).To(Equal("jpg"))
			Expect(values.DatabasePath).To(Equal(filepath.Join(dir, "dragoneye", "dragoneye.db")))
			Expect(values.Cameras).To(BeEmpty())
		})

		It("Should refuse to overwrite an existing config", func() {
			creator := config.DefaultCreateResolver()
			Expect(creator.Create()).To(Succeed())
			Expect(creator.Create()).To(MatchError(configdef.ErrConfigAlreadyExists))
		})
	})

	Context("Loading into struct", func() {
		It("Should load cameras and their schedules", func() {
			Expect(os.MkdirAll(filepath.Dir(configPath), os.ModePerm)).To(Succeed())
			Expect(os.WriteFile(configPath, []byte(`{
				"recording_directory": "/recordings",
				"cameras": [
					{
						"title": "Test Cam 1",
						"address": "rtsp://camera-network-addr/stream",
						"record": true,
						"seconds_per_segment": 300,
						"schedule": {
							"monday": {"on": "08:00:00", "off": "20:00:00"}
						}
					}
				]
			}`), 0666)).To(Succeed())

			values, err := config.DefaultResolver().Resolve()
			Expect(err).ToNot(HaveOccurred())
			Expect(values.Cameras).To(HaveLen(1))

			cam := values.Cameras[0]
			Expect(cam.Title).To(Equal("Test Cam 1"))
			Expect(cam.SecondsPerSegment).To(Equal(300))
			Expect(cam.Schedule.Monday.Off).ToNot(BeNil())
			Expect(cam.Schedule.Monday.Off.Hour()).To(Equal(20))
		})

		It("Should return validation errors", func() {
			Expect(os.MkdirAll(filepath.Dir(configPath), os.ModePerm)).To(Succeed())
			Expect(os.WriteFile(configPath, []byte(`{"cameras": [{"title": "A"}, {"title": "A"}]}`), 0666)).To(Succeed())

			_, err := config.DefaultResolver().Resolve()
			Expect(err).To(MatchError("validation failed: camera titles must be unique"))
		})
	})

	Context("Destroying config", func() {
		It("Should remove the config file", func() {
			Expect(config.DefaultCreator().Create()).To(Succeed())
			Expect(config.DefaultDestroyer().Destroy()).To(Succeed())
			_, err := os.Stat(configPath)
			Expect(os.IsNotExist(err)).To(BeTrue())
		})
	})
})
