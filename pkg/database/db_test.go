package data_test

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"github.com/spf13/afero"
	data "github.com/tauraamui/dragoneye/pkg/database"
	"github.com/tauraamui/dragoneye/pkg/database/dbconn"
	"github.com/tauraamui/dragoneye/pkg/database/models"
	"github.com/tauraamui/dragoneye/pkg/database/repos"
)

var _ = Describe("Data", func() {
	Context("Setup run against blank file system", func() {
		var (
			fs      afero.Fs
			resetFS func()
			mock    dbconn.MockGormWrapper
			opened  []string
			resetDB func()
		)

		BeforeEach(func() {
			fs = afero.NewMemMapFs()
			resetFS = data.OverloadFS(fs)
			mock = dbconn.Mock()
			opened = nil
			resetDB = data.OverloadOpenDBConnection(func(path string) (dbconn.GormWrapper, error) {
				opened = append(opened, path)
				return mock, nil
			})
		})

		AfterEach(func() {
			resetDB()
			resetFS()
		})

		It("Should create full file path for DB", func() {
			resetUC := data.OverloadUC(func() (string, error) { return "/testroot/cache", nil })
			defer resetUC()

			Expect(data.Setup("")).To(Succeed())

			exists, err := afero.Exists(fs, "/testroot/cache/tacusci/dragoneye/dragoneye.db")
			Expect(err).ToNot(HaveOccurred())
			Expect(exists).To(BeTrue())
			Expect(opened).To(Equal([]string{"/testroot/cache/tacusci/dragoneye/dragoneye.db"}))
		})

		It("Should prefer explicit path", func() {
			Expect(data.Setup("/data/catalog.db")).To(Succeed())
			Expect(opened).To(Equal([]string{"/data/catalog.db"}))
		})

		It("Should refuse to create an existing database", func() {
			Expect(data.Setup("/data/catalog.db")).To(Succeed())

			err := data.Setup("/data/catalog.db")
			Expect(errors.Is(err, data.ErrDBAlreadyExists)).To(BeTrue())
			Expect(err.Error()).To(Equal("database file already exists: /data/catalog.db"))
		})

		It("Should return migration errors from connect", func() {
			mock.SetError(errors.New("no such table"))
			_, err := data.Connect("/data/catalog.db")
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(Equal("unable to run automigrations: no such table"))
		})

		It("Should remove the database on destroy", func() {
			Expect(data.Setup("/data/catalog.db")).To(Succeed())
			Expect(data.Destroy("/data/catalog.db")).To(Succeed())

			exists, err := afero.Exists(fs, "/data/catalog.db")
			Expect(err).ToNot(HaveOccurred())
			Expect(exists).To(BeFalse())
		})
	})

	It("Should return error from setup due to path resolution failure", func() {
		reset := data.OverloadUC(func() (string, error) {
			return "", errors.New("test cache dir error")
		})
		defer reset()

		existing, set := os.LookupEnv("DRAGON_EYE_DB")
		os.Unsetenv("DRAGON_EYE_DB")
		if set {
			defer os.Setenv("DRAGON_EYE_DB", existing)
		}

		err := data.Setup("")

		Expect(err).ToNot(BeNil())
		Expect(err.Error()).To(Equal("unable to resolve dragoneye.db database file location: test cache dir error"))
	})

	Context("Recordings catalog against sqlite", func() {
		var (
			dir string
			db  dbconn.GormWrapper
		)

		BeforeEach(func() {
			var err error
			dir, err = os.MkdirTemp("", "dragoneye-data")
			Expect(err).ToNot(HaveOccurred())

			db, err = data.Connect(filepath.Join(dir, "catalog.db"))
			Expect(err).ToNot(HaveOccurred())
		})

		AfterEach(func() {
			Expect(db.Close()).To(Succeed())
			Expect(os.RemoveAll(dir)).To(Succeed())
		})

		It("Should store, query and remove recordings", func() {
			repo := repos.RecordingRepository{DB: db}
			start := time.Date(2021, 3, 17, 10, 0, 0, 0, time.UTC)

			old := models.Recording{CameraTitle: "Front", Path: "/r/old.mp4", StartedAt: start, EndedAt: start.Add(time.Minute)}
			recent := models.Recording{CameraTitle: "Front", Path: "/r/recent.mp4", StartedAt: start.Add(48 * time.Hour), EndedAt: start.Add(49 * time.Hour)}
			other := models.Recording{CameraTitle: "Back", Path: "/r/back.mp4", StartedAt: start, EndedAt: start.Add(time.Minute)}
			Expect(repo.Create(&old)).To(Succeed())
			Expect(repo.Create(&recent)).To(Succeed())
			Expect(repo.Create(&other)).To(Succeed())
			Expect(old.UUID).ToNot(BeEmpty())

			found, err := repo.FindByUUID(old.UUID)
			Expect(err).ToNot(HaveOccurred())
			Expect(found.Path).To(Equal("/r/old.mp4"))

			front, err := repo.ForCamera("Front")
			Expect(err).ToNot(HaveOccurred())
			Expect(front).To(HaveLen(2))
			Expect(front[0].Path).To(Equal("/r/recent.mp4"))

			expired, err := repo.EndedBefore(start.Add(24 * time.Hour))
			Expect(err).ToNot(HaveOccurred())
			Expect(expired).To(HaveLen(2))

			Expect(repo.MarkArchived(&old, "front/old.mp4")).To(Succeed())
			unarchived, err := repo.Unarchived()
			Expect(err).ToNot(HaveOccurred())
			Expect(unarchived).To(HaveLen(2))

			Expect(repo.Delete(&old)).To(Succeed())
			_, err = repo.FindByUUID(old.UUID)
			Expect(err).To(MatchError("recording of uuid " + old.UUID + " not found"))
		})
	})
})
