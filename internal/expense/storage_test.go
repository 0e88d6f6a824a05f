package expense

import (
	"context"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("LocalStorage", func() {
	var (
		ctx     context.Context
		tmpDir  string
		storage Storage
	)

	BeforeEach(func() {
		ctx = context.Background()
		tmpDir = GinkgoT().TempDir()
		var err error
		storage, err = NewLocalStorage(tmpDir)
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("Save", func() {
		var (
			name      string
			savedPath string
			err       error
		)

		BeforeEach(func() {
			name = "user-1/e1_receipt.jpg"
		})

		JustBeforeEach(func() {
			savedPath, err = storage.Save(ctx, name, []byte("test file content"))
		})

		When("saving succeeds", func() {
			It("should return the path", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(savedPath).To(Equal(name))
			})

			It("should save the file under the user directory", func() {
				Expect(filepath.Join(tmpDir, "user-1", "e1_receipt.jpg")).To(BeAnExistingFile())
			})
		})

		When("the name escapes the storage directory", func() {
			BeforeEach(func() {
				name = "../../outside.jpg"
			})

			It("should keep the file inside", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(filepath.Join(tmpDir, "outside.jpg")).To(BeAnExistingFile())
			})
		})
	})

	Describe("Get", func() {
		It("should read a saved file", func() {
			_, err := storage.Save(ctx, "a.png", []byte("png"))
			Expect(err).NotTo(HaveOccurred())

			data, err := storage.Get(ctx, "a.png")
			Expect(err).NotTo(HaveOccurred())
			Expect(data).To(Equal([]byte("png")))
		})

		It("should report a missing file", func() {
			_, err := storage.Get(ctx, "missing.png")
			Expect(err).To(MatchError(ErrNotFound))
		})
	})

	Describe("Delete", func() {
		It("should remove the file", func() {
			_, err := storage.Save(ctx, "a.png", []byte("png"))
			Expect(err).NotTo(HaveOccurred())

			Expect(storage.Delete(ctx, "a.png")).To(Succeed())
			Expect(filepath.Join(tmpDir, "a.png")).NotTo(BeAnExistingFile())
		})

		It("should fail for a missing file", func() {
			Expect(storage.Delete(ctx, "missing.png")).NotTo(Succeed())
		})
	})
})

var _ = Describe("sanitizeFilename", func() {
	DescribeTable("cleaning names",
		func(input, expected string) {
			Expect(sanitizeFilename(input)).To(Equal(expected))
		},
		Entry("keeps simple names", "receipt.jpg", "receipt.jpg"),
		Entry("strips special characters", "IMG_2024@#$.HEIC", "IMG_2024.heic"),
		Entry("collapses spaces", "my   receipt.png", "my receipt.png"),
		Entry("drops directories", "../../etc/passwd", "passwd"),
		Entry("defaults empty names", "@@@.pdf", "receipt.pdf"),
		Entry("truncates long names", "abcdefghijklmnopqrstuvwxyzabcdefghijklmnopqrstuvwxyz.png", "abcdefghijklmnopqrstuvwxyzabcdefghijklmnopqrstuvwx.png"),
	)
})
