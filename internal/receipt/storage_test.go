package receipt

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
		storage *LocalStorage
	)

	BeforeEach(func() {
		ctx = context.Background()
		tmpDir = GinkgoT().TempDir()
		var err error
		storage, err = NewLocalStorage(filepath.Join(tmpDir, "receipts"), "https://fleet.example.com/files/")
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("Save", func() {
		var (
			filename string
			key      string
			err      error
		)

		BeforeEach(func() {
			filename = "test.jpg"
		})

		JustBeforeEach(func() {
			key, err = storage.Save(ctx, filename, []byte("test file content"))
		})

		When("saving succeeds", func() {
			It("should return the filename as key", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(key).To(Equal(filename))
			})

			It("should save the file to disk", func() {
				Expect(filepath.Join(tmpDir, "receipts", filename)).To(BeAnExistingFile())
			})
		})

		When("the filename contains a directory", func() {
			BeforeEach(func() {
				filename = "../escape.jpg"
			})

			It("returns an error", func() {
				Expect(err).To(MatchError(ContainSubstring("invalid storage key")))
				Expect(filepath.Join(tmpDir, "escape.jpg")).NotTo(BeAnExistingFile())
			})
		})
	})

	Describe("Get", func() {
		When("the file exists", func() {
			BeforeEach(func() {
				_, err := storage.Save(ctx, "test.jpg", []byte("test file content"))
				Expect(err).NotTo(HaveOccurred())
			})

			It("should return the file data", func() {
				data, err := storage.Get(ctx, "test.jpg")
				Expect(err).NotTo(HaveOccurred())
				Expect(string(data)).To(Equal("test file content"))
			})
		})

		When("the file does not exist", func() {
			It("returns an error", func() {
				_, err := storage.Get(ctx, "nonexistent.jpg")
				Expect(err).To(HaveOccurred())
			})
		})
	})

	Describe("Delete", func() {
		BeforeEach(func() {
			_, err := storage.Save(ctx, "test.jpg", []byte("test file content"))
			Expect(err).NotTo(HaveOccurred())
		})

		It("should remove the file from disk", func() {
			Expect(storage.Delete(ctx, "test.jpg")).To(Succeed())
			Expect(filepath.Join(tmpDir, "receipts", "test.jpg")).NotTo(BeAnExistingFile())
		})

		When("the file does not exist", func() {
			It("returns an error", func() {
				Expect(storage.Delete(ctx, "nonexistent.jpg")).To(HaveOccurred())
			})
		})
	})

	Describe("URL", func() {
		It("should join the public base URL and the escaped key", func() {
			Expect(storage.URL("abc_my receipt.jpg")).To(Equal("https://fleet.example.com/files/abc_my%20receipt.jpg"))
		})
	})
})

var _ = Describe("GCSStorage", func() {
	It("requires a bucket", func() {
		_, err := NewGCSStorage(context.Background(), "", "receipts")
		Expect(err).To(MatchError(ContainSubstring("bucket is required")))
	})

	Describe("URL", func() {
		It("should prefix object keys", func() {
			g := &GCSStorage{bucket: "fleet-receipts", prefix: "fuel"}
			Expect(g.URL("abc_receipt.jpg")).To(Equal("https://storage.googleapis.com/fleet-receipts/fuel/abc_receipt.jpg"))
		})

		It("should use the bare key without a prefix", func() {
			g := &GCSStorage{bucket: "fleet-receipts"}
			Expect(g.URL("abc_receipt.jpg")).To(Equal("https://storage.googleapis.com/fleet-receipts/abc_receipt.jpg"))
		})
	})
})
