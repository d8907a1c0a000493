package scanning

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// pngBytes returns a small valid PNG image
func pngBytes() []byte {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.Black)
	var buf bytes.Buffer
	Expect(png.Encode(&buf, img)).To(Succeed())
	return buf.Bytes()
}

// failingReader fails every read
type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("disk read error")
}

var _ = Describe("EncodeImage", func() {
	var (
		encoded string
		err     error
	)

	When("the image is a PNG", func() {
		var data []byte

		BeforeEach(func() {
			data = pngBytes()
			encoded, err = EncodeImage(bytes.NewReader(data), "image/png")
		})

		It("should not return an error", func() {
			Expect(err).NotTo(HaveOccurred())
		})

		It("should return the base64 of the unchanged bytes", func() {
			Expect(encoded).To(Equal(base64.StdEncoding.EncodeToString(data)))
		})
	})

	When("the image is a data URI", func() {
		BeforeEach(func() {
			encoded, err = EncodeImage(bytes.NewBufferString("data:image/jpeg;base64,/9j/4AAQSkZJRg=="), "image/jpeg")
		})

		It("should strip the prefix", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(encoded).To(Equal("/9j/4AAQSkZJRg=="))
		})
	})

	When("the image cannot be read", func() {
		BeforeEach(func() {
			encoded, err = EncodeImage(failingReader{}, "image/png")
		})

		It("should return an encode error", func() {
			Expect(err).To(MatchError(ErrEncodeImage))
			Expect(err.Error()).To(ContainSubstring("disk read error"))
		})

		It("should not return content", func() {
			Expect(encoded).To(BeEmpty())
		})
	})

	When("the image is corrupt", func() {
		BeforeEach(func() {
			encoded, err = EncodeImage(bytes.NewBufferString("definitely not a jpeg"), "image/jpeg")
		})

		It("should return an encode error", func() {
			Expect(err).To(MatchError(ErrEncodeImage))
		})
	})

	When("the format has no standard library decoder", func() {
		var data []byte

		It("should pass a WebP image through unchanged", func() {
			data = append([]byte("RIFF\x24\x00\x00\x00WEBPVP8 "), make([]byte, 16)...)
			encoded, err = EncodeImage(bytes.NewReader(data), "image/webp")
			Expect(err).NotTo(HaveOccurred())
			Expect(encoded).To(Equal(base64.StdEncoding.EncodeToString(data)))
		})

		It("should pass a BMP image through unchanged", func() {
			data = append([]byte("BM\x46\x00\x00\x00\x00\x00\x00\x00\x36\x00\x00\x00"), make([]byte, 16)...)
			encoded, err = EncodeImage(bytes.NewReader(data), "image/bmp")
			Expect(err).NotTo(HaveOccurred())
			Expect(encoded).To(Equal(base64.StdEncoding.EncodeToString(data)))
		})
	})

	When("a PNG is declared with another type", func() {
		BeforeEach(func() {
			data := append([]byte("\x89PNG\r\n\x1a\n"), []byte("truncated")...)
			encoded, err = EncodeImage(bytes.NewReader(data), "image/webp")
		})

		It("should still check it can be decoded", func() {
			Expect(err).To(MatchError(ErrEncodeImage))
		})
	})

	When("the image is empty", func() {
		BeforeEach(func() {
			encoded, err = EncodeImage(bytes.NewReader(nil), "image/png")
		})

		It("should return an encode error", func() {
			Expect(err).To(MatchError(ErrEncodeImage))
		})
	})
})

var _ = Describe("isHEICFormat", func() {
	It("should detect the heic brand", func() {
		data := append([]byte{0, 0, 0, 24}, []byte("ftypheic0000")...)
		Expect(isHEICFormat(data)).To(BeTrue())
	})

	It("should detect the mif1 brand", func() {
		data := append([]byte{0, 0, 0, 24}, []byte("ftypmif10000")...)
		Expect(isHEICFormat(data)).To(BeTrue())
	})

	It("should reject PNG data", func() {
		Expect(isHEICFormat(pngBytes())).To(BeFalse())
	})

	It("should reject short data", func() {
		Expect(isHEICFormat([]byte("ftyp"))).To(BeFalse())
	})
})
