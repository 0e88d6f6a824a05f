package scanning

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/jpeg"
	"image/png"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("PrepareImage", func() {
	var (
		data        []byte
		contentType string
		encoded     string
		err         error
	)

	JustBeforeEach(func() {
		encoded, err = PrepareImage(data, contentType)
	})

	When("the upload is a PNG", func() {
		BeforeEach(func() {
			data = testPNG()
			contentType = "image/png"
		})

		It("passes it through", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(encoded).To(Equal(base64.StdEncoding.EncodeToString(data)))
		})
	})

	When("the upload is a JPEG", func() {
		BeforeEach(func() {
			var buf bytes.Buffer
			Expect(jpeg.Encode(&buf, image.NewGray(image.Rect(0, 0, 8, 8)), nil)).To(Succeed())
			data = buf.Bytes()
			contentType = "image/jpeg; charset=binary"
		})

		It("converts it to PNG", func() {
			Expect(err).NotTo(HaveOccurred())
			decoded, decodeErr := base64.StdEncoding.DecodeString(encoded)
			Expect(decodeErr).NotTo(HaveOccurred())
			_, decodeErr = png.Decode(bytes.NewReader(decoded))
			Expect(decodeErr).NotTo(HaveOccurred())
		})
	})

	When("the upload is empty", func() {
		BeforeEach(func() {
			data = nil
			contentType = "image/png"
		})

		It("returns an unsupported image error", func() {
			Expect(err).To(MatchError(ErrUnsupportedImage))
		})
	})

	When("the upload is too large", func() {
		BeforeEach(func() {
			data = make([]byte, MaxImageBytes+1)
			contentType = "image/png"
		})

		It("returns an image too large error", func() {
			Expect(err).To(MatchError(ErrImageTooLarge))
		})
	})

	When("the upload is not an image", func() {
		BeforeEach(func() {
			data = []byte("hello")
			contentType = "text/plain"
		})

		It("returns an unsupported image error", func() {
			Expect(err).To(MatchError(ErrUnsupportedImage))
		})
	})

	When("the upload claims to be an image but is not", func() {
		BeforeEach(func() {
			data = []byte("definitely not pixels")
			contentType = "image/jpeg"
		})

		It("returns an unsupported image error", func() {
			Expect(err).To(MatchError(ErrUnsupportedImage))
		})
	})
})

var _ = Describe("PrepareBase64Image", func() {
	It("converts a JPEG data URL to PNG", func() {
		var buf bytes.Buffer
		Expect(jpeg.Encode(&buf, image.NewGray(image.Rect(0, 0, 8, 8)), nil)).To(Succeed())

		encoded, err := PrepareBase64Image("data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()))
		Expect(err).NotTo(HaveOccurred())
		decoded, err := base64.StdEncoding.DecodeString(encoded)
		Expect(err).NotTo(HaveOccurred())
		_, err = png.Decode(bytes.NewReader(decoded))
		Expect(err).NotTo(HaveOccurred())
	})

	It("routes HEIC payloads to the HEIC decoder", func() {
		heicData := []byte("\x00\x00\x00\x18ftypheic\x00\x00\x00\x00 not really an image")

		_, err := PrepareBase64Image(base64.StdEncoding.EncodeToString(heicData))
		Expect(err).To(MatchError(ContainSubstring("decoding HEIC/HEIF image")))
		Expect(err).NotTo(MatchError(ErrUnsupportedImage))
	})

	It("rejects a payload that is not an image", func() {
		_, err := PrepareBase64Image(base64.StdEncoding.EncodeToString([]byte("hello")))
		Expect(err).To(MatchError(ErrUnsupportedImage))
	})

	It("rejects a missing payload", func() {
		_, err := PrepareBase64Image("  ")
		Expect(err).To(MatchError(ErrInvalidInput))
	})

	It("rejects invalid base64", func() {
		_, err := PrepareBase64Image("not base64!")
		Expect(err).To(MatchError(ErrInvalidInput))
	})

	It("rejects an oversize payload before decoding it", func() {
		_, err := PrepareBase64Image(strings.Repeat("A", base64.StdEncoding.EncodedLen(MaxImageBytes+3)))
		Expect(err).To(MatchError(ErrImageTooLarge))
	})
})

var _ = Describe("isHEICFormat", func() {
	It("detects the HEIC brand", func() {
		Expect(isHEICFormat([]byte("\x00\x00\x00\x18ftypheic\x00\x00\x00\x00"))).To(BeTrue())
	})

	It("ignores other containers", func() {
		Expect(isHEICFormat([]byte("\x00\x00\x00\x18ftypisom\x00\x00\x00\x00"))).To(BeFalse())
		Expect(isHEICFormat([]byte("short"))).To(BeFalse())
	})
})
