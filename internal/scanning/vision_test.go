package scanning

import (
	"context"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
	"google.golang.org/api/option"
)

const annotateRequestJSON = `{
	"requests": [{
		"image": {"content": "aW1hZ2U="},
		"features": [{"type": "TEXT_DETECTION"}, {"type": "DOCUMENT_TEXT_DETECTION"}]
	}]
}`

const annotateResponseJSON = `{
	"responses": [{
		"fullTextAnnotation": {
			"text": "SHELL\nTOTAL KES 500.00\n",
			"pages": [{
				"blocks": [{
					"paragraphs": [{
						"words": [{"confidence": 0.9}, {"confidence": 0.7}, {"confidence": 0.8}]
					}]
				}]
			}]
		}
	}]
}`

var _ = Describe("Vision", func() {
	var (
		server     *ghttp.Server
		recognizer *Vision
		annotation *TextAnnotation
		err        error
	)

	BeforeEach(func() {
		server = ghttp.NewServer()
		recognizer, err = NewVision("test-key", option.WithEndpoint(server.URL()+"/"))
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		server.Close()
	})

	JustBeforeEach(func() {
		annotation, err = recognizer.Recognize(context.Background(), "aW1hZ2U=")
	})

	When("the service recognizes text", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest(http.MethodPost, "/v1/images:annotate"),
				func(w http.ResponseWriter, r *http.Request) {
					Expect(r.URL.Query().Get("key")).To(Equal("test-key"))
				},
				ghttp.VerifyJSON(annotateRequestJSON),
				ghttp.RespondWith(http.StatusOK, annotateResponseJSON, http.Header{"Content-Type": []string{"application/json"}}),
			))
		})

		It("should not return an error", func() {
			Expect(err).NotTo(HaveOccurred())
		})

		It("should send a single request", func() {
			Expect(server.ReceivedRequests()).To(HaveLen(1))
		})

		It("should return the full text", func() {
			Expect(annotation.Text).To(Equal("SHELL\nTOTAL KES 500.00\n"))
		})

		It("should keep the word confidences", func() {
			Expect(Confidence(annotation)).To(Equal(80))
		})
	})

	When("the service returns a non-success status", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWith(http.StatusForbidden,
				`{"error": {"code": 403, "message": "API key not valid", "status": "PERMISSION_DENIED"}}`,
				http.Header{"Content-Type": []string{"application/json"}},
			))
		})

		It("should return a service error with the status", func() {
			var serviceErr *ServiceError
			Expect(err).To(BeAssignableToTypeOf(serviceErr))
			Expect(err.(*ServiceError).StatusCode).To(Equal(http.StatusForbidden))
			Expect(err.Error()).To(Equal("Vision API error: 403"))
		})
	})

	When("the response body reports an error", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWith(http.StatusOK,
				`{"responses": [{"error": {"code": 3, "message": "Bad image data."}}]}`,
				http.Header{"Content-Type": []string{"application/json"}},
			))
		})

		It("should return the reported message", func() {
			Expect(err).To(MatchError("Bad image data."))
		})
	})

	When("the response has no text", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWith(http.StatusOK,
				`{"responses": [{}]}`,
				http.Header{"Content-Type": []string{"application/json"}},
			))
		})

		It("should return the no-text error", func() {
			Expect(err).To(MatchError(ErrNoTextDetected))
		})
	})

	When("no API key is configured", func() {
		BeforeEach(func() {
			recognizer, err = NewVision("")
			Expect(err).NotTo(HaveOccurred())
		})

		It("should fail the configuration check", func() {
			Expect(recognizer.CheckConfig()).To(MatchError(ErrMissingAPIKey))
		})

		It("should fail without calling the service", func() {
			Expect(err).To(MatchError(ErrMissingAPIKey))
			Expect(server.ReceivedRequests()).To(BeEmpty())
		})
	})
})
