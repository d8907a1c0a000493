package scanning

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func conf(v float64) *float64 {
	return &v
}

func annotationWithWords(confidences ...*float64) *TextAnnotation {
	words := make([]*Word, 0, len(confidences))
	for _, c := range confidences {
		words = append(words, &Word{Confidence: c})
	}
	return &TextAnnotation{
		Pages: []*Page{{Blocks: []*Block{{Paragraphs: []*Paragraph{{Words: words}}}}}},
	}
}

var _ = Describe("Confidence", func() {
	It("should return 0 for a nil annotation", func() {
		Expect(Confidence(nil)).To(Equal(0))
	})

	It("should return 0 when there are no words", func() {
		Expect(Confidence(annotationWithWords())).To(Equal(0))
	})

	It("should return the rounded mean as a percentage", func() {
		Expect(Confidence(annotationWithWords(conf(0.9), conf(0.7), conf(0.8)))).To(Equal(80))
	})

	It("should skip words without a confidence", func() {
		Expect(Confidence(annotationWithWords(conf(0.5), nil))).To(Equal(50))
	})

	It("should tolerate missing levels of the page structure", func() {
		annotation := &TextAnnotation{
			Pages: []*Page{
				nil,
				{Blocks: nil},
				{Blocks: []*Block{nil, {Paragraphs: []*Paragraph{nil, {Words: []*Word{nil, {Confidence: conf(0.66)}}}}}}},
			},
		}
		Expect(Confidence(annotation)).To(Equal(66))
	})

	It("should not weight words by page", func() {
		annotation := &TextAnnotation{
			Pages: []*Page{
				annotationWithWords(conf(1.0)).Pages[0],
				annotationWithWords(conf(0.5), conf(0.5), conf(0.5), conf(0.5)).Pages[0],
			},
		}
		Expect(Confidence(annotation)).To(Equal(60))
	})
})
