package scanning

import "math"

// Confidence returns the unweighted mean of every word confidence as a percentage.
// Missing levels of the page structure contribute nothing.
func Confidence(annotation *TextAnnotation) int {
	if annotation == nil {
		return 0
	}

	var sum float64
	var count int
	for _, page := range annotation.Pages {
		if page == nil {
			continue
		}
		for _, block := range page.Blocks {
			if block == nil {
				continue
			}
			for _, paragraph := range block.Paragraphs {
				if paragraph == nil {
					continue
				}
				for _, word := range paragraph.Words {
					if word == nil || word.Confidence == nil {
						continue
					}
					sum += *word.Confidence
					count++
				}
			}
		}
	}

	if count == 0 {
		return 0
	}
	return int(math.Round(sum / float64(count) * 100))
}
