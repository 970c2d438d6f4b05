package extraction

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/kirillkom/legal-intake/internal/core/domain"
)

var (
	horizontalSpace = regexp.MustCompile(`[ \t\r\v]+`)
	blankLines      = regexp.MustCompile(`\n{3,}`)
)

// Normalize collapses runs of horizontal whitespace and excess blank lines.
func Normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(horizontalSpace.ReplaceAllString(line, " "))
	}
	text = strings.Join(lines, "\n")
	text = blankLines.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// Assemble drops words under minConfidence, groups the rest into one block
// per OCR line and sets the aggregate confidence to the mean over every
// surviving word.
func Assemble(pages []domain.PageRecognition, minConfidence float64, result *domain.ExtractionResult) {
	var (
		total   float64
		kept    int
		dropped int
		texts   = make([]string, 0, len(pages))
	)

	for _, page := range pages {
		result.Pages = append(result.Pages, domain.PageDimension{Page: page.Page, Width: page.Width, Height: page.Height})

		var (
			lines   []string
			current *lineAcc
		)
		flush := func() {
			if current == nil || len(current.words) == 0 {
				return
			}
			text := strings.Join(current.words, " ")
			lines = append(lines, text)
			result.Blocks = append(result.Blocks, domain.TextBlock{
				Text:       text,
				Box:        current.box,
				Page:       page.Page,
				Confidence: current.sum / float64(len(current.words)),
			})
			current = nil
		}

		for _, w := range page.Words {
			text := strings.TrimSpace(w.Text)
			if text == "" {
				continue
			}
			if w.Confidence < minConfidence {
				dropped++
				continue
			}
			if current != nil && current.line != w.Line {
				flush()
			}
			if current == nil {
				current = &lineAcc{line: w.Line, box: w.Box}
			} else {
				current.box = union(current.box, w.Box)
			}
			current.words = append(current.words, text)
			current.sum += w.Confidence
			total += w.Confidence
			kept++
		}
		flush()
		texts = append(texts, strings.Join(lines, "\n"))
	}

	result.ExtractedText = Normalize(strings.Join(texts, "\n\n"))
	if kept == 0 {
		result.SetConfidence(0)
		result.Warnings = append(result.Warnings, "no words met the minimum recognition confidence")
		return
	}
	if dropped > 0 {
		result.Warnings = append(result.Warnings, pluralWords(dropped)+" discarded below the recognition confidence floor")
	}
	result.SetConfidence(total / float64(kept))
}

type lineAcc struct {
	line  int
	box   domain.BoundingBox
	words []string
	sum   float64
}

func union(a, b domain.BoundingBox) domain.BoundingBox {
	left := min(a.Left, b.Left)
	top := min(a.Top, b.Top)
	right := max(a.Left+a.Width, b.Left+b.Width)
	bottom := max(a.Top+a.Height, b.Top+b.Height)
	return domain.BoundingBox{Left: left, Top: top, Width: right - left, Height: bottom - top}
}

func pluralWords(n int) string {
	if n == 1 {
		return "1 word"
	}
	return strconv.Itoa(n) + " words"
}
