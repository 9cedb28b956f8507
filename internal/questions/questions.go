// Package questions extracts per-page question text from a question
// paper and scans it for figure and table mentions. Mentions seed the
// hasDiagram flag and give the matcher a label corpus to work with.
package questions

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/ledongthuc/pdf"
	"github.com/sirupsen/logrus"

	"github.com/namandhakad712/Rankify-sub003/internal/model"
)

var log = logrus.WithField("component", "questions")

// questionStart matches the usual numbering styles: "1.", "12)", "Q3.",
// "Q. 4" at the start of a line.
var questionStart = regexp.MustCompile(`(?m)^\s*(?:Q\.?\s*)?(\d{1,3})\s*[.)]\s+`)

// figureMention matches textual references like "Figure 5.1", "Fig. 3",
// "Table 2" or "Diagram 7".
var figureMention = regexp.MustCompile(`(?i)\b(fig(?:ure)?|table|diagram)\.?\s*(\d+(?:\.\d+)*)`)

// optionMarker spots multiple-choice option rows like "(a)" or "B)".
var optionMarker = regexp.MustCompile(`(?mi)^\s*\(?[a-d]\)\s+`)

// Extractor pulls questions out of PDF bytes
type Extractor struct{}

// NewExtractor creates an extractor
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract parses the document text page by page and splits it into
// questions. Questions whose text mentions a figure, table or diagram
// come back flagged hasDiagram=true.
func (e *Extractor) Extract(documentID string, data []byte) ([]model.Question, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}

	var questions []model.Question
	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			log.WithError(err).WithFields(logrus.Fields{
				"document": documentID,
				"page":     pageNum,
			}).Warn("Page text extraction failed")
			continue
		}
		questions = append(questions, SplitPage(pageNum, text)...)
	}

	log.WithFields(logrus.Fields{
		"document":  documentID,
		"questions": len(questions),
	}).Debug("Question extraction complete")
	return questions, nil
}

// SplitPage splits one page's plain text into questions by numbering
// markers. Text before the first marker (instructions, headers) is
// ignored.
func SplitPage(pageNumber int, text string) []model.Question {
	marks := questionStart.FindAllStringIndex(text, -1)
	if len(marks) == 0 {
		return nil
	}

	out := make([]model.Question, 0, len(marks))
	for i, m := range marks {
		end := len(text)
		if i+1 < len(marks) {
			end = marks[i+1][0]
		}
		body := strings.TrimSpace(text[m[0]:end])
		if body == "" {
			continue
		}
		out = append(out, model.Question{
			ID:         uuid.NewString(),
			Text:       body,
			PageNumber: pageNumber,
			Type:       classify(body),
			HasDiagram: figureMention.MatchString(body),
		})
	}
	return out
}

// Mentions returns the distinct figure/table references in a question's
// text, normalized to single spacing. These feed the matcher's label
// pass.
func Mentions(text string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, m := range figureMention.FindAllStringSubmatch(text, -1) {
		prefix := strings.ToLower(m[1])
		if prefix == "fig" {
			prefix = "figure"
		}
		key := prefix + " " + m[2]
		if !seen[key] {
			seen[key] = true
			out = append(out, strings.Join(strings.Fields(m[0]), " "))
		}
	}
	return out
}

func classify(body string) string {
	if len(optionMarker.FindAllString(body, 2)) >= 2 {
		return "mcq"
	}
	return "descriptive"
}
