package scraping

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"teamforge-downloader/internal/common"
)

// ebDialect matches deployments that render artifact rows with CSS
// classes and keep the analysis in a labeled field table.
type ebDialect struct{}

func (ebDialect) tracker(doc *goquery.Document) string {
	return firstText(doc, "div#main tr.artifactTrackerRow > td.ItemDetailValue")
}

func (ebDialect) description(doc *goquery.Document) string {
	return firstText(doc, "div#main tr.artifactDescriptionRow > td.ItemDetailValue")
}

// The analysis field has no stable id on this dialect; it is found by
// scanning the field table for the row whose label mentions "analysis".
func (ebDialect) analysis(doc *goquery.Document) string {
	result := ""
	doc.Find("table#fieldsColumn1 tr").EachWithBreak(func(_ int, row *goquery.Selection) bool {
		columns := row.Find("td")
		if columns.Length() < 3 {
			return true
		}
		label := common.OwnText(columns.Get(0))
		if !strings.Contains(strings.ToLower(label), "analysis") {
			return true
		}
		result = strings.TrimSpace(columns.Eq(2).Text())
		return false
	})
	return result
}

// esoDialect matches deployments that render artifact rows with element
// ids and keep the analysis in a textarea.
type esoDialect struct{}

func (esoDialect) tracker(doc *goquery.Document) string {
	return firstText(doc, "div#main tr#artifactTrackerRow > td.ItemDetailValue")
}

func (esoDialect) description(doc *goquery.Document) string {
	return firstText(doc, "div#main tr#artifactDescriptionRow > td.ItemDetailValue")
}

func (esoDialect) analysis(doc *goquery.Document) string {
	return firstText(doc, "div#main td.ItemDetailValue > textarea.inputfield")
}
