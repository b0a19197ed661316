// Package scraping turns fetched TeamForge ticket pages into Ticket
// records. Each tracker deployment serves slightly different HTML, so the
// field selectors live in small per-dialect types selected by server id;
// the title/id/kpm extraction is shared.
package scraping

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"teamforge-downloader/internal/common"
	"teamforge-downloader/internal/models"
)

// These patterns are common to all dialects: every deployment renders the
// page title as "TeamForge : artfNNN: <title> [<kpm>]".
var (
	artfIdPattern = regexp.MustCompile(`^TeamForge : (artf\d+):`)
	titlePattern  = regexp.MustCompile(`artf\d+:(.+)`)
	kpmPattern    = regexp.MustCompile(`\[(\d+?)\]$`)
)

// attachmentSelector matches the download links of a ticket page. Anchors
// wrapping an image are icon duplicates of the text link and are skipped.
const attachmentSelector = `a[href*='/downloadAttachment/']`

// dialect supplies the per-deployment field selectors. Optional fields
// degrade to the empty string when the page lacks them.
type dialect interface {
	tracker(doc *goquery.Document) string
	description(doc *goquery.Document) string
	analysis(doc *goquery.Document) string
}

var dialects = map[string]dialect{
	"EB":  ebDialect{},
	"ESO": esoDialect{},
}

// Parser extracts a Ticket from a fetched page of one server.
type Parser struct {
	server  *models.ServerInfo
	dialect dialect
}

// ForServer selects the parser variant for the server's dialect. An
// unknown id is a configuration error, not a per-page parse error: it
// means the server list names a dialect this build does not know.
func ForServer(server *models.ServerInfo) (*Parser, error) {
	d, ok := dialects[server.Id]
	if !ok {
		return nil, common.NewConfigurationError("unknown_dialect",
			fmt.Sprintf("no page parser for server id %q", server.Id))
	}
	return &Parser{server: server, dialect: d}, nil
}

// Supported reports whether a parser variant exists for the server id.
func Supported(id string) bool {
	_, ok := dialects[id]
	return ok
}

// ValidateServers fails fast when any configured server names an unknown
// dialect, so the problem surfaces at startup instead of per ticket.
func ValidateServers(list *models.ServerList) error {
	for _, server := range list.Servers {
		if !Supported(server.Id) {
			return common.NewConfigurationError("unknown_dialect",
				fmt.Sprintf("no page parser for server id %q", server.Id))
		}
	}
	return nil
}

// Parse extracts the ticket fields and attachment references from the
// document. The title is required; tracker, description and analysis
// degrade to empty strings when their elements are missing.
func (p *Parser) Parse(doc *goquery.Document) (*models.Ticket, error) {
	log := common.GetLogger()

	titleSel := doc.Find("head > title")
	if titleSel.Length() == 0 {
		return nil, common.NewParseError("missing_title", "ticket page has no title element")
	}
	title := common.OwnText(titleSel.Get(0))
	log.Debug().Str("title", title).Msg("parsing ticket page")

	ticket := &models.Ticket{
		Source:  p.server,
		Id:      ExtractArtifactId(title),
		Title:   ExtractTitle(title),
		Kpm:     ExtractKpm(title),
		Tracker: p.dialect.tracker(doc),
	}

	ticket.Description = p.dialect.description(doc)
	ticket.Analysis = p.dialect.analysis(doc)

	p.addAttachments(ticket, doc)

	log.Info().
		Str("id", ticket.Id).
		Str("tracker", ticket.Tracker).
		Int("attachments", ticket.AttachmentCount()).
		Msg("ticket page parsed")

	return ticket, nil
}

// ExtractArtifactId returns the artfNNN group of the page title, empty
// when absent.
func ExtractArtifactId(title string) string {
	if m := artfIdPattern.FindStringSubmatch(title); m != nil {
		return m[1]
	}
	return ""
}

// ExtractKpm returns the trailing [<digits>] reference code of the page
// title as an integer, 0 when absent.
func ExtractKpm(title string) int64 {
	if m := kpmPattern.FindStringSubmatch(title); m != nil {
		kpm, err := strconv.ParseInt(m[1], 10, 64)
		if err == nil {
			return kpm
		}
	}
	return 0
}

// ExtractTitle returns the text between the artifact-id prefix and the
// trailing reference code, trimmed.
func ExtractTitle(title string) string {
	st := title
	if loc := kpmPattern.FindStringIndex(title); loc != nil {
		st = title[:loc[0]]
	}
	if m := titlePattern.FindStringSubmatch(st); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// addAttachments appends one AttachmentLink per download anchor, in
// document order. Anchors wrapping an image are skipped.
func (p *Parser) addAttachments(ticket *models.Ticket, doc *goquery.Document) {
	doc.Find(attachmentSelector).Each(func(_ int, sel *goquery.Selection) {
		node := sel.Get(0)
		if common.HasDescendant(node, "img") {
			return
		}
		href := common.GetAttribute(node, "href")
		if href == "" {
			return
		}
		ticket.Attachments = append(ticket.Attachments, &models.AttachmentLink{
			Ticket: ticket,
			URL:    p.server.URL + href,
			Name:   common.OwnText(node),
		})
	})
}

// firstText returns the trimmed text of the first node matching the
// selector, empty when nothing matches.
func firstText(doc *goquery.Document, selector string) string {
	sel := doc.Find(selector)
	if sel.Length() == 0 {
		return ""
	}
	return strings.TrimSpace(sel.First().Text())
}
