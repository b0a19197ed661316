package services

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"github.com/ternarybob/arbor"

	"teamforge-downloader/internal/common"
	"teamforge-downloader/internal/interfaces"
	"teamforge-downloader/internal/models"
	"teamforge-downloader/internal/scraping"
)

type ticketFetcher struct {
	servers *models.ServerList
	auth    interfaces.Authenticator
	client  *resty.Client
	maxBody int64
	logger  arbor.ILogger
}

// NewTicketFetcher creates the fetcher that turns a ticket URL into a
// parsed Ticket. Responses are read raw so the body size cap can be
// enforced before parsing.
func NewTicketFetcher(cfg *common.Config, servers *models.ServerList, auth interfaces.Authenticator, logger arbor.ILogger) interfaces.TicketFetcher {
	client := resty.New().
		SetTimeout(time.Duration(cfg.Downloader.TimeoutSeconds) * time.Second).
		SetHeader("User-Agent", cfg.Downloader.UserAgent).
		SetDoNotParseResponse(true)

	return &ticketFetcher{
		servers: servers,
		auth:    auth,
		client:  client,
		maxBody: cfg.Downloader.MaxBodyBytes,
		logger:  logger,
	}
}

func (f *ticketFetcher) Fetch(ticketURL string) (*models.Ticket, error) {
	f.logger.Info().Str("url", ticketURL).Msg("fetching ticket")

	server := f.servers.Find(ticketURL)
	if server == nil {
		return nil, common.NewUnknownServerError("no_server",
			fmt.Sprintf("no configured server matches %s", ticketURL))
	}

	// Resolve the parser before touching the network so a misconfigured
	// server fails fast.
	parser, err := scraping.ForServer(server)
	if err != nil {
		return nil, err
	}

	if !server.IsAuthenticated() {
		if err := f.auth.Login(server); err != nil {
			return nil, err
		}
	}

	resp, err := f.client.R().
		SetHeader("Cookie", server.CookieHeader()).
		Get(ticketURL)
	if err != nil {
		return nil, common.NewNetworkError("fetch", fmt.Sprintf("request for %s failed", ticketURL)).WithCause(err)
	}
	raw := resp.RawBody()
	defer raw.Close()

	if resp.StatusCode() != http.StatusOK {
		return nil, common.NewNetworkError("fetch_status",
			fmt.Sprintf("server returned status %d for %s", resp.StatusCode(), ticketURL))
	}

	body, err := io.ReadAll(io.LimitReader(raw, f.maxBody+1))
	if err != nil {
		return nil, common.NewNetworkError("fetch_body", fmt.Sprintf("reading body of %s failed", ticketURL)).WithCause(err)
	}
	if int64(len(body)) > f.maxBody {
		return nil, common.NewNetworkError("fetch_body",
			fmt.Sprintf("page at %s exceeds the %d byte limit", ticketURL, f.maxBody))
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, common.NewParseError("html", fmt.Sprintf("page at %s is not parseable html", ticketURL)).WithCause(err)
	}

	ticket, err := parser.Parse(doc)
	if err != nil {
		return nil, err
	}
	ticket.URL = ticketURL

	f.logger.Debug().Str("id", ticket.Id).Str("title", ticket.Title).Int("attachments", ticket.AttachmentCount()).Msg("ticket parsed")
	return ticket, nil
}
