package services

import (
	"sync"

	"github.com/ternarybob/arbor"

	"teamforge-downloader/internal/common"
	"teamforge-downloader/internal/interfaces"
	"teamforge-downloader/internal/models"
)

type coordinator struct {
	config      *common.Config
	fetcher     interfaces.TicketFetcher
	attachments interfaces.AttachmentFetcher
	persister   interfaces.TicketPersister
	namer       interfaces.DirectoryNamer
	archive     interfaces.Archive
	events      interfaces.Events
	logger      arbor.ILogger

	mu      sync.Mutex
	tickets []*models.Ticket
	busy    bool
}

// NewCoordinator wires the pipeline together. Batches run in the
// background; the events sink receives busy, progress and ticket
// notifications as they happen. A nil archive disables archiving.
func NewCoordinator(config *common.Config, fetcher interfaces.TicketFetcher, attachments interfaces.AttachmentFetcher,
	persister interfaces.TicketPersister, namer interfaces.DirectoryNamer, archive interfaces.Archive,
	events interfaces.Events, logger arbor.ILogger) interfaces.Coordinator {
	if events == nil {
		events = NopEvents()
	}
	return &coordinator{
		config:      config,
		fetcher:     fetcher,
		attachments: attachments,
		persister:   persister,
		namer:       namer,
		archive:     archive,
		events:      events,
		logger:      logger,
	}
}

// FetchTickets starts a background batch fetching every URL. Only one
// batch may run at a time.
func (c *coordinator) FetchTickets(urls []string) error {
	if len(urls) == 0 {
		return common.NewServiceError("no_urls", "no ticket urls given")
	}
	if !c.beginBatch() {
		return common.NewServiceError("busy", "a batch is already running")
	}
	go c.runTicketBatch(urls)
	return nil
}

// DownloadAttachments starts a background batch processing every ticket
// not yet processed. Already processed tickets, successful or not, are
// skipped.
func (c *coordinator) DownloadAttachments() error {
	if !c.beginBatch() {
		return common.NewServiceError("busy", "a batch is already running")
	}
	go c.runAttachmentBatch()
	return nil
}

// SetBaseDir changes the root directory for subsequent downloads.
// Directories already handed out for tickets keep their old location.
func (c *coordinator) SetBaseDir(dir string) {
	c.mu.Lock()
	c.config.Downloader.BaseDir = dir
	c.mu.Unlock()
	c.namer.SetBaseDir(dir)
	c.logger.Info().Str("dir", dir).Msg("base directory changed")
}

// BaseDir returns the current root directory for downloads.
func (c *coordinator) BaseDir() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.config.Downloader.BaseDir
}

// Tickets returns a snapshot of the tickets fetched so far. The entries
// are copies: the worker keeps mutating state on the originals, so
// callers never share mutable fields with a running batch.
func (c *coordinator) Tickets() []*models.Ticket {
	c.mu.Lock()
	defer c.mu.Unlock()
	snapshot := make([]*models.Ticket, 0, len(c.tickets))
	for _, ticket := range c.tickets {
		copied := *ticket
		snapshot = append(snapshot, &copied)
	}
	return snapshot
}

func (c *coordinator) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy
}

func (c *coordinator) beginBatch() bool {
	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		return false
	}
	c.busy = true
	c.mu.Unlock()
	c.events.BusyChanged(true)
	return true
}

func (c *coordinator) endBatch() {
	c.mu.Lock()
	c.busy = false
	c.mu.Unlock()
	c.events.BusyChanged(false)
}

func (c *coordinator) runTicketBatch(urls []string) {
	defer c.endBatch()

	c.logger.Info().Int("count", len(urls)).Msg("fetching tickets")
	c.events.Progress(0, len(urls))

	var added []*models.Ticket
	for i, ticketURL := range urls {
		ticket, err := c.fetcher.Fetch(ticketURL)
		if err != nil {
			// A failed URL never aborts the batch.
			if common.IsAuthError(err) || common.IsUnknownServerError(err) {
				c.logger.Warn().Str("url", ticketURL).Msg(err.Error())
			} else {
				c.logger.Error().Err(err).Str("url", ticketURL).Msg("ticket fetch failed")
			}
			c.events.Progress(i+1, len(urls))
			continue
		}
		added = append(added, ticket)
		c.events.Progress(i+1, len(urls))
	}

	c.mu.Lock()
	c.tickets = append(c.tickets, added...)
	c.mu.Unlock()

	if len(added) > 0 {
		c.events.TicketsAdded(added)
		c.archiveTickets(added)
	}
	c.logger.Info().Int("fetched", len(added)).Int("requested", len(urls)).Msg("ticket batch finished")
}

func (c *coordinator) runAttachmentBatch() {
	defer c.endBatch()

	pending := c.pendingTickets()
	total := 0
	for _, ticket := range pending {
		total += ticket.AttachmentCount()
	}

	// Fresh batch, fresh name collision tracking.
	c.namer.Reset()

	c.logger.Info().Int("tickets", len(pending)).Int("attachments", total).Msg("downloading attachments")
	c.events.Progress(0, total)

	done := 0
	for _, ticket := range pending {
		state := models.ProcessedOK
		for _, link := range ticket.Attachments {
			outcome := c.attachments.Fetch(link)
			if !outcome.OK() {
				state = models.ProcessedNOK
				if outcome.Err != nil {
					c.logger.Error().Err(outcome.Err).Str("url", link.URL).Msg("attachment download failed")
				} else {
					c.logger.Warn().Int("status", outcome.StatusCode).Str("url", link.URL).Msg("attachment download failed")
				}
			}
			done++
			c.events.Progress(done, total)
		}

		c.persister.Persist(ticket)

		// State and Path are read by concurrent Tickets() snapshots.
		path, pathErr := c.namer.TicketPath(ticket)
		c.mu.Lock()
		if pathErr == nil {
			ticket.Path = path
		}
		ticket.State = state
		c.mu.Unlock()
		c.events.TicketUpdated(ticket)
	}

	c.archiveTickets(pending)
	c.logger.Info().Int("tickets", len(pending)).Msg("attachment batch finished")
}

func (c *coordinator) pendingTickets() []*models.Ticket {
	c.mu.Lock()
	defer c.mu.Unlock()
	var pending []*models.Ticket
	for _, ticket := range c.tickets {
		if ticket.State == models.NotProcessed {
			pending = append(pending, ticket)
		}
	}
	return pending
}

// archiveTickets saves records grouped per server, so each server's
// bucket prefix stays consistent.
func (c *coordinator) archiveTickets(tickets []*models.Ticket) {
	if c.archive == nil {
		return
	}
	byServer := make(map[string][]*models.TicketRecord)
	for _, ticket := range tickets {
		byServer[ticket.Source.Id] = append(byServer[ticket.Source.Id], models.RecordOf(ticket))
	}
	for serverId, records := range byServer {
		if err := c.archive.SaveTickets(serverId, records); err != nil {
			c.logger.Error().Err(err).Str("server", serverId).Msg("failed to archive tickets")
		}
	}
}

type nopEvents struct{}

// NopEvents returns an events sink that discards everything.
func NopEvents() interfaces.Events {
	return nopEvents{}
}

func (nopEvents) BusyChanged(bool)              {}
func (nopEvents) Progress(int, int)             {}
func (nopEvents) TicketsAdded([]*models.Ticket) {}
func (nopEvents) TicketUpdated(*models.Ticket)  {}
