package interfaces

import (
	"context"

	"teamforge-downloader/internal/models"
)

// Authenticator logs a server in and caches the resulting session on the
// ServerInfo. Login is attempted lazily by the fetcher, only when the
// server is not yet authenticated.
type Authenticator interface {
	Login(server *models.ServerInfo) error
}

// PasswordPrompter supplies a password for a server whose configuration
// leaves it blank. Implemented by the front-end collaborator; the default
// implementation refuses.
type PasswordPrompter interface {
	Password(server *models.ServerInfo) (string, error)
}

// TicketFetcher resolves the server for a ticket URL, ensures it is
// authenticated, retrieves the page and parses it into a Ticket.
type TicketFetcher interface {
	Fetch(ticketURL string) (*models.Ticket, error)
}

// DirectoryNamer computes the destination directory of a ticket. Results
// are memoized per ticket for the duration of a batch; Reset clears the
// cache at batch boundaries.
type DirectoryNamer interface {
	TicketPath(ticket *models.Ticket) (string, error)
	SetBaseDir(dir string)
	Reset()
}

// AttachmentFetcher downloads one attachment into the ticket's directory.
// Failures are reported in the outcome and must not affect sibling
// downloads.
type AttachmentFetcher interface {
	Fetch(link *models.AttachmentLink) models.DownloadOutcome
}

// TicketPersister writes the textual ticket fields to the ticket
// directory. Best effort: I/O errors are logged, never returned.
type TicketPersister interface {
	Persist(ticket *models.Ticket)
}

// Coordinator runs the two batch operations on a background worker and
// reports through an Events sink. Only one batch is active at a time.
type Coordinator interface {
	FetchTickets(urls []string) error
	DownloadAttachments() error
	SetBaseDir(dir string)
	BaseDir() string
	Tickets() []*models.Ticket
	Busy() bool
}

// Events receives batch notifications. Implementations must be safe to
// call from the worker goroutine; they hand results over to whatever
// front end is attached without the core depending on it.
type Events interface {
	BusyChanged(busy bool)
	// Progress reports done/total items; total is ticket URLs during a
	// fetch batch and individual attachments during a download batch.
	Progress(done, total int)
	TicketsAdded(tickets []*models.Ticket)
	TicketUpdated(ticket *models.Ticket)
}

// Archive persists fetched tickets and their processing state between
// runs.
type Archive interface {
	SaveTickets(serverId string, tickets []*models.TicketRecord) error
	LoadTickets(serverId string) (map[string]*models.TicketRecord, error)
	LoadAllTickets() (map[string]*models.TicketRecord, error)
	GetLastUpdate(serverId string) (string, error)
	ClearAllTickets() error
	Close() error
}

// WebService is the HTTP surface consumed by the front end.
type WebService interface {
	Start(ctx context.Context) error
	Stop() error
	IsRunning() bool
}
