package services

import (
	"os"
	"path/filepath"

	"github.com/ternarybob/arbor"

	"teamforge-downloader/internal/interfaces"
	"teamforge-downloader/internal/models"
)

const (
	descriptionFile = "description.txt"
	analysisFile    = "analysis.txt"
)

type ticketPersister struct {
	namer  interfaces.DirectoryNamer
	logger arbor.ILogger
}

// NewTicketPersister creates the writer that saves a ticket's text
// fields next to its attachments.
func NewTicketPersister(namer interfaces.DirectoryNamer, logger arbor.ILogger) interfaces.TicketPersister {
	return &ticketPersister{namer: namer, logger: logger}
}

// Persist writes description.txt and analysis.txt into the ticket's
// directory. Empty fields produce no file; a ticket with no text at all
// leaves the filesystem untouched. Failures are logged and never abort
// the batch.
func (tp *ticketPersister) Persist(ticket *models.Ticket) {
	if ticket.Description == "" && ticket.Analysis == "" {
		return
	}

	dir, err := tp.namer.TicketPath(ticket)
	if err != nil {
		tp.logger.Error().Err(err).Str("ticket", ticket.Id).Msg("failed to resolve ticket directory")
		return
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		tp.logger.Error().Err(err).Str("dir", dir).Msg("failed to create ticket directory")
		return
	}

	tp.writeField(dir, descriptionFile, ticket.Description)
	tp.writeField(dir, analysisFile, ticket.Analysis)
}

func (tp *ticketPersister) writeField(dir, name, content string) {
	if content == "" {
		return
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		tp.logger.Error().Err(err).Str("file", path).Msg("failed to write ticket field")
		return
	}
	tp.logger.Debug().Str("file", path).Msg("ticket field saved")
}
