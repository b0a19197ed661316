package models

import (
	"fmt"
	"time"
)

// TicketState tracks whether a ticket's attachments have been processed.
type TicketState int

const (
	NotProcessed TicketState = iota
	ProcessedOK
	ProcessedNOK
)

func (ts TicketState) String() string {
	switch ts {
	case ProcessedOK:
		return "ok"
	case ProcessedNOK:
		return "nok"
	default:
		return "not_processed"
	}
}

// Ticket is a single issue record scraped from a tracker page. Identity
// fields (URL, Id) are immutable after parsing; State and Path are set by
// the coordinator during attachment processing.
type Ticket struct {
	// Source is the server the ticket was fetched from. Shared, not owned.
	Source *ServerInfo

	URL         string
	Id          string
	Title       string
	Kpm         int64
	Tracker     string
	Description string
	Analysis    string

	// Attachments in page order.
	Attachments []*AttachmentLink

	State TicketState

	// Path is the resolved destination directory, set once after naming.
	Path string
}

// AttachmentCount is derived from the attachment list, never stored.
func (t *Ticket) AttachmentCount() int {
	return len(t.Attachments)
}

func (t *Ticket) String() string {
	serverId := ""
	if t.Source != nil {
		serverId = t.Source.Id
	}
	return fmt.Sprintf("Ticket{id=%s, title=%q, kpm=%d, tracker=%s, attachments=%d, server=%s, state=%s}",
		t.Id, t.Title, t.Kpm, t.Tracker, len(t.Attachments), serverId, t.State)
}

// AttachmentLink is a file reference found on a ticket page. Read-only
// after parsing; Name is used as a fallback when the server response does
// not carry a filename.
type AttachmentLink struct {
	Ticket *Ticket
	URL    string
	Name   string
}

func (al *AttachmentLink) String() string {
	return fmt.Sprintf("AttachmentLink{url=%s, name=%q}", al.URL, al.Name)
}

// DownloadOutcome is the result of a single attachment fetch. Never
// persisted.
type DownloadOutcome struct {
	StatusCode   int
	BytesWritten int64
	Err          error
}

// OK reports whether the fetch completed with HTTP 200 and no error.
func (o DownloadOutcome) OK() bool {
	return o.StatusCode == 200 && o.Err == nil
}

// TicketRecord is the archived form of a ticket stored in the database.
type TicketRecord struct {
	Id          string    `json:"id"`
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	Kpm         int64     `json:"kpm"`
	Tracker     string    `json:"tracker"`
	ServerId    string    `json:"server_id"`
	State       string    `json:"state"`
	Path        string    `json:"path,omitempty"`
	Attachments []string  `json:"attachments,omitempty"`
	Saved       time.Time `json:"saved"`
}

// RecordOf converts a ticket to its archived form.
func RecordOf(t *Ticket) *TicketRecord {
	rec := &TicketRecord{
		Id:      t.Id,
		URL:     t.URL,
		Title:   t.Title,
		Kpm:     t.Kpm,
		Tracker: t.Tracker,
		State:   t.State.String(),
		Path:    t.Path,
	}
	if t.Source != nil {
		rec.ServerId = t.Source.Id
	}
	for _, link := range t.Attachments {
		rec.Attachments = append(rec.Attachments, link.Name)
	}
	return rec
}
