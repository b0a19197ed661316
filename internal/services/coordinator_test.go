package services

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"teamforge-downloader/internal/common"
	"teamforge-downloader/internal/models"
	"teamforge-downloader/internal/naming"
)

type fakeFetcher struct {
	mu      sync.Mutex
	tickets map[string]*models.Ticket
	errs    map[string]error
	block   chan struct{}
}

func (f *fakeFetcher) Fetch(ticketURL string) (*models.Ticket, error) {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.errs[ticketURL]; ok {
		return nil, err
	}
	if ticket, ok := f.tickets[ticketURL]; ok {
		return ticket, nil
	}
	return nil, common.NewNetworkError("fetch", "no response for "+ticketURL)
}

type fakeAttachments struct {
	mu       sync.Mutex
	outcomes map[string]models.DownloadOutcome
	fetched  []string
	block    chan struct{}
}

func (f *fakeAttachments) Fetch(link *models.AttachmentLink) models.DownloadOutcome {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetched = append(f.fetched, link.URL)
	if outcome, ok := f.outcomes[link.URL]; ok {
		return outcome
	}
	return models.DownloadOutcome{StatusCode: 200, BytesWritten: 1}
}

func (f *fakeAttachments) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.fetched)
}

type fakePersister struct {
	mu        sync.Mutex
	persisted []string
}

func (f *fakePersister) Persist(ticket *models.Ticket) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.persisted = append(f.persisted, ticket.Id)
}

// recordingEvents captures notifications and signals each end of batch.
type recordingEvents struct {
	mu       sync.Mutex
	progress [][2]int
	added    int
	updated  []string
	idle     chan struct{}
}

func newRecordingEvents() *recordingEvents {
	return &recordingEvents{idle: make(chan struct{}, 4)}
}

func (e *recordingEvents) BusyChanged(busy bool) {
	if !busy {
		e.idle <- struct{}{}
	}
}

func (e *recordingEvents) Progress(done, total int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.progress = append(e.progress, [2]int{done, total})
}

func (e *recordingEvents) TicketsAdded(tickets []*models.Ticket) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.added += len(tickets)
}

func (e *recordingEvents) TicketUpdated(ticket *models.Ticket) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.updated = append(e.updated, ticket.Id)
}

func (e *recordingEvents) waitIdle(t *testing.T) {
	t.Helper()
	select {
	case <-e.idle:
	case <-time.After(5 * time.Second):
		t.Fatal("batch did not finish")
	}
}

func ticketWithAttachments(id string, urls ...string) *models.Ticket {
	ticket := &models.Ticket{
		Source: &models.ServerInfo{Id: "EB", URL: "https://tracker.example.com"},
		Id:     id,
		URL:    "https://tracker.example.com/sf/go/" + id,
	}
	for _, u := range urls {
		ticket.Attachments = append(ticket.Attachments, &models.AttachmentLink{Ticket: ticket, URL: u, Name: "f.bin"})
	}
	return ticket
}

func newTestCoordinator(t *testing.T, fetcher *fakeFetcher, attachments *fakeAttachments,
	persister *fakePersister, events *recordingEvents) *coordinator {
	t.Helper()
	cfg := common.DefaultConfig()
	cfg.Downloader.BaseDir = t.TempDir()
	namer := naming.NewDeterministic(cfg.Downloader.BaseDir)
	c := NewCoordinator(cfg, fetcher, attachments, persister, namer, nil, events, common.GetLogger())
	return c.(*coordinator)
}

func TestFetchTicketsPartialFailure(t *testing.T) {
	t1 := ticketWithAttachments("artf1")
	t3 := ticketWithAttachments("artf3")
	fetcher := &fakeFetcher{
		tickets: map[string]*models.Ticket{
			"https://tracker.example.com/sf/go/artf1": t1,
			"https://tracker.example.com/sf/go/artf3": t3,
		},
		errs: map[string]error{
			"https://tracker.example.com/sf/go/artf2": common.NewUnknownServerError("no_server", "no configured server matches"),
		},
	}
	events := newRecordingEvents()
	c := newTestCoordinator(t, fetcher, &fakeAttachments{}, &fakePersister{}, events)

	require.NoError(t, c.FetchTickets([]string{
		"https://tracker.example.com/sf/go/artf1",
		"https://tracker.example.com/sf/go/artf2",
		"https://tracker.example.com/sf/go/artf3",
	}))
	events.waitIdle(t)

	tickets := c.Tickets()
	require.Len(t, tickets, 2)
	assert.Equal(t, "artf1", tickets[0].Id)
	assert.Equal(t, "artf3", tickets[1].Id)
	assert.Equal(t, 2, events.added)
	assert.False(t, c.Busy())

	// One progress tick per URL plus the initial zero tick.
	events.mu.Lock()
	defer events.mu.Unlock()
	assert.Equal(t, [2]int{0, 3}, events.progress[0])
	assert.Equal(t, [2]int{3, 3}, events.progress[len(events.progress)-1])
}

func TestFetchTicketsRejectsEmptyList(t *testing.T) {
	c := newTestCoordinator(t, &fakeFetcher{}, &fakeAttachments{}, &fakePersister{}, newRecordingEvents())
	err := c.FetchTickets(nil)
	require.Error(t, err)
}

func TestFetchTicketsWhileBusy(t *testing.T) {
	block := make(chan struct{})
	fetcher := &fakeFetcher{
		tickets: map[string]*models.Ticket{"u1": ticketWithAttachments("artf1")},
		block:   block,
	}
	events := newRecordingEvents()
	c := newTestCoordinator(t, fetcher, &fakeAttachments{}, &fakePersister{}, events)

	require.NoError(t, c.FetchTickets([]string{"u1"}))
	assert.True(t, c.Busy())

	err := c.FetchTickets([]string{"u2"})
	require.Error(t, err)

	err = c.DownloadAttachments()
	require.Error(t, err)

	close(block)
	events.waitIdle(t)
	assert.False(t, c.Busy())
}

func TestDownloadAttachmentsMarksStates(t *testing.T) {
	okTicket := ticketWithAttachments("artf1", "https://tracker.example.com/a/1", "https://tracker.example.com/a/2")
	nokTicket := ticketWithAttachments("artf2", "https://tracker.example.com/a/3", "https://tracker.example.com/a/4")

	attachments := &fakeAttachments{outcomes: map[string]models.DownloadOutcome{
		"https://tracker.example.com/a/3": {StatusCode: 404},
	}}
	persister := &fakePersister{}
	events := newRecordingEvents()
	c := newTestCoordinator(t, &fakeFetcher{}, attachments, persister, events)
	c.tickets = []*models.Ticket{okTicket, nokTicket}

	require.NoError(t, c.DownloadAttachments())
	events.waitIdle(t)

	assert.Equal(t, models.ProcessedOK, okTicket.State)
	assert.Equal(t, models.ProcessedNOK, nokTicket.State)
	assert.NotEmpty(t, okTicket.Path)

	// One failed attachment does not stop its siblings: all four links
	// were attempted.
	assert.Equal(t, 4, attachments.count())
	assert.ElementsMatch(t, []string{"artf1", "artf2"}, persister.persisted)
	assert.ElementsMatch(t, []string{"artf1", "artf2"}, events.updated)

	events.mu.Lock()
	assert.Equal(t, [2]int{0, 4}, events.progress[0])
	assert.Equal(t, [2]int{4, 4}, events.progress[len(events.progress)-1])
	events.mu.Unlock()
}

func TestDownloadAttachmentsSkipsProcessed(t *testing.T) {
	okTicket := ticketWithAttachments("artf1", "https://tracker.example.com/a/1")
	nokTicket := ticketWithAttachments("artf2", "https://tracker.example.com/a/2")

	attachments := &fakeAttachments{outcomes: map[string]models.DownloadOutcome{
		"https://tracker.example.com/a/2": {StatusCode: 404},
	}}
	events := newRecordingEvents()
	c := newTestCoordinator(t, &fakeFetcher{}, attachments, &fakePersister{}, events)
	c.tickets = []*models.Ticket{okTicket, nokTicket}

	require.NoError(t, c.DownloadAttachments())
	events.waitIdle(t)
	require.Equal(t, 2, attachments.count())

	// A re-run skips every processed ticket, failed ones included.
	require.NoError(t, c.DownloadAttachments())
	events.waitIdle(t)
	assert.Equal(t, 2, attachments.count())
}

// Exercises concurrent snapshot reads while the worker mutates ticket
// state; meaningful under the race detector.
func TestTicketsSnapshotDuringAttachmentBatch(t *testing.T) {
	ticket := ticketWithAttachments("artf1", "https://tracker.example.com/a/1")
	block := make(chan struct{})
	attachments := &fakeAttachments{block: block}
	events := newRecordingEvents()
	c := newTestCoordinator(t, &fakeFetcher{}, attachments, &fakePersister{}, events)
	c.tickets = []*models.Ticket{ticket}

	require.NoError(t, c.DownloadAttachments())

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-stop:
				return
			default:
			}
			for _, snapshot := range c.Tickets() {
				_ = snapshot.State.String()
				_ = snapshot.Path
			}
		}
	}()

	close(block)
	events.waitIdle(t)
	close(stop)
	<-done

	assert.Equal(t, models.ProcessedOK, ticket.State)
	assert.NotEmpty(t, ticket.Path)
}

func TestTicketsReturnsCopies(t *testing.T) {
	ticket := ticketWithAttachments("artf1")
	c := newTestCoordinator(t, &fakeFetcher{}, &fakeAttachments{}, &fakePersister{}, newRecordingEvents())
	c.tickets = []*models.Ticket{ticket}

	snapshot := c.Tickets()
	require.Len(t, snapshot, 1)
	assert.NotSame(t, ticket, snapshot[0])

	// Mutating the snapshot leaves the coordinator's ticket untouched.
	snapshot[0].State = models.ProcessedNOK
	assert.Equal(t, models.NotProcessed, ticket.State)
}

func TestDownloadAttachmentsWithNothingPending(t *testing.T) {
	events := newRecordingEvents()
	c := newTestCoordinator(t, &fakeFetcher{}, &fakeAttachments{}, &fakePersister{}, events)

	require.NoError(t, c.DownloadAttachments())
	events.waitIdle(t)
	assert.False(t, c.Busy())
}

func TestSetBaseDir(t *testing.T) {
	c := newTestCoordinator(t, &fakeFetcher{}, &fakeAttachments{}, &fakePersister{}, newRecordingEvents())

	newDir := t.TempDir()
	c.SetBaseDir(newDir)
	assert.Equal(t, newDir, c.BaseDir())
}
