package services

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-resty/resty/v2"
	"github.com/ternarybob/arbor"

	"teamforge-downloader/internal/common"
	"teamforge-downloader/internal/interfaces"
	"teamforge-downloader/internal/models"
)

type attachmentFetcher struct {
	namer  interfaces.DirectoryNamer
	client *resty.Client
	logger arbor.ILogger
}

// NewAttachmentFetcher creates the fetcher that streams attachments to
// disk. No request timeout is set: attachments can be arbitrarily large
// and the transfer runs as long as the server keeps sending.
func NewAttachmentFetcher(cfg *common.Config, namer interfaces.DirectoryNamer, logger arbor.ILogger) interfaces.AttachmentFetcher {
	client := resty.New().
		SetHeader("User-Agent", cfg.Downloader.UserAgent).
		SetDoNotParseResponse(true)

	return &attachmentFetcher{
		namer:  namer,
		client: client,
		logger: logger,
	}
}

// Fetch downloads one attachment into its ticket's directory. Name
// collisions inside the directory are resolved with a numeric suffix,
// so two attachments sharing a filename both survive.
func (af *attachmentFetcher) Fetch(link *models.AttachmentLink) models.DownloadOutcome {
	var out models.DownloadOutcome

	dir, err := af.namer.TicketPath(link.Ticket)
	if err != nil {
		out.Err = err
		return out
	}

	af.logger.Info().Str("url", link.URL).Msg("fetching attachment")

	resp, err := af.client.R().
		SetHeader("Cookie", link.Ticket.Source.CookieHeader()).
		Get(link.URL)
	if err != nil {
		out.Err = common.NewNetworkError("attachment_fetch",
			fmt.Sprintf("request for %s failed", link.URL)).WithCause(err)
		return out
	}
	raw := resp.RawBody()
	defer raw.Close()

	out.StatusCode = resp.StatusCode()
	if out.StatusCode != http.StatusOK {
		af.logger.Warn().Int("status", out.StatusCode).Str("url", link.URL).Msg("attachment not retrieved")
		return out
	}

	name := filenameFromDisposition(resp.Header().Get("Content-Disposition"))
	if common.IsBlank(name) {
		name = link.Name
	}
	// Server-supplied names are untrusted: strip any path component so
	// a name like "../../x" cannot escape the ticket directory.
	name = filepath.Base(name)
	if common.IsBlank(name) || name == "." || name == ".." || name == string(filepath.Separator) {
		name = "attachment"
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		out.Err = common.NewFilesystemError("mkdir",
			fmt.Sprintf("failed to create directory %s", dir)).WithCause(err)
		return out
	}

	target := common.UniquePath(dir, name)
	file, err := os.Create(target)
	if err != nil {
		out.Err = common.NewFilesystemError("create",
			fmt.Sprintf("failed to create %s", target)).WithCause(err)
		return out
	}

	written, err := io.Copy(file, raw)
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		out.Err = common.NewFilesystemError("write",
			fmt.Sprintf("failed to write %s", target)).WithCause(err)
		return out
	}

	out.BytesWritten = written
	af.logger.Debug().Str("file", target).Int("bytes", int(written)).Msg("attachment saved")
	return out
}

// filenameFromDisposition extracts the filename parameter of a
// Content-Disposition header, empty when absent or malformed.
func filenameFromDisposition(header string) string {
	if header == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(header)
	if err != nil {
		return ""
	}
	return params["filename"]
}
