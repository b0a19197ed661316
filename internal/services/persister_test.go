package services

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"teamforge-downloader/internal/common"
	"teamforge-downloader/internal/models"
	"teamforge-downloader/internal/naming"
)

func TestPersistWritesFields(t *testing.T) {
	baseDir := t.TempDir()
	persister := NewTicketPersister(naming.NewDeterministic(baseDir), common.GetLogger())

	ticket := &models.Ticket{
		Id:          "artf1001",
		Description: "the radio resets",
		Analysis:    "scheduler bug",
	}
	persister.Persist(ticket)

	description, err := os.ReadFile(filepath.Join(baseDir, "artf1001", "description.txt"))
	require.NoError(t, err)
	assert.Equal(t, "the radio resets", string(description))

	analysis, err := os.ReadFile(filepath.Join(baseDir, "artf1001", "analysis.txt"))
	require.NoError(t, err)
	assert.Equal(t, "scheduler bug", string(analysis))
}

func TestPersistSkipsEmptyFields(t *testing.T) {
	baseDir := t.TempDir()
	persister := NewTicketPersister(naming.NewDeterministic(baseDir), common.GetLogger())

	ticket := &models.Ticket{Id: "artf1001", Description: "only a description"}
	persister.Persist(ticket)

	_, err := os.Stat(filepath.Join(baseDir, "artf1001", "description.txt"))
	assert.NoError(t, err)

	_, err = os.Stat(filepath.Join(baseDir, "artf1001", "analysis.txt"))
	assert.True(t, os.IsNotExist(err))
}

func TestPersistBareTicketWritesNothing(t *testing.T) {
	baseDir := t.TempDir()
	persister := NewTicketPersister(naming.NewDeterministic(baseDir), common.GetLogger())

	persister.Persist(&models.Ticket{Id: "artf2002"})

	// No text means no directory: an empty ticket leaves no trace.
	_, err := os.Stat(filepath.Join(baseDir, "artf2002"))
	assert.True(t, os.IsNotExist(err))
}
