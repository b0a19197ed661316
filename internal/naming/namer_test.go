package naming

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"teamforge-downloader/internal/common"
	"teamforge-downloader/internal/models"
)

func namerConfig(t *testing.T, script string) *common.Config {
	t.Helper()
	dir := t.TempDir()

	cfg := common.DefaultConfig()
	cfg.Downloader.BaseDir = filepath.Join(dir, "tickets")
	cfg.Naming.ScriptPath = filepath.Join(dir, "dir-namer.js")
	if script != "" {
		require.NoError(t, os.WriteFile(cfg.Naming.ScriptPath, []byte(script), 0644))
	}
	return cfg
}

func sampleTicket() *models.Ticket {
	return &models.Ticket{
		Source: &models.ServerInfo{Id: "EB", Name: "Engineering"},
		Id:     "artf73126",
		Title:  "[KPM] DAB: PTY falsch angezeigt",
		Kpm:    5898943,
	}
}

func TestDeterministicNamer(t *testing.T) {
	namer := NewDeterministic("/tmp/tickets")

	path, err := namer.TicketPath(&models.Ticket{Id: "artf1001"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/tmp/tickets", "artf1001"), path)

	namer.SetBaseDir("/srv/tickets")
	path, err = namer.TicketPath(&models.Ticket{Id: "artf1001"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/srv/tickets", "artf1001"), path)
}

func TestScriptNamerDefaultRule(t *testing.T) {
	cfg := namerConfig(t, "")
	namer := NewScriptNamer(cfg, common.GetLogger())

	path, err := namer.TicketPath(sampleTicket())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cfg.Downloader.BaseDir, "artf73126_kpm_dab_pty_falsch_angezeigt"), path)
}

func TestScriptNamerInstallsDefaultScript(t *testing.T) {
	cfg := namerConfig(t, "")
	NewScriptNamer(cfg, common.GetLogger())

	// First run copies the bundled rule next to the config for editing.
	data, err := os.ReadFile(cfg.Naming.ScriptPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "function generateName")
}

func TestScriptNamerCustomRule(t *testing.T) {
	script := `function generateName(baseDir, ticket) { return baseDir + separator + "kpm-" + ticket.kpm; }`
	cfg := namerConfig(t, script)
	namer := NewScriptNamer(cfg, common.GetLogger())

	path, err := namer.TicketPath(sampleTicket())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cfg.Downloader.BaseDir, "kpm-5898943"), path)
}

func TestScriptNamerBrokenScriptFallsBack(t *testing.T) {
	cfg := namerConfig(t, `this is not javascript {{{`)
	namer := NewScriptNamer(cfg, common.GetLogger())

	path, err := namer.TicketPath(sampleTicket())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cfg.Downloader.BaseDir, "artf73126"), path)
}

func TestScriptNamerRuleMissingFunction(t *testing.T) {
	cfg := namerConfig(t, `var unrelated = 1;`)
	namer := NewScriptNamer(cfg, common.GetLogger())

	path, err := namer.TicketPath(sampleTicket())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cfg.Downloader.BaseDir, "artf73126"), path)
}

func TestScriptNamerRuleThrowsFallsBack(t *testing.T) {
	cfg := namerConfig(t, `function generateName(baseDir, ticket) { throw "boom"; }`)
	namer := NewScriptNamer(cfg, common.GetLogger())

	path, err := namer.TicketPath(sampleTicket())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cfg.Downloader.BaseDir, "artf73126"), path)
}

func TestScriptNamerRuleReturnsNonString(t *testing.T) {
	cfg := namerConfig(t, `function generateName(baseDir, ticket) { return 42; }`)
	namer := NewScriptNamer(cfg, common.GetLogger())

	path, err := namer.TicketPath(sampleTicket())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cfg.Downloader.BaseDir, "artf73126"), path)
}

func TestScriptNamerMemoizesAcrossBaseDirChange(t *testing.T) {
	cfg := namerConfig(t, "")
	namer := NewScriptNamer(cfg, common.GetLogger())

	ticket := sampleTicket()
	first, err := namer.TicketPath(ticket)
	require.NoError(t, err)

	// A cached ticket keeps its directory even after the base changes;
	// the new base applies only to tickets named afterwards.
	namer.SetBaseDir(t.TempDir())
	second, err := namer.TicketPath(ticket)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	other := sampleTicket()
	otherPath, err := namer.TicketPath(other)
	require.NoError(t, err)
	assert.NotEqual(t, first, otherPath)
}

func TestScriptNamerResetClearsCache(t *testing.T) {
	cfg := namerConfig(t, "")
	namer := NewScriptNamer(cfg, common.GetLogger())

	ticket := sampleTicket()
	first, err := namer.TicketPath(ticket)
	require.NoError(t, err)

	newBase := t.TempDir()
	namer.SetBaseDir(newBase)
	namer.Reset()

	second, err := namer.TicketPath(ticket)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
	assert.Equal(t, newBase, filepath.Dir(second))
}
