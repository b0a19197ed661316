// Package naming computes the destination directory of a ticket. The
// primary strategy runs a user-overridable JavaScript rule; a
// deterministic strategy serves as both a standalone namer and the
// fallback when the rule misbehaves.
package naming

import (
	_ "embed"
	"os"
	"path/filepath"
	"sync"

	"github.com/dop251/goja"
	"github.com/ternarybob/arbor"

	"teamforge-downloader/internal/common"
	"teamforge-downloader/internal/interfaces"
	"teamforge-downloader/internal/models"
)

// The bundled naming rule, copied into the user's config location on
// first run so it can be customized.
//
//go:embed dir-namer.js
var defaultScript string

// ruleFunction is the global the naming script must define.
const ruleFunction = "generateName"

// Deterministic names ticket directories <baseDir>/<ticketId>. It is the
// fallback of the script namer and usable on its own.
type Deterministic struct {
	mu      sync.Mutex
	baseDir string
}

func NewDeterministic(baseDir string) *Deterministic {
	return &Deterministic{baseDir: baseDir}
}

func (d *Deterministic) TicketPath(ticket *models.Ticket) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return filepath.Join(d.baseDir, ticket.Id), nil
}

func (d *Deterministic) SetBaseDir(dir string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.baseDir = dir
}

// Reset is a no-op: deterministic names need no cache.
func (d *Deterministic) Reset() {}

// scriptNamer runs the JavaScript naming rule. Generated paths are
// memoized per ticket instance, so repeated lookups within a batch are
// stable even if the base directory changes between them; the cache is
// cleared at batch boundaries via Reset.
type scriptNamer struct {
	mu      sync.Mutex
	baseDir string
	vm      *goja.Runtime
	rule    goja.Callable
	cache   map[*models.Ticket]string
	logger  arbor.ILogger
}

// NewScriptNamer loads the naming rule from the configured script path.
// A missing script file is replaced with the bundled default, which is
// also copied into place so the user can edit it. A script that fails to
// compile or lacks the rule function is logged once; every lookup then
// uses the deterministic fallback name.
func NewScriptNamer(cfg *common.Config, logger arbor.ILogger) interfaces.DirectoryNamer {
	n := &scriptNamer{
		baseDir: cfg.Downloader.BaseDir,
		cache:   make(map[*models.Ticket]string),
		logger:  logger,
	}
	n.compile(loadScript(cfg.Naming.ScriptPath, logger))
	return n
}

// loadScript reads the user script, installing the bundled default when
// the file does not exist yet.
func loadScript(scriptPath string, logger arbor.ILogger) string {
	if scriptPath == "" {
		return defaultScript
	}

	data, err := os.ReadFile(scriptPath)
	if err == nil {
		logger.Debug().Str("path", scriptPath).Msg("naming script loaded")
		return string(data)
	}
	if !os.IsNotExist(err) {
		logger.Warn().Err(err).Str("path", scriptPath).Msg("cannot read naming script, using default")
		return defaultScript
	}

	// First run: copy the default into the config location.
	if err := os.MkdirAll(filepath.Dir(scriptPath), 0755); err == nil {
		if err := os.WriteFile(scriptPath, []byte(defaultScript), 0644); err == nil {
			logger.Info().Str("path", scriptPath).Msg("default naming script installed")
		}
	}
	return defaultScript
}

func (n *scriptNamer) compile(script string) {
	vm := goja.New()
	if err := vm.Set("separator", string(filepath.Separator)); err != nil {
		n.logger.Warn().Err(err).Msg("naming rule setup failed, using fallback names")
		return
	}
	if _, err := vm.RunString(script); err != nil {
		n.logger.Warn().Err(err).Msg("naming script failed to evaluate, using fallback names")
		return
	}
	rule, ok := goja.AssertFunction(vm.Get(ruleFunction))
	if !ok {
		n.logger.Warn().Str("function", ruleFunction).Msg("naming script defines no rule function, using fallback names")
		return
	}
	n.vm = vm
	n.rule = rule
}

func (n *scriptNamer) TicketPath(ticket *models.Ticket) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if path, ok := n.cache[ticket]; ok {
		return path, nil
	}

	path := n.generate(ticket)
	n.cache[ticket] = path
	return path, nil
}

func (n *scriptNamer) SetBaseDir(dir string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	// Cached paths are not recomputed; only uncached tickets see the new
	// base directory.
	n.baseDir = dir
}

func (n *scriptNamer) Reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.cache = make(map[*models.Ticket]string)
}

// generate runs the rule, falling back to <baseDir>/<ticketId> on any
// failure. Caller holds the lock (the goja runtime is not safe for
// concurrent use).
func (n *scriptNamer) generate(ticket *models.Ticket) string {
	if n.rule == nil {
		return n.backupName(ticket)
	}

	serverName := ""
	if ticket.Source != nil {
		serverName = ticket.Source.Name
	}
	arg := map[string]interface{}{
		"id":      ticket.Id,
		"title":   ticket.Title,
		"tracker": ticket.Tracker,
		"kpm":     ticket.Kpm,
		"server":  serverName,
	}

	value, err := n.rule(goja.Undefined(), n.vm.ToValue(n.baseDir), n.vm.ToValue(arg))
	if err != nil {
		n.logger.Warn().Err(err).Str("ticket", ticket.Id).Msg("naming rule failed, using backup name")
		return n.backupName(ticket)
	}

	dir, ok := value.Export().(string)
	if !ok || common.IsBlank(dir) {
		n.logger.Warn().Str("ticket", ticket.Id).Msg("naming rule returned no usable string, using backup name")
		return n.backupName(ticket)
	}

	generated := filepath.Clean(dir)
	n.logger.Debug().Str("ticket", ticket.Id).Str("path", generated).Msg("ticket directory generated")
	return generated
}

func (n *scriptNamer) backupName(ticket *models.Ticket) string {
	return filepath.Join(n.baseDir, ticket.Id)
}
