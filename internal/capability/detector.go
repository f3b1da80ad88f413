package capability

import (
	"os/exec"
	"strings"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"micscribe/internal/ports"
)

// Backend is one candidate recognition engine.
type Backend struct {
	Name      string
	Available func() bool
	Build     func() ports.RecognitionProvider
}

// Detector picks the first available backend in preference order.
type Detector struct {
	backends []Backend
	logger   *zap.Logger
	selected string
}

func NewDetector(backends []Backend, logger *zap.Logger) *Detector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Detector{backends: backends, logger: logger.Named("capability")}
}

// Detect implements ports.CapabilityDetector.
func (d *Detector) Detect() (ports.RecognitionProvider, bool) {
	backend, found := lo.Find(d.backends, func(b Backend) bool {
		if b.Available == nil || b.Build == nil {
			return false
		}
		ok := b.Available()
		if !ok {
			d.logger.Debug("backend unavailable", zap.String("backend", b.Name))
		}
		return ok
	})
	if !found {
		d.logger.Warn("no speech recognition backend available",
			zap.Strings("candidates", lo.Map(d.backends, func(b Backend, _ int) string { return b.Name })))
		return nil, false
	}

	d.logger.Info("speech recognition backend selected", zap.String("backend", backend.Name))
	d.selected = backend.Name
	return backend.Build(), true
}

// Selected returns the name of the backend chosen by the last Detect call.
func (d *Detector) Selected() string {
	return d.selected
}

// Order returns backends sorted by the given names. Unknown names are skipped and
// backends not named are dropped.
func Order(backends []Backend, names []string) []Backend {
	byName := lo.KeyBy(backends, func(b Backend) string { return b.Name })
	normalized := lo.Uniq(lo.FilterMap(names, func(name string, _ int) (string, bool) {
		name = strings.ToLower(strings.TrimSpace(name))
		return name, name != ""
	}))
	return lo.FilterMap(normalized, func(name string, _ int) (Backend, bool) {
		b, ok := byName[name]
		return b, ok
	})
}

// CommandAvailable reports whether cmd resolves to an executable.
func CommandAvailable(cmd string) bool {
	cmd = strings.TrimSpace(cmd)
	if cmd == "" {
		return false
	}
	_, err := exec.LookPath(cmd)
	return err == nil
}
