package audiomix

import (
	"fmt"
	"log"
)

// LogFunc is the sink signature for library log messages. The zero value of
// Manager writes through the standard log package with an "[audiomix]"
// prefix; pass a different LogFunc to SetLogFunction to redirect output.
type LogFunc func(text string)

func defaultLogFunc(text string) {
	log.Printf("[audiomix] %s", text)
}

// SetLogFunction installs fn as the manager's log sink. Passing nil restores
// the default (standard log package, "[audiomix]" prefix). The sink is held
// in an atomic pointer rather than behind the manager mutex so logf can be
// called from code paths that already hold it (play, update, destroy).
func (m *Manager) SetLogFunction(fn LogFunc) {
	if fn == nil {
		fn = defaultLogFunc
	}
	m.logFunc.Store(&fn)
}

func (m *Manager) logf(format string, args ...any) {
	fn := defaultLogFunc
	if p := m.logFunc.Load(); p != nil {
		fn = *p
	}
	fn(fmt.Sprintf(format, args...))
}
