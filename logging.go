package streamconv

import (
	"os"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
)

// log is the package-wide debug logger. The converter never fails on a
// logging concern; logrus is configured once at package init so every
// component (NDJSON line skips, XML discard-at-finish, auto-detect commits)
// can emit a debug note without forcing a caller to parse error strings to
// tell "skipped" from "failed".
var log = logrus.New()

func init() {
	out := os.Stderr
	if isatty.IsTerminal(out.Fd()) || isatty.IsCygwinTerminal(out.Fd()) {
		log.SetOutput(colorable.NewColorable(out))
		log.SetFormatter(&logrus.TextFormatter{ForceColors: true, FullTimestamp: true})
	} else {
		log.SetOutput(out)
		log.SetFormatter(&logrus.TextFormatter{DisableColors: true, FullTimestamp: true})
	}
	log.SetLevel(logrus.InfoLevel)
}

// SetDebug toggles debug-level logging for the package. Hosts that want
// per-line skip/discard notes during development should call this once
// at startup.
func SetDebug(enabled bool) {
	if enabled {
		log.SetLevel(logrus.DebugLevel)
	} else {
		log.SetLevel(logrus.InfoLevel)
	}
}
