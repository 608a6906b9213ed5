// Package logs wires one btclog subsystem logger per package in this
// module, the way daglabs-btcd/logger does for the node it was forked
// from.
package logs

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/btcsuite/btclog"
)

var backend = btclog.NewBackend(os.Stdout)

// Subsystem tags, one per package that logs.
const (
	TagCRYP = "CRYP" // internal/crypto
	TagTXNS = "TXNS" // internal/core/transaction
	TagSTAT = "STAT" // internal/core/state
	TagMEMP = "MEMP" // internal/core/mempool
	TagCNSS = "CNSS" // internal/consensus
	TagEXEC = "EXEC" // internal/executor
	TagP2P  = "P2P_" // internal/p2p
	TagSTOR = "STOR" // internal/storage
	TagDAEM = "DAEM" // cmd/terminosd
)

var subsystemLoggers = map[string]btclog.Logger{
	TagCRYP: backend.Logger(TagCRYP),
	TagTXNS: backend.Logger(TagTXNS),
	TagSTAT: backend.Logger(TagSTAT),
	TagMEMP: backend.Logger(TagMEMP),
	TagCNSS: backend.Logger(TagCNSS),
	TagEXEC: backend.Logger(TagEXEC),
	TagP2P:  backend.Logger(TagP2P),
	TagSTOR: backend.Logger(TagSTOR),
	TagDAEM: backend.Logger(TagDAEM),
}

// Logger returns the subsystem logger registered under tag, creating a
// disabled logger for unknown tags so callers never see a nil pointer.
func Logger(tag string) btclog.Logger {
	if l, ok := subsystemLoggers[tag]; ok {
		return l
	}
	return btclog.Disabled
}

// SetLevel sets the logging level for a single subsystem. Unknown
// subsystems are ignored.
func SetLevel(tag, level string) {
	logger, ok := subsystemLoggers[tag]
	if !ok {
		return
	}
	lvl, ok := btclog.LevelFromString(level)
	if !ok {
		return
	}
	logger.SetLevel(lvl)
}

// SetLevels sets every subsystem logger to the same level.
func SetLevels(level string) {
	for tag := range subsystemLoggers {
		SetLevel(tag, level)
	}
}

// ParseAndSetDebugLevels parses a "tag=level,tag=level" or bare "level"
// specifier, mirroring the daglabs-btcd CLI --debuglevel flag semantics
// (CLI parsing itself stays out of scope; only this helper is carried).
func ParseAndSetDebugLevels(spec string) error {
	if !strings.Contains(spec, ",") && !strings.Contains(spec, "=") {
		if _, ok := btclog.LevelFromString(spec); !ok {
			return fmt.Errorf("invalid debug level %q", spec)
		}
		SetLevels(spec)
		return nil
	}
	for _, pair := range strings.Split(spec, ",") {
		fields := strings.SplitN(pair, "=", 2)
		if len(fields) != 2 {
			return fmt.Errorf("invalid debug level pair %q", pair)
		}
		tag, level := fields[0], fields[1]
		if _, ok := subsystemLoggers[tag]; !ok {
			return fmt.Errorf("invalid subsystem %q -- supported: %s", tag, strings.Join(SupportedSubsystems(), ", "))
		}
		if _, ok := btclog.LevelFromString(level); !ok {
			return fmt.Errorf("invalid debug level %q", level)
		}
		SetLevel(tag, level)
	}
	return nil
}

// SupportedSubsystems returns a sorted list of the registered tags.
func SupportedSubsystems() []string {
	tags := make([]string, 0, len(subsystemLoggers))
	for tag := range subsystemLoggers {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}
