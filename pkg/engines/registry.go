package engines

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/typhoonworks/lotus-sub001/pkg/config"
)

// ErrorClassifier converts engine-native error values into stable
// human-readable strings. Each engine declares which native error shapes it
// claims through Handles; the central dispatcher tries each in turn.
type ErrorClassifier interface {
	Handles(err error) bool
	Format(err error) string
}

// Registration contains the info and constructors for one engine.
type Registration struct {
	ID          string
	DisplayName string
	Factory     func(ctx context.Context, cfg *config.EngineConfig, logger *zap.Logger) (Engine, error)
	Classifier  ErrorClassifier
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Registration)
)

// Register is called by each engine package's init function.
// Thread-safe for concurrent init calls.
func Register(reg Registration) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[reg.ID] = reg
}

// Registered returns the IDs of all registered engines.
func Registered() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	ids := make([]string, 0, len(registry))
	for id := range registry {
		ids = append(ids, id)
	}
	return ids
}

// New constructs an engine by identifier.
func New(ctx context.Context, id string, cfg *config.EngineConfig, logger *zap.Logger) (Engine, error) {
	registryMu.RLock()
	reg, ok := registry[id]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported engine: %s", id)
	}
	return reg.Factory(ctx, cfg, logger)
}

// ClassifyError maps an engine-native error to a stable human-readable
// string by dispatching across registered classifiers. Unrecognized errors
// fall back to a generic representation.
func ClassifyError(err error) string {
	if err == nil {
		return ""
	}
	registryMu.RLock()
	defer registryMu.RUnlock()
	for _, reg := range registry {
		if reg.Classifier != nil && reg.Classifier.Handles(err) {
			return reg.Classifier.Format(err)
		}
	}
	return fmt.Sprintf("database error: %v", err)
}
