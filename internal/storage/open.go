// internal/storage/open.go
package storage

import (
	"fmt"

	"github.com/Corphon/BookFlow/internal/config"
	"github.com/Corphon/BookFlow/internal/utils"
)

// Open builds the store selected by cfg.StoreBackend.
func Open(cfg *config.Config, log *utils.Logger) (Store, error) {
	switch cfg.StoreBackend {
	case config.BackendMemory:
		return NewMemoryStore(), nil
	case config.BackendFile:
		return NewFileStore(cfg.DataDir, log)
	case config.BackendSQLite:
		return OpenSQLite(cfg.SQLitePath, log)
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
}
