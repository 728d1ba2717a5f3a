package badger

import (
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/vantage/internal/common"
	"github.com/ternarybob/vantage/internal/interfaces"
)

// Manager implements the StorageManager interface for Badger
type Manager struct {
	db      *BadgerDB
	blobs   interfaces.BlobCache
	results interfaces.ResultStore
	logger  arbor.ILogger
}

// NewManager creates a new Badger storage manager
func NewManager(logger arbor.ILogger, config *common.BadgerConfig) (interfaces.StorageManager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}

	manager := &Manager{
		db:      db,
		blobs:   NewBlobCache(db, logger),
		results: NewResultStorage(db, logger),
		logger:  logger,
	}

	logger.Info().Msg("Badger storage manager initialized")

	return manager, nil
}

// BlobCache returns the fragment cache interface
func (m *Manager) BlobCache() interfaces.BlobCache {
	return m.blobs
}

// ResultStore returns the analysis result store interface
func (m *Manager) ResultStore() interfaces.ResultStore {
	return m.results
}

// Close closes the database connection
func (m *Manager) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}
