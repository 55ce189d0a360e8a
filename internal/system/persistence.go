package system

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/voxelgate/server/internal/chunk"
	coresys "github.com/voxelgate/server/internal/core/system"
)

// PersistenceSystem writes dirty chunks back to storage every saveInterval
// ticks. Phase 4 (Persist), after all world mutation for the tick is done.
type PersistenceSystem struct {
	log          *zap.Logger
	mgr          *chunk.Manager
	saveInterval int
	tickCount    int
}

func NewPersistenceSystem(mgr *chunk.Manager, saveInterval int, log *zap.Logger) *PersistenceSystem {
	if saveInterval <= 0 {
		saveInterval = 200
	}
	return &PersistenceSystem{log: log, mgr: mgr, saveInterval: saveInterval}
}

func (s *PersistenceSystem) Phase() coresys.Phase { return coresys.PhasePersist }

func (s *PersistenceSystem) Update(_ time.Duration) {
	s.tickCount++
	if s.tickCount%s.saveInterval != 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	saved, err := s.mgr.SaveDirty(ctx)
	if err != nil {
		s.log.Error("dirty chunk write-back", zap.Error(err))
	}
	if saved > 0 {
		s.log.Info("saved dirty chunks", zap.Int("count", saved))
	}
}

// Flush forces an immediate write-back, used during shutdown.
func (s *PersistenceSystem) Flush(ctx context.Context) error {
	_, err := s.mgr.SaveDirty(ctx)
	return err
}
