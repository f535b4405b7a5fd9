package cache

import (
	"fmt"
	"strings"
	"time"

	"github.com/ppiankov/dealcore/internal/model"
)

// NewStore builds the store selected by cfg.Driver
func NewStore(cfg model.StoreConfig) (Store, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", "memory":
		return NewMemoryStore(cfg.SessionTTL, 10*time.Minute), nil
	case "redis":
		return NewRedisStore(cfg.Redis)
	default:
		return nil, fmt.Errorf("unknown store driver: %s (supported: memory, redis)", cfg.Driver)
	}
}
