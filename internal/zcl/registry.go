package zcl

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Registry holds the cluster definitions the attribute store is built from.
type Registry struct {
	mu       sync.RWMutex
	clusters map[uint16]ClusterDef
	logger   *slog.Logger
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		clusters: make(map[uint16]ClusterDef),
		logger:   logger,
	}
}

// Register adds c. A later definition with the same ID replaces the
// earlier one.
func (r *Registry) Register(c ClusterDef) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := fmt.Sprintf("0x%04X", c.ID)
	if _, ok := r.clusters[c.ID]; ok {
		r.logger.Warn("cluster redefined", "id", id, "name", c.Name)
	}
	r.clusters[c.ID] = c.clone()
	r.logger.Debug("cluster registered", "id", id, "name", c.Name, "attributes", len(c.Attributes))
}

// Get returns a copy of a cluster definition, or nil if not found.
func (r *Registry) Get(id uint16) *ClusterDef {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clusters[id]
	if !ok {
		return nil
	}
	cp := c.clone()
	return &cp
}

// All returns copies of every definition ordered by ID.
func (r *Registry) All() []ClusterDef {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]ClusterDef, 0, len(r.clusters))
	for _, c := range r.clusters {
		result = append(result, c.clone())
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}
