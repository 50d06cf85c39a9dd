package assetusage

import (
	"context"
	"sync"

	"github.com/louisbranch/contentrepo/internal/services/contentrepo/domain/dimension"
)

type usageKey struct {
	assetID         string
	contentStreamID string
	nodeAggregateID string
	origin          string
	propertyName    string
}

func keyOf(u Usage) usageKey {
	return usageKey{
		assetID:         u.AssetID,
		contentStreamID: u.ContentStreamID,
		nodeAggregateID: u.NodeAggregateID,
		origin:          u.Origin.Hash(),
		propertyName:    u.PropertyName,
	}
}

// Memory is an in-process Repository.
type Memory struct {
	mu     sync.RWMutex
	usages map[usageKey]Usage
}

var _ Repository = (*Memory)(nil)

// NewMemory returns an empty repository.
func NewMemory() *Memory {
	return &Memory{usages: make(map[usageKey]Usage)}
}

func (m *Memory) deleteWhere(match func(Usage) bool) {
	for key, u := range m.usages {
		if match(u) {
			delete(m.usages, key)
		}
	}
}

func (m *Memory) AddUsagesForNode(_ context.Context, addr Address, ids IDsByProperty) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for property, assetIDs := range ids {
		m.deleteWhere(func(u Usage) bool {
			return u.ContentStreamID == addr.ContentStreamID &&
				u.NodeAggregateID == addr.NodeAggregateID &&
				u.Origin.Equal(addr.Origin) &&
				u.PropertyName == property
		})
		for _, assetID := range assetIDs {
			u := Usage{
				AssetID:         assetID,
				ContentStreamID: addr.ContentStreamID,
				NodeAggregateID: addr.NodeAggregateID,
				Origin:          addr.Origin,
				PropertyName:    property,
			}
			m.usages[keyOf(u)] = u
		}
	}
	return nil
}

func (m *Memory) RemoveNode(_ context.Context, contentStreamID, nodeAggregateID string, origins dimension.OriginSet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteWhere(func(u Usage) bool {
		return u.ContentStreamID == contentStreamID &&
			u.NodeAggregateID == nodeAggregateID &&
			(origins.IsEmpty() || origins.Contains(u.Origin))
	})
	return nil
}

func (m *Memory) CopyDimensions(_ context.Context, contentStreamID, nodeAggregateID string, source, target dimension.Origin) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var copies []Usage
	for _, u := range m.usages {
		if u.ContentStreamID == contentStreamID && u.NodeAggregateID == nodeAggregateID && u.Origin.Equal(source) {
			u.Origin = target
			copies = append(copies, u)
		}
	}
	for _, u := range copies {
		m.usages[keyOf(u)] = u
	}
	return nil
}

func (m *Memory) CopyContentStream(_ context.Context, sourceID, targetID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var copies []Usage
	for _, u := range m.usages {
		if u.ContentStreamID == sourceID {
			u.ContentStreamID = targetID
			copies = append(copies, u)
		}
	}
	for _, u := range copies {
		m.usages[keyOf(u)] = u
	}
	return nil
}

func (m *Memory) RemoveContentStream(_ context.Context, contentStreamID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteWhere(func(u Usage) bool { return u.ContentStreamID == contentStreamID })
	return nil
}

func (m *Memory) Find(_ context.Context, filter Filter) ([]Usage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var usages []Usage
	for _, u := range m.usages {
		if filter.Matches(u) {
			usages = append(usages, u)
		}
	}
	Sort(usages)
	return usages, nil
}

func (m *Memory) Reset(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.usages = make(map[usageKey]Usage)
	return nil
}
