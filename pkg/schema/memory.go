package schema

import (
	"sync"

	"github.com/arcgraph/edgestore/pkg/model"
)

// MemoryCatalog is an in-memory Catalog backed by plain maps. It is
// read-heavy-safe (RWMutex). cmd/edgestored and the core's tests do not use
// it: they build schema.Label values directly.
type MemoryCatalog struct {
	mu      sync.RWMutex
	columns map[model.ColumnID]ServiceColumn
	labels  map[model.LabelID]Label
}

// NewMemoryCatalog returns an empty catalog; populate it with Put* before use.
func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{
		columns: make(map[model.ColumnID]ServiceColumn),
		labels:  make(map[model.LabelID]Label),
	}
}

// PutServiceColumn registers or replaces a ServiceColumn.
func (c *MemoryCatalog) PutServiceColumn(sc ServiceColumn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.columns[sc.ID] = sc
}

// PutLabel registers or replaces a Label.
func (c *MemoryCatalog) PutLabel(l Label) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.labels[l.ID] = l
}

func (c *MemoryCatalog) FindServiceColumn(id model.ColumnID) (ServiceColumn, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	sc, ok := c.columns[id]
	if !ok {
		return ServiceColumn{}, &ErrNotFound{Kind: "service_column", Key: id}
	}
	return sc, nil
}

func (c *MemoryCatalog) FindLabel(id model.LabelID) (Label, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	l, ok := c.labels[id]
	if !ok {
		return Label{}, &ErrNotFound{Kind: "label", Key: id}
	}
	return l, nil
}

func (c *MemoryCatalog) LabelMeta(labelID model.LabelID, seq model.PropKey) (LabelMeta, error) {
	l, err := c.FindLabel(labelID)
	if err != nil {
		return LabelMeta{}, err
	}
	for _, m := range l.Metas {
		if m.Seq == seq {
			return m, nil
		}
	}
	return LabelMeta{}, &ErrNotFound{Kind: "label_meta", Key: seq}
}
