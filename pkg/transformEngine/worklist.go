package transformEngine

import (
	"github.com/Layr-Labs/sidecar-events/pkg/contractStore"
	"github.com/Layr-Labs/sidecar-events/pkg/parser"
)

// WorkItem is a decoded log together with the transformer binding of the
// contract that emitted it.
type WorkItem struct {
	Log     *parser.DecodedLog
	Binding *contractStore.TransformerBinding
}

// Worklist holds the logs of one transaction that have a transformer,
// ascending by log index regardless of which contract emitted them.
type Worklist struct {
	items   []*WorkItem
	skipped int
}

func NewWorklist(tx *parser.Transaction, catalog contractStore.Catalog) *Worklist {
	w := &Worklist{items: make([]*WorkItem, 0, tx.Logs.Len())}
	for _, view := range tx.SortedLogs() {
		lg, ok := view.(*parser.DecodedLog)
		if !ok {
			w.skipped++
			continue
		}
		binding, ok := catalog.GetTransformer(lg.Address)
		if !ok {
			w.skipped++
			continue
		}
		w.items = append(w.items, &WorkItem{Log: lg, Binding: binding})
	}
	return w
}

func (w *Worklist) Items() []*WorkItem {
	return w.items
}

func (w *Worklist) Len() int {
	return len(w.items)
}

// Skipped is the number of logs that were encoded or had no transformer.
func (w *Worklist) Skipped() int {
	return w.skipped
}
