package query

import (
	"log"
	"strings"

	"github.com/ziadkadry99/receipt-rag/internal/generation"
	"github.com/ziadkadry99/receipt-rag/internal/vectordb"
)

// Aggregate sums field across results. Each breakdown item carries the
// amount first, followed by the chunk's other metadata. Chunks without a
// numeric field are skipped. A nil total means no chunk had one.
func Aggregate(results []vectordb.QueryResult, field, userKey string) (*float64, []vectordb.Metadata) {
	var (
		total     float64
		breakdown []vectordb.Metadata
	)
	for _, r := range results {
		v, ok := r.Metadata.Get(field)
		if !ok {
			log.Printf("query: chunk %s has no %s, skipping in total", r.ChunkID, field)
			continue
		}
		amount, ok := v.Float()
		if !ok {
			log.Printf("query: chunk %s has non-numeric %s %q, skipping in total", r.ChunkID, field, v.String())
			continue
		}
		total += amount

		item := vectordb.NewMetadata(vectordb.Entry{Key: generation.AmountKey, Value: vectordb.Number(amount)})
		for _, e := range r.Metadata.Entries() {
			if e.Key == field || e.Key == userKey || e.Key == generation.AmountKey || strings.HasPrefix(e.Key, "_") {
				continue
			}
			item.Set(e.Key, e.Value)
		}
		breakdown = append(breakdown, item)
	}
	if len(breakdown) == 0 {
		return nil, nil
	}
	return &total, breakdown
}
