package cache

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"iter"
	"os"
)

// DefaultBatchSize items per grouped write
const DefaultBatchSize = 100

// BatchLoader bulk-ingests lazy sources into a Manager, one SetBatch per batch
type BatchLoader struct {
	manager   *Manager
	batchSize int
}

// NewBatchLoader batchSize <= 0 uses DefaultBatchSize
func NewBatchLoader(m *Manager, batchSize int) *BatchLoader {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &BatchLoader{manager: m, batchSize: batchSize}
}

// Load consumes source once. batchSize 0 uses the loader default.
// See LoadChecked for the failure policy.
func (b *BatchLoader) Load(ctx context.Context, category Category, policy Policy, source iter.Seq2[string, []byte], batchSize int) (int, error) {
	if source == nil {
		return 0, ErrInvalidArgument.WithMsg("batch source is required")
	}
	return b.LoadChecked(ctx, category, policy, func(yield func(Item, error) bool) {
		for id, value := range source {
			if !yield(Item{ID: id, Value: value}, nil) {
				return
			}
		}
	}, batchSize)
}

// LoadChecked is Load for sources that can fail while producing.
// An invalid item, a source error or a cancelled ctx aborts the load: the
// uncommitted partial batch is dropped and the count committed so far is
// returned with the error. Committed batches stay.
func (b *BatchLoader) LoadChecked(ctx context.Context, category Category, policy Policy, source iter.Seq2[Item, error], batchSize int) (int, error) {
	if source == nil {
		return 0, ErrInvalidArgument.WithMsg("batch source is required")
	}
	if batchSize < 0 {
		return 0, ErrInvalidArgument.WithMsgf("batch size must not be negative, got %d", batchSize)
	}
	if batchSize == 0 {
		batchSize = b.batchSize
	}
	if err := b.manager.checkOpen(); err != nil {
		return 0, err
	}
	if err := category.Validate(); err != nil {
		return 0, err
	}
	if _, err := b.manager.resolvePolicy(category, policy); err != nil {
		return 0, err
	}

	committed := 0
	batch := make([]Item, 0, batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := b.manager.SetBatch(ctx, category, policy, batch); err != nil {
			return err
		}
		committed += len(batch)
		batch = batch[:0]
		return nil
	}

	for item, err := range source {
		if err != nil {
			return committed, err
		}
		if err := ctx.Err(); err != nil {
			return committed, err
		}
		if _, err := NewKey(category, item.ID); err != nil {
			return committed, err
		}
		batch = append(batch, item)
		if len(batch) >= batchSize {
			if err := flush(); err != nil {
				return committed, err
			}
		}
	}
	if err := flush(); err != nil {
		return committed, err
	}
	return committed, nil
}

type jsonLine struct {
	ID    string          `json:"id"`
	Value json.RawMessage `json:"value"`
}

// JSONLines decodes a stream of {"id": "...", "value": <any json>} objects,
// one per line. The cached value is the raw JSON of "value".
func JSONLines(r io.Reader) iter.Seq2[Item, error] {
	return func(yield func(Item, error) bool) {
		dec := json.NewDecoder(r)
		for n := 1; ; n++ {
			var line jsonLine
			err := dec.Decode(&line)
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(Item{}, ErrSerialize.Wrapf(err, "decode record %d", n))
				return
			}
			if !yield(Item{ID: line.ID, Value: []byte(line.Value)}, nil) {
				return
			}
		}
	}
}

// JSONLinesFile opens path when iteration starts and closes it when it ends
func JSONLinesFile(path string) iter.Seq2[Item, error] {
	return func(yield func(Item, error) bool) {
		f, err := os.Open(path)
		if err != nil {
			yield(Item{}, err)
			return
		}
		defer f.Close()
		for item, err := range JSONLines(f) {
			if !yield(item, err) {
				return
			}
		}
	}
}
