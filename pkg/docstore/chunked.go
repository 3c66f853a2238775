package docstore

import "context"

// ChunkedWriter spreads an arbitrary number of writes over sequential batches of at most
// MaxBatchWrites operations. Batches are independent: a failed flush leaves earlier ones
// committed.
type ChunkedWriter struct {
	store     Store
	current   WriteBatch
	committed int
	batches   int
}

// NewChunkedWriter starts a writer over store.
func NewChunkedWriter(store Store) *ChunkedWriter {
	return &ChunkedWriter{store: store, current: store.Batch()}
}

// Update queues a patch, flushing first when the current batch is full.
func (w *ChunkedWriter) Update(ctx context.Context, ref Ref, fields Fields) error {
	if err := w.ensureRoom(ctx); err != nil {
		return err
	}
	return w.current.Update(ref, fields)
}

// Set queues a full overwrite, flushing first when the current batch is full.
func (w *ChunkedWriter) Set(ctx context.Context, ref Ref, data interface{}) error {
	if err := w.ensureRoom(ctx); err != nil {
		return err
	}
	return w.current.Set(ref, data)
}

func (w *ChunkedWriter) ensureRoom(ctx context.Context) error {
	if w.current.Len() < MaxBatchWrites {
		return nil
	}
	return w.Flush(ctx)
}

// Flush commits pending writes.
func (w *ChunkedWriter) Flush(ctx context.Context) error {
	n := w.current.Len()
	if n == 0 {
		return nil
	}
	if err := w.current.Commit(ctx); err != nil {
		w.current = w.store.Batch()
		return err
	}
	w.committed += n
	w.batches++
	w.current = w.store.Batch()
	return nil
}

// Committed reports how many writes have been committed so far.
func (w *ChunkedWriter) Committed() int {
	return w.committed
}

// Batches reports how many batches have been committed so far.
func (w *ChunkedWriter) Batches() int {
	return w.batches
}
