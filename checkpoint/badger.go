package checkpoint

import (
	"context"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v3"
	"github.com/goccy/go-json"

	"github.com/flowstack/orchestrator/core"
)

// Badger is a durable Checkpointer backed by an embedded badger/v3
// key-value store. Keys are structured for prefix scans: checkpoints
// under "cp:<threadID>:<zero-padded step>", steps under
// "step:<executionID>:<zero-padded step>". Grounded on eleven-am-graft's
// raft storage (DefaultOptions tuning) and adapters/queue/cleaner.go
// (Seek/ValidForPrefix scan idiom).
type Badger struct {
	db *badger.DB

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// BadgerOptions tunes the embedded store; zero values fall back to
// badger.DefaultOptions(dir).
type BadgerOptions struct {
	Dir              string
	MemTableSize     int64
	ValueLogFileSize int64
}

// OpenBadger opens (creating if absent) a badger store at opts.Dir.
func OpenBadger(opts BadgerOptions) (*Badger, error) {
	if opts.Dir == "" {
		return nil, fmt.Errorf("checkpoint: badger dir is required")
	}
	bo := badger.DefaultOptions(opts.Dir).WithLogger(nil)
	if opts.MemTableSize > 0 {
		bo = bo.WithMemTableSize(opts.MemTableSize)
	}
	if opts.ValueLogFileSize > 0 {
		bo = bo.WithValueLogFileSize(opts.ValueLogFileSize)
	}
	db, err := badger.Open(bo)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: open badger at %q: %w", opts.Dir, err)
	}
	return &Badger{db: db, locks: make(map[string]*sync.Mutex)}, nil
}

// Close releases the underlying store.
func (b *Badger) Close() error { return b.db.Close() }

func (b *Badger) threadLock(threadID string) *sync.Mutex {
	b.mu.Lock()
	defer b.mu.Unlock()
	l, ok := b.locks[threadID]
	if !ok {
		l = &sync.Mutex{}
		b.locks[threadID] = l
	}
	return l
}

func checkpointKey(threadID string, stepIndex int) []byte {
	return []byte(fmt.Sprintf("cp:%s:%010d", threadID, stepIndex))
}

func checkpointPrefix(threadID string) []byte {
	return []byte(fmt.Sprintf("cp:%s:", threadID))
}

func stepKey(executionID string, stepIndex int) []byte {
	return []byte(fmt.Sprintf("step:%s:%010d", executionID, stepIndex))
}

func stepPrefix(executionID string) []byte {
	return []byte(fmt.Sprintf("step:%s:", executionID))
}

// Save first reads the newest existing checkpoint key under the same
// transaction to enforce strictly increasing StepIndex atomically, then
// writes cp under its zero-padded step key so lexicographic key order
// matches step order.
func (b *Badger) Save(_ context.Context, cp core.Checkpoint) error {
	lock := b.threadLock(cp.ThreadID)
	lock.Lock()
	defer lock.Unlock()

	return b.db.Update(func(txn *badger.Txn) error {
		prefix := checkpointPrefix(cp.ThreadID)
		it := txn.NewIterator(badger.IteratorOptions{Reverse: true, Prefix: prefix})
		defer it.Close()

		seekKey := append(append([]byte{}, prefix...), 0xFF)
		it.Seek(seekKey)
		if it.ValidForPrefix(prefix) {
			var prev core.Checkpoint
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &prev)
			}); err != nil {
				return err
			}
			if cp.StepIndex <= prev.StepIndex {
				return fmt.Errorf("checkpoint: non-increasing step_index %d for thread %q (last was %d)", cp.StepIndex, cp.ThreadID, prev.StepIndex)
			}
		}

		data, err := json.Marshal(cp)
		if err != nil {
			return err
		}
		return txn.Set(checkpointKey(cp.ThreadID, cp.StepIndex), data)
	})
}

// Load scans threadID's checkpoint prefix in reverse to find the newest
// step_index without needing a separate index structure.
func (b *Badger) Load(_ context.Context, threadID string) (core.Checkpoint, bool, error) {
	var out core.Checkpoint
	found := false

	err := b.db.View(func(txn *badger.Txn) error {
		prefix := checkpointPrefix(threadID)
		it := txn.NewIterator(badger.IteratorOptions{Reverse: true, Prefix: prefix})
		defer it.Close()

		seekKey := append(append([]byte{}, prefix...), 0xFF)
		it.Seek(seekKey)
		if !it.ValidForPrefix(prefix) {
			return nil
		}
		found = true
		return it.Item().Value(func(val []byte) error {
			return json.Unmarshal(val, &out)
		})
	})
	if err != nil {
		return core.Checkpoint{}, false, err
	}
	return out, found, nil
}

// AppendStep writes step under its zero-padded step key followed by its
// node id, so the nodes of one super-step (which share a StepIndex) each
// keep their own record; steps are never overwritten once written.
func (b *Badger) AppendStep(_ context.Context, step core.Step) error {
	data, err := json.Marshal(step)
	if err != nil {
		return err
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(append(stepKey(step.ExecutionID, step.StepIndex), []byte(":"+step.NodeID)...), data)
	})
}

// Steps scans executionID's step prefix in forward (lexicographic, hence
// step_index) order.
func (b *Badger) Steps(_ context.Context, executionID string) ([]core.Step, error) {
	var out []core.Step
	err := b.db.View(func(txn *badger.Txn) error {
		prefix := stepPrefix(executionID)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var s core.Step
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &s)
			}); err != nil {
				return err
			}
			out = append(out, s)
		}
		return nil
	})
	return out, err
}

// DeleteThread deletes every checkpoint under threadID's prefix and every
// step under each execution id's prefix, in one transaction.
func (b *Badger) DeleteThread(_ context.Context, threadID string, executionIDs []string) error {
	lock := b.threadLock(threadID)
	lock.Lock()
	defer lock.Unlock()

	return b.db.Update(func(txn *badger.Txn) error {
		if err := deletePrefix(txn, checkpointPrefix(threadID)); err != nil {
			return err
		}
		for _, execID := range executionIDs {
			if err := deletePrefix(txn, stepPrefix(execID)); err != nil {
				return err
			}
		}
		return nil
	})
}

func deletePrefix(txn *badger.Txn, prefix []byte) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)
	defer it.Close()

	var keys [][]byte
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		keys = append(keys, append([]byte{}, it.Item().Key()...))
	}
	for _, k := range keys {
		if err := txn.Delete(k); err != nil {
			return err
		}
	}
	return nil
}
