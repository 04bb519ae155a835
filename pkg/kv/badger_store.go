package kv

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// BadgerStore is the Store implementation backing edgestore. Badger's SSI
// (serializable snapshot isolation) transactions give us a genuine
// compare-and-set: a txn that reads a key and later writes it fails to
// commit (badger.ErrConflict) if another transaction wrote the same key in
// between, which CompareAndSet treats as "expected value didn't match".
//
// Every op is dispatched onto a small worker pool so callers never block on
// the calling goroutine.
type BadgerStore struct {
	db        *badger.DB
	work      chan func()
	closeOnce chan struct{}
}

// Options configures the Badger-backed store.
type Options struct {
	DataDir    string // empty = in-memory
	SyncWrites bool
	Workers    int // default 8
}

// Open creates a new BadgerStore.
func Open(opts Options) (*BadgerStore, error) {
	var badgerOpts badger.Options
	if opts.DataDir == "" {
		badgerOpts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		badgerOpts = badger.DefaultOptions(opts.DataDir)
	}
	badgerOpts = badgerOpts.WithSyncWrites(opts.SyncWrites).WithLogger(nil)

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("opening badger: %w", err)
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = 8
	}
	s := &BadgerStore{
		db:        db,
		work:      make(chan func(), 256),
		closeOnce: make(chan struct{}),
	}
	for i := 0; i < workers; i++ {
		go s.runWorker()
	}
	return s, nil
}

func (s *BadgerStore) runWorker() {
	for {
		select {
		case fn := <-s.work:
			fn()
		case <-s.closeOnce:
			return
		}
	}
}

func (s *BadgerStore) dispatch(fn func()) {
	select {
	case s.work <- fn:
	case <-s.closeOnce:
	}
}

// physicalKey packs row/family/qualifier into one Badger key, with 0x1f
// (ASCII unit separator) between segments. The separator is not escaped;
// codec-produced rows and qualifiers can themselves contain 0x1f bytes.
func physicalKey(row Row, family Family, qualifier Qualifier) []byte {
	buf := make([]byte, 0, len(row)+len(family)+len(qualifier)+2)
	buf = append(buf, row...)
	buf = append(buf, 0x1f)
	buf = append(buf, family...)
	buf = append(buf, 0x1f)
	buf = append(buf, qualifier...)
	return buf
}

func rowFamilyPrefix(row Row, family Family) []byte {
	buf := make([]byte, 0, len(row)+len(family)+2)
	buf = append(buf, row...)
	buf = append(buf, 0x1f)
	buf = append(buf, family...)
	buf = append(buf, 0x1f)
	return buf
}

// qualifierOf strips the row/family prefix from a physical key.
func qualifierOf(key []byte, prefix []byte) Qualifier {
	return Qualifier(key[len(prefix):])
}

// envelope is the on-disk value format: an 8-byte big-endian unix-nano
// timestamp followed by the caller's raw value bytes.
func encodeEnvelope(value []byte, ts time.Time) []byte {
	buf := make([]byte, 8+len(value))
	binary.BigEndian.PutUint64(buf[:8], uint64(ts.UnixNano()))
	copy(buf[8:], value)
	return buf
}

func decodeEnvelope(raw []byte) ([]byte, time.Time) {
	if len(raw) < 8 {
		return nil, time.Time{}
	}
	ts := time.Unix(0, int64(binary.BigEndian.Uint64(raw[:8])))
	return raw[8:], ts
}

func (s *BadgerStore) Get(req GetRequest) *Future[GetResult] {
	f, resolve := NewFuture[GetResult]()
	s.dispatch(func() {
		var cells []Cell
		err := s.db.View(func(txn *badger.Txn) error {
			if len(req.Qualifiers) > 0 {
				for _, q := range req.Qualifiers {
					item, err := txn.Get(physicalKey(req.Row, req.Family, q))
					if err == badger.ErrKeyNotFound {
						continue
					}
					if err != nil {
						return err
					}
					var raw []byte
					if err := item.Value(func(v []byte) error {
						raw = append([]byte(nil), v...)
						return nil
					}); err != nil {
						return err
					}
					val, ts := decodeEnvelope(raw)
					if inTsWindow(ts, req.MinTs, req.MaxTs) {
						cells = append(cells, Cell{Row: req.Row, Family: req.Family, Qualifier: q, Value: val, Ts: ts})
					}
				}
				return nil
			}

			prefix := rowFamilyPrefix(req.Row, req.Family)
			it := txn.NewIterator(badger.DefaultIteratorOptions)
			defer it.Close()
			skipped := 0
			for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
				item := it.Item()
				q := qualifierOf(item.KeyCopy(nil), prefix)
				if len(req.ColMin) > 0 && bytes.Compare(q, req.ColMin) < 0 {
					continue
				}
				if len(req.ColMax) > 0 && bytes.Compare(q, req.ColMax) > 0 {
					continue
				}
				var raw []byte
				if err := item.Value(func(v []byte) error {
					raw = append([]byte(nil), v...)
					return nil
				}); err != nil {
					return err
				}
				val, ts := decodeEnvelope(raw)
				if !inTsWindow(ts, req.MinTs, req.MaxTs) {
					continue
				}
				if req.Offset() > skipped {
					skipped++
					continue
				}
				cells = append(cells, Cell{Row: req.Row, Family: req.Family, Qualifier: q, Value: val, Ts: ts})
				if req.Limit() > 0 && len(cells) >= req.Limit() {
					break
				}
			}
			return nil
		})
		resolve(GetResult{Cells: cells}, err)
	})
	return f
}

func inTsWindow(ts, min, max time.Time) bool {
	if !min.IsZero() && ts.Before(min) {
		return false
	}
	if !max.IsZero() && ts.After(max) {
		return false
	}
	return true
}

func (s *BadgerStore) Put(row Row, family Family, qualifier Qualifier, value []byte, ts time.Time, buffered bool) *Future[struct{}] {
	f, resolve := NewFuture[struct{}]()
	s.dispatch(func() {
		err := s.db.Update(func(txn *badger.Txn) error {
			return txn.Set(physicalKey(row, family, qualifier), encodeEnvelope(value, ts))
		})
		if err == nil && !buffered {
			err = s.db.Sync()
		}
		resolve(struct{}{}, err)
	})
	return f
}

func (s *BadgerStore) Delete(row Row, family Family, qualifier Qualifier, ts time.Time, buffered bool) *Future[struct{}] {
	f, resolve := NewFuture[struct{}]()
	s.dispatch(func() {
		err := s.db.Update(func(txn *badger.Txn) error {
			return txn.Delete(physicalKey(row, family, qualifier))
		})
		if err == nil && !buffered {
			err = s.db.Sync()
		}
		resolve(struct{}{}, err)
	})
	return f
}

func (s *BadgerStore) AtomicIncrement(row Row, family Family, qualifier Qualifier, prefix []byte, amount int64, buffered bool) *Future[int64] {
	f, resolve := NewFuture[int64]()
	s.dispatch(func() {
		var result int64
		// Badger has no native increment; emulate with a conflict-checked
		// read-modify-write loop, retrying on optimistic-concurrency
		// conflicts from concurrent incrementers of the same cell.
		for attempt := 0; attempt < 16; attempt++ {
			err := s.db.Update(func(txn *badger.Txn) error {
				key := physicalKey(row, family, qualifier)
				var current int64
				item, err := txn.Get(key)
				switch {
				case err == badger.ErrKeyNotFound:
					current = 0
				case err != nil:
					return err
				default:
					var raw []byte
					if verr := item.Value(func(v []byte) error {
						raw = append([]byte(nil), v...)
						return nil
					}); verr != nil {
						return verr
					}
					val, _ := decodeEnvelope(raw)
					current = decodeCounter(val, len(prefix))
				}
				result = current + amount
				buf := make([]byte, len(prefix)+8)
				copy(buf, prefix)
				binary.BigEndian.PutUint64(buf[len(prefix):], uint64(result))
				return txn.Set(key, encodeEnvelope(buf, time.Now()))
			})
			if err == nil {
				resolve(result, nil)
				return
			}
			if err != badger.ErrConflict {
				resolve(0, err)
				return
			}
		}
		resolve(0, fmt.Errorf("kv: AtomicIncrement exhausted retries on conflict"))
	})
	return f
}

func decodeCounter(val []byte, prefixLen int) int64 {
	if len(val) < prefixLen+8 {
		return 0
	}
	return int64(binary.BigEndian.Uint64(val[prefixLen : prefixLen+8]))
}

func (s *BadgerStore) CompareAndSet(row Row, family Family, qualifier Qualifier, expected, newValue []byte, ts time.Time) *Future[bool] {
	f, resolve := NewFuture[bool]()
	s.dispatch(func() {
		var ok bool
		err := s.db.Update(func(txn *badger.Txn) error {
			key := physicalKey(row, family, qualifier)
			item, err := txn.Get(key)
			var current []byte
			switch {
			case err == badger.ErrKeyNotFound:
				current = nil
			case err != nil:
				return err
			default:
				var raw []byte
				if verr := item.Value(func(v []byte) error {
					raw = append([]byte(nil), v...)
					return nil
				}); verr != nil {
					return verr
				}
				current, _ = decodeEnvelope(raw)
			}
			if !bytes.Equal(current, expected) {
				ok = false
				return nil
			}
			ok = true
			return txn.Set(key, encodeEnvelope(newValue, ts))
		})
		if err == badger.ErrConflict {
			// Another writer raced us between read and write: treat as a
			// failed CAS, not a hard error, so the Commit Engine reports it
			// as a contended or failed step like any other lost CAS.
			resolve(false, nil)
			return
		}
		resolve(ok, err)
	})
	return f
}

func (s *BadgerStore) Flush() *Future[struct{}] {
	f, resolve := NewFuture[struct{}]()
	s.dispatch(func() {
		resolve(struct{}{}, s.db.Sync())
	})
	return f
}

func (s *BadgerStore) Close() error {
	close(s.closeOnce)
	return s.db.Close()
}
