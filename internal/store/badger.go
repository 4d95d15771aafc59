package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"sync"
	"sync/atomic"

	"github.com/dgraph-io/badger/v4"
	"github.com/timshannon/badgerhold/v4"

	"jobmate/jobfeed-service/internal/logger"
	"jobmate/jobfeed-service/internal/model"
)

// Badger is an embedded Store backed by badgerhold. Writers are serialized
// by a mutex so NumericID order always equals commit order; readers use
// Badger's snapshot isolation and never block on writers.
//
// Rows are never deleted, so committed ids are exactly 1..lastID. Unfiltered
// pages are read by id range; filtered pages scan the matching rows.
type Badger struct {
	db  *badgerhold.Store
	log *logger.Logger

	mu     sync.Mutex    // serializes write transactions
	lastID atomic.Uint64 // highest committed NumericID
}

// OpenBadger opens (or creates) the store under dir.
func OpenBadger(dir string, log *logger.Logger) (*Badger, error) {
	if log == nil {
		log = logger.Nop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create badger dir: %w", err)
	}

	opts := badgerhold.DefaultOptions
	opts.Dir = dir
	opts.ValueDir = dir
	opts.Logger = nil

	db, err := badgerhold.Open(opts)
	if err != nil {
		return nil, unavailable("open", err)
	}

	b := &Badger{db: db, log: log}
	if err := b.loadLastID(); err != nil {
		db.Close()
		return nil, err
	}
	log.Debug().Str("path", dir).Uint64("last_id", b.lastID.Load()).Msg("Badger listing store opened")
	return b, nil
}

func (b *Badger) loadLastID() error {
	var last []model.JobListing
	q := badgerhold.Where("NumericID").Gt(uint64(0)).SortBy("NumericID").Reverse().Limit(1)
	if err := b.db.Find(&last, q); err != nil {
		return unavailable("load last id", err)
	}
	if len(last) == 1 {
		b.lastID.Store(last[0].NumericID)
	}
	return nil
}

// InsertBatch implements Store. The batch runs in one Badger transaction
// unless it outgrows Badger's transaction size limit; it is then committed
// in consecutive chunks, each holding whole rows. On error, chunks already
// committed stay and a retry of the batch only inserts what is missing.
func (b *Badger) InsertBatch(ctx context.Context, listings []model.JobListing) ([]InsertResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(listings) == 0 {
		return nil, nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	results := make([]InsertResult, len(listings))
	next := b.lastID.Load()
	batchKeys := make(map[string]uint64, len(listings))

	tx := b.db.Badger().NewTransaction(true)
	defer func() { tx.Discard() }()
	var pending []model.JobListing

	for i := range listings {
		key := listings[i].IdentityKey
		if id, ok := batchKeys[key]; ok {
			results[i] = InsertResult{NumericID: id}
			continue
		}

		var existing []model.JobListing
		q := badgerhold.Where("IdentityKey").Eq(key).Index("IdentityKey").Limit(1)
		if err := b.db.TxFind(tx, &existing, q); err != nil {
			return nil, unavailable("insert batch", fmt.Errorf("lookup identity: %w", err))
		}
		if len(existing) > 0 {
			results[i] = InsertResult{NumericID: existing[0].NumericID}
			batchKeys[key] = existing[0].NumericID
			continue
		}

		row := listings[i]
		row.NumericID = next + 1
		if row.Emails == nil {
			row.Emails = []string{}
		}
		err := b.db.TxInsert(tx, row.NumericID, &row)
		if errors.Is(err, badger.ErrTxnTooBig) {
			// The failed insert may have left partial writes in tx, so the
			// chunk is replayed into a fresh transaction before committing.
			tx.Discard()
			if tx, err = b.commitChunk(pending); err != nil {
				return nil, unavailable("insert batch", err)
			}
			b.lastID.Store(next)
			b.log.Debug().Int("rows", len(pending)).Uint64("last_id", next).Msg("Committed oversized batch chunk")
			pending = pending[:0]
			err = b.db.TxInsert(tx, row.NumericID, &row)
		}
		if err != nil {
			return nil, unavailable("insert batch", fmt.Errorf("insert listing: %w", err))
		}

		next = row.NumericID
		pending = append(pending, row)
		results[i] = InsertResult{NumericID: next, Inserted: true}
		batchKeys[key] = next
	}

	if err := tx.Commit(); err != nil {
		return nil, unavailable("insert batch", err)
	}
	b.lastID.Store(next)
	return results, nil
}

// commitChunk writes rows in their own transaction and returns a fresh write
// transaction for the rest of the batch. Caller holds b.mu.
func (b *Badger) commitChunk(rows []model.JobListing) (*badger.Txn, error) {
	bdb := b.db.Badger()
	chunk := bdb.NewTransaction(true)
	defer chunk.Discard()
	for i := range rows {
		if err := b.db.TxInsert(chunk, rows[i].NumericID, &rows[i]); err != nil {
			return bdb.NewTransaction(true), fmt.Errorf("replay chunk: %w", err)
		}
	}
	if err := chunk.Commit(); err != nil {
		return bdb.NewTransaction(true), fmt.Errorf("commit chunk: %w", err)
	}
	return bdb.NewTransaction(true), nil
}

// Query implements Reader.
func (b *Badger) Query(ctx context.Context, f Filter, p Pagination) ([]model.JobListing, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f == (Filter{}) && p.Limit > 0 {
		return b.pageByID(p)
	}

	q := b.filterQuery(f).SortBy("NumericID")
	if p.Offset > 0 {
		q = q.Skip(p.Offset)
	}
	if p.Limit > 0 {
		q = q.Limit(p.Limit)
	}

	var out []model.JobListing
	if err := b.db.Find(&out, q); err != nil {
		return nil, unavailable("query", err)
	}
	if out == nil {
		out = []model.JobListing{}
	}
	return out, nil
}

// pageByID reads an unfiltered page straight from its id range, so the cost
// follows the page size rather than the store size.
func (b *Badger) pageByID(p Pagination) ([]model.JobListing, error) {
	out := []model.JobListing{}
	first := uint64(max(p.Offset, 0)) + 1
	last := min(first+uint64(p.Limit)-1, b.lastID.Load())

	err := b.db.Badger().View(func(tx *badger.Txn) error {
		for id := first; id <= last; id++ {
			var l model.JobListing
			if err := b.db.TxGet(tx, id, &l); err != nil {
				if errors.Is(err, badgerhold.ErrNotFound) {
					break
				}
				return err
			}
			out = append(out, l)
		}
		return nil
	})
	if err != nil {
		return nil, unavailable("query", err)
	}
	return out, nil
}

// Count implements Reader.
func (b *Badger) Count(ctx context.Context, f Filter) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if f == (Filter{}) {
		return int(b.lastID.Load()), nil
	}
	n, err := b.db.Count(&model.JobListing{}, b.filterQuery(f))
	if err != nil {
		return 0, unavailable("count", err)
	}
	return int(n), nil
}

func (b *Badger) filterQuery(f Filter) *badgerhold.Query {
	q := badgerhold.Where("NumericID").Gt(uint64(0))
	if f.Title != "" {
		q = q.And("Title").RegExp(containsFold(f.Title))
	}
	if f.Location != "" {
		q = q.And("Location").RegExp(containsFold(f.Location))
	}
	if f.Source != "" {
		q = q.And("Source").Eq(f.Source)
	}
	if f.Status != "" {
		q = q.And("Status").Eq(f.Status)
	}
	return q
}

func containsFold(term string) *regexp.Regexp {
	return regexp.MustCompile("(?i)" + regexp.QuoteMeta(term))
}

// Get implements Reader.
func (b *Badger) Get(ctx context.Context, id uint64) (model.JobListing, error) {
	if err := ctx.Err(); err != nil {
		return model.JobListing{}, err
	}
	var l model.JobListing
	if err := b.db.Get(id, &l); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return model.JobListing{}, ErrNotFound
		}
		return model.JobListing{}, unavailable("get", err)
	}
	return l, nil
}

// UpdateStatus implements Store.
func (b *Badger) UpdateStatus(ctx context.Context, id uint64, status model.Status) (model.JobListing, error) {
	if err := ctx.Err(); err != nil {
		return model.JobListing{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	var l model.JobListing
	err := b.db.Badger().Update(func(tx *badger.Txn) error {
		if err := b.db.TxGet(tx, id, &l); err != nil {
			return err
		}
		l.Status = status
		return b.db.TxUpdate(tx, id, &l)
	})
	if err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return model.JobListing{}, ErrNotFound
		}
		return model.JobListing{}, unavailable("update status", err)
	}
	return l, nil
}

// Close implements Store.
func (b *Badger) Close() error {
	return b.db.Close()
}
