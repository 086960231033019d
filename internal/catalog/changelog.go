package catalog

import (
	"context"
	"fmt"
	"iter"
	"time"
)

// ChangelogEntry records one accepted edit group. Sequence numbers strictly
// increase in commit order and are never reused.
type ChangelogEntry struct {
	Seq         int64      `json:"seq"`
	EditGroupID string     `json:"editgroup_id"`
	Timestamp   time.Time  `json:"timestamp"`
	EditGroup   *EditGroup `json:"editgroup,omitempty"`
}

// HistoryEntry is one accepted edit of an identifier together with the
// changelog entry that made it visible.
type HistoryEntry struct {
	Seq         int64     `json:"seq"`
	Timestamp   time.Time `json:"timestamp"`
	EditorID    string    `json:"editor_id"`
	Description string    `json:"description"`
	Edit        *Edit     `json:"edit"`
}

// Head returns the latest changelog sequence number, or 0 if nothing has been accepted.
func (s *Service) Head(ctx context.Context) (int64, error) {
	var head int64
	err := s.store.View(ctx, func(r Reader) error {
		var err error
		head, err = r.ChangelogHead(ctx)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("reading changelog head: %w", err)
	}
	return head, nil
}

// GetChangelogEntry returns one changelog entry with its edit group and edits.
func (s *Service) GetChangelogEntry(ctx context.Context, seq int64) (*ChangelogEntry, error) {
	var entry *ChangelogEntry
	err := s.store.View(ctx, func(r Reader) error {
		var err error
		entry, err = r.GetChangelogEntry(ctx, seq)
		if err != nil {
			return err
		}
		group, err := r.GetEditGroup(ctx, entry.EditGroupID)
		if err != nil {
			return err
		}
		group.Edits, err = r.ListEdits(ctx, group.ID)
		if err != nil {
			return err
		}
		entry.EditGroup = group
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reading changelog entry %d: %w", seq, err)
	}
	return entry, nil
}

// ReadFrom returns the changelog from seq (inclusive) to the head as observed
// page by page. The sequence is lazy and finite; iterate again from the last
// seen sequence number + 1 to catch up later.
func (s *Service) ReadFrom(ctx context.Context, seq int64) iter.Seq2[*ChangelogEntry, error] {
	return func(yield func(*ChangelogEntry, error) bool) {
		next := seq
		for {
			var page []*ChangelogEntry
			err := s.store.View(ctx, func(r Reader) error {
				var err error
				page, err = r.ListChangelog(ctx, next, s.pageSize)
				return err
			})
			if err != nil {
				yield(nil, fmt.Errorf("reading changelog from %d: %w", next, err))
				return
			}
			for _, e := range page {
				if !yield(e, nil) {
					return
				}
				next = e.Seq + 1
			}
			if len(page) < s.pageSize {
				return
			}
		}
	}
}

// Consume feeds changelog entries to fn, resuming after the consumer's saved
// cursor. The cursor advances after every entry fn accepts, so a restarted
// consumer sees each entry at least once. It returns the number of entries
// handled.
func (s *Service) Consume(ctx context.Context, consumer string, fn func(*ChangelogEntry) error) (int, error) {
	if consumer == "" {
		return 0, &ValidationError{Field: "consumer", Reason: "required"}
	}

	var cursor int64
	err := s.store.View(ctx, func(r Reader) error {
		var err error
		cursor, err = r.GetCursor(ctx, consumer)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("loading cursor for %s: %w", consumer, err)
	}

	count := 0
	for entry, err := range s.ReadFrom(ctx, cursor+1) {
		if err != nil {
			return count, err
		}
		if err := fn(entry); err != nil {
			return count, fmt.Errorf("consumer %s at seq %d: %w", consumer, entry.Seq, err)
		}
		err := s.store.Update(ctx, func(tx Tx) error {
			return tx.SetCursor(ctx, consumer, entry.Seq, s.clock.Now())
		})
		if err != nil {
			return count, fmt.Errorf("saving cursor for %s: %w", consumer, err)
		}
		count++
	}

	if count > 0 {
		s.logger.Debug("changelog consumed", "consumer", consumer, "count", count)
	}
	return count, nil
}
