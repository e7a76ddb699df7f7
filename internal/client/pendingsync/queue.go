// Package pendingsync хранит очередь подписанных транзакций, которые нужно донести
// до сервера. Журнал на диске единственный источник правды: каждая мутация
// переписывает файл целиком до того, как изменение станет видно.
package pendingsync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/ignatzorin/gig-escrow-backend/internal/client/api"
	"github.com/ignatzorin/gig-escrow-backend/internal/logger"
)

const DefaultMaxRetries = 5

var ErrEntryNotFound = errors.New("pendingsync: запись не найдена")

// Committer доносит запись до сервера.
type Committer interface {
	Commit(ctx context.Context, e Entry) error
}

type CommitFunc func(ctx context.Context, e Entry) error

func (f CommitFunc) Commit(ctx context.Context, e Entry) error { return f(ctx, e) }

type Queue struct {
	path       string
	maxRetries int

	mu      sync.Mutex
	entries []Entry

	drainMu sync.Mutex
}

type journal struct {
	Version int     `json:"version"`
	Entries []Entry `json:"entries"`
}

// Open читает журнал. Отсутствующий файл означает пустую очередь.
func Open(path string, maxRetries int) (*Queue, error) {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	q := &Queue{path: path, maxRetries: maxRetries}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return q, nil
	case err != nil:
		return nil, fmt.Errorf("pendingsync: чтение журнала: %w", err)
	}

	var j journal
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("pendingsync: журнал повреждён: %w", err)
	}
	for _, e := range j.Entries {
		if err := e.Validate(); err != nil {
			return nil, fmt.Errorf("pendingsync: запись %s: %w", e.ID, err)
		}
	}
	q.entries = j.Entries
	sortEntries(q.entries)
	return q, nil
}

func (q *Queue) MaxRetries() int { return q.maxRetries }

// Add сохраняет запись. Повтор той же подписи не создаёт вторую запись.
func (q *Queue) Add(e Entry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, cur := range q.entries {
		if cur.Signature == e.Signature {
			return nil
		}
	}
	next := append(cloneEntries(q.entries), e)
	sortEntries(next)
	return q.commitLocked(next)
}

// List возвращает копию записей в порядке создания.
func (q *Queue) List() []Entry {
	q.mu.Lock()
	defer q.mu.Unlock()
	return cloneEntries(q.entries)
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

func (q *Queue) Remove(id uuid.UUID) error {
	return q.mutate(id, func([]Entry, int) []Entry { return nil })
}

// RemoveBySignature удаляет запись по подписи. Отсутствие записи не ошибка.
func (q *Queue) RemoveBySignature(signature string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, e := range q.entries {
		if e.Signature == signature {
			return q.removeLocked(e.ID)
		}
	}
	return nil
}

// Requeue сбрасывает счётчик попыток у застрявшей записи.
func (q *Queue) Requeue(id uuid.UUID) error {
	return q.mutate(id, func(next []Entry, i int) []Entry {
		next[i].Retries = 0
		return next
	})
}

// Stalled возвращает записи, которые Drain пропускает.
func (q *Queue) Stalled() []Entry {
	var out []Entry
	for _, e := range q.List() {
		if e.Stalled(q.maxRetries) {
			out = append(out, e)
		}
	}
	return out
}

// DrainReport описывает итог одного прохода.
type DrainReport struct {
	Committed  int
	Duplicates int
	Failed     int
	Stalled    int
}

// Drain проходит записи строго по очереди в порядке создания. Успех или
// DUPLICATE_SIGNATURE удаляют запись, любая другая ошибка увеличивает
// retries. Застрявшие записи пропускаются, но не удаляются.
func (q *Queue) Drain(ctx context.Context, c Committer) (DrainReport, error) {
	q.drainMu.Lock()
	defer q.drainMu.Unlock()

	var rep DrainReport
	for _, e := range q.List() {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		if e.Stalled(q.maxRetries) {
			rep.Stalled++
			continue
		}

		log := logger.ForSignature(logger.ForGig(e.GigID, string(e.Kind)), e.Signature)
		err := c.Commit(ctx, e)
		switch {
		case err == nil:
			rep.Committed++
			if rmErr := q.Remove(e.ID); rmErr != nil && !errors.Is(rmErr, ErrEntryNotFound) {
				return rep, rmErr
			}
		case api.IsDuplicate(err):
			rep.Duplicates++
			log.Debug("pendingsync: подпись уже учтена сервером")
			if rmErr := q.Remove(e.ID); rmErr != nil && !errors.Is(rmErr, ErrEntryNotFound) {
				return rep, rmErr
			}
		default:
			rep.Failed++
			log.WithError(err).Warn("pendingsync: коммит не удался")
			if incErr := q.incRetries(e.ID); incErr != nil && !errors.Is(incErr, ErrEntryNotFound) {
				return rep, incErr
			}
		}
	}
	return rep, nil
}

func (q *Queue) incRetries(id uuid.UUID) error {
	return q.mutate(id, func(next []Entry, i int) []Entry {
		next[i].Retries++
		return next
	})
}

// mutate применяет fn к копии записей; nil от fn означает удаление записи.
func (q *Queue) mutate(id uuid.UUID, fn func(next []Entry, i int) []Entry) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	i := q.indexLocked(id)
	if i < 0 {
		return ErrEntryNotFound
	}
	next := fn(cloneEntries(q.entries), i)
	if next == nil {
		return q.removeLocked(id)
	}
	return q.commitLocked(next)
}

func (q *Queue) removeLocked(id uuid.UUID) error {
	i := q.indexLocked(id)
	if i < 0 {
		return ErrEntryNotFound
	}
	next := make([]Entry, 0, len(q.entries)-1)
	next = append(next, q.entries[:i]...)
	next = append(next, q.entries[i+1:]...)
	return q.commitLocked(next)
}

func (q *Queue) indexLocked(id uuid.UUID) int {
	for i, e := range q.entries {
		if e.ID == id {
			return i
		}
	}
	return -1
}

// commitLocked пишет журнал и только потом меняет состояние в памяти.
func (q *Queue) commitLocked(next []Entry) error {
	if err := writeAtomic(q.path, journal{Version: 1, Entries: next}); err != nil {
		return err
	}
	q.entries = next
	return nil
}

func writeAtomic(path string, j journal) error {
	data, err := json.MarshalIndent(j, "", "  ")
	if err != nil {
		return fmt.Errorf("pendingsync: сериализация: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("pendingsync: каталог журнала: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("pendingsync: временный файл: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("pendingsync: запись журнала: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("pendingsync: fsync журнала: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("pendingsync: закрытие журнала: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("pendingsync: замена журнала: %w", err)
	}
	return nil
}

func cloneEntries(in []Entry) []Entry {
	out := make([]Entry, len(in))
	copy(out, in)
	return out
}

func sortEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})
}
