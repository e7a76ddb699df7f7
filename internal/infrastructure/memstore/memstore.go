// Package memstore содержит хранилище в памяти с той же семантикой, что и persistence:
// транзакции сериализуются одним мьютексом вместо блокировки строки.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ignatzorin/gig-escrow-backend/internal/domain/entity"
	"github.com/ignatzorin/gig-escrow-backend/internal/domain/repository"
	"github.com/ignatzorin/gig-escrow-backend/internal/domain/valueobject"
	"github.com/ignatzorin/gig-escrow-backend/internal/pkg/apperror"
)

type Store struct {
	mu       sync.Mutex
	gigs     map[uuid.UUID]entity.Gig
	ledger   []entity.LedgerEntry
	bySig    map[string]int
	disputes map[uuid.UUID]entity.Dispute
	config   *entity.PlatformConfig
	users    map[uuid.UUID]entity.User
}

func New() *Store {
	return &Store{
		gigs:     map[uuid.UUID]entity.Gig{},
		bySig:    map[string]int{},
		disputes: map[uuid.UUID]entity.Dispute{},
		users:    map[uuid.UUID]entity.User{},
	}
}

func (s *Store) Gigs() *GigStore         { return &GigStore{s} }
func (s *Store) Ledger() *LedgerStore     { return &LedgerStore{s} }
func (s *Store) Disputes() *DisputeStore  { return &DisputeStore{s} }
func (s *Store) Users() *UserStore        { return &UserStore{s} }
func (s *Store) Config() *ConfigStore     { return &ConfigStore{s} }

// AddUser регистрирует пользователя с кошельком.
func (s *Store) AddUser(u entity.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

// LedgerLen возвращает число записей журнала.
func (s *Store) LedgerLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ledger)
}

type GigStore struct{ s *Store }

var _ repository.GigRepository = (*GigStore)(nil)

func (g *GigStore) Create(_ context.Context, gig *entity.Gig) error {
	g.s.mu.Lock()
	defer g.s.mu.Unlock()
	if _, ok := g.s.gigs[gig.ID]; ok {
		return apperror.New(apperror.ErrCodeConflict, "задание уже существует")
	}
	g.s.gigs[gig.ID] = *gig
	return nil
}

func (g *GigStore) FindByID(_ context.Context, id uuid.UUID) (*entity.Gig, error) {
	g.s.mu.Lock()
	defer g.s.mu.Unlock()
	gig, ok := g.s.gigs[id]
	if !ok {
		return nil, apperror.ErrGigNotFound
	}
	return &gig, nil
}

func (g *GigStore) List(_ context.Context, f repository.GigFilter) ([]*entity.Gig, int, error) {
	g.s.mu.Lock()
	defer g.s.mu.Unlock()

	var all []*entity.Gig
	for _, gig := range g.s.gigs {
		gig := gig
		if f.Status != "" && gig.Status != f.Status {
			continue
		}
		if f.PosterID != nil && gig.PosterID != *f.PosterID {
			continue
		}
		if f.WorkerID != nil && (gig.WorkerID == nil || *gig.WorkerID != *f.WorkerID) {
			continue
		}
		if f.City != "" && gig.City != f.City {
			continue
		}
		if f.Category != "" && gig.Category != f.Category {
			continue
		}
		all = append(all, &gig)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	total := len(all)
	if f.Offset > 0 {
		if f.Offset >= len(all) {
			all = nil
		} else {
			all = all[f.Offset:]
		}
	}
	if f.Limit > 0 && len(all) > f.Limit {
		all = all[:f.Limit]
	}
	return all, total, nil
}

func (g *GigStore) Transition(_ context.Context, p repository.TransitionParams) (*entity.Gig, error) {
	s := g.s
	s.mu.Lock()
	defer s.mu.Unlock()

	gig, ok := s.gigs[p.GigID]
	if !ok {
		return nil, apperror.ErrGigNotFound
	}

	if p.Ledger != nil {
		if _, seen := s.bySig[p.Ledger.Signature]; seen {
			return nil, apperror.ErrDuplicateSignature
		}
		if p.OncePerGig && s.hasKind(p.GigID, p.Ledger.Kind) {
			return nil, apperror.New(apperror.ErrCodeConflict, fmt.Sprintf("операция %s по заданию уже выполнена", p.Action))
		}
	}

	if err := p.Apply(&gig); err != nil {
		return nil, err
	}

	if p.Ledger != nil && s.hasKind(p.GigID, p.Ledger.Kind) {
		return nil, apperror.New(apperror.ErrCodeConflict, "такая операция по заданию уже записана")
	}
	if p.Dispute != nil {
		if _, exists := s.disputes[p.GigID]; exists {
			return nil, apperror.ErrDisputeExists
		}
	}
	if p.Resolution != nil {
		d, exists := s.disputes[p.GigID]
		if !exists || d.Winner != nil {
			return nil, apperror.ErrDisputeNotFound
		}
	}

	// все проверки пройдены, фиксируем
	s.gigs[gig.ID] = gig
	if p.Ledger != nil {
		s.bySig[p.Ledger.Signature] = len(s.ledger)
		s.ledger = append(s.ledger, *p.Ledger)
	}
	if p.Dispute != nil {
		s.disputes[p.GigID] = *p.Dispute
	}
	if p.Resolution != nil {
		d := s.disputes[p.GigID]
		winner := p.Resolution.Winner
		by := p.Resolution.ResolvedBy
		at := p.Resolution.ResolvedAt
		d.Winner, d.ResolvedBy, d.ResolvedAt = &winner, &by, &at
		s.disputes[p.GigID] = d
	}
	return &gig, nil
}

func (s *Store) hasKind(gigID uuid.UUID, kind entity.LedgerKind) bool {
	for _, e := range s.ledger {
		if e.GigID == gigID && e.Kind == kind {
			return true
		}
	}
	return false
}

func (g *GigStore) ExpireOne(_ context.Context, id uuid.UUID, now time.Time, grace time.Duration) (bool, error) {
	g.s.mu.Lock()
	defer g.s.mu.Unlock()
	gig, ok := g.s.gigs[id]
	if !ok || !gig.IsExpiredAt(now, grace) {
		return false, nil
	}
	gig.Status = valueobject.GigStatusExpired
	gig.UpdatedAt = now
	g.s.gigs[id] = gig
	return true, nil
}

func (g *GigStore) ExpireDue(_ context.Context, now time.Time, grace time.Duration) (int64, error) {
	g.s.mu.Lock()
	defer g.s.mu.Unlock()
	var n int64
	for id, gig := range g.s.gigs {
		if gig.IsExpiredAt(now, grace) {
			gig.Status = valueobject.GigStatusExpired
			gig.UpdatedAt = now
			g.s.gigs[id] = gig
			n++
		}
	}
	return n, nil
}

type LedgerStore struct{ s *Store }

var _ repository.LedgerRepository = (*LedgerStore)(nil)

func (l *LedgerStore) Insert(_ context.Context, entry *entity.LedgerEntry) (repository.InsertResult, error) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	if _, ok := l.s.bySig[entry.Signature]; ok {
		return repository.InsertResultAlreadyExists, nil
	}
	l.s.bySig[entry.Signature] = len(l.s.ledger)
	l.s.ledger = append(l.s.ledger, *entry)
	return repository.InsertResultInserted, nil
}

func (l *LedgerStore) FindBySignature(_ context.Context, signature string) (*entity.LedgerEntry, error) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	i, ok := l.s.bySig[signature]
	if !ok {
		return nil, apperror.New(apperror.ErrCodeNotFound, "транзакция не найдена")
	}
	e := l.s.ledger[i]
	return &e, nil
}

func (l *LedgerStore) ListByGig(_ context.Context, gigID uuid.UUID) ([]*entity.LedgerEntry, error) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	out := []*entity.LedgerEntry{}
	for _, e := range l.s.ledger {
		if e.GigID == gigID {
			e := e
			out = append(out, &e)
		}
	}
	return out, nil
}

type DisputeStore struct{ s *Store }

var _ repository.DisputeRepository = (*DisputeStore)(nil)

func (d *DisputeStore) FindByGigID(_ context.Context, gigID uuid.UUID) (*entity.Dispute, error) {
	d.s.mu.Lock()
	defer d.s.mu.Unlock()
	dispute, ok := d.s.disputes[gigID]
	if !ok {
		return nil, apperror.ErrDisputeNotFound
	}
	return &dispute, nil
}

type UserStore struct{ s *Store }

var _ repository.UserRepository = (*UserStore)(nil)

func (u *UserStore) FindByID(_ context.Context, id uuid.UUID) (*entity.User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	user, ok := u.s.users[id]
	if !ok {
		return nil, apperror.ErrUserNotFound
	}
	return &user, nil
}

type ConfigStore struct{ s *Store }

var _ repository.PlatformConfigRepository = (*ConfigStore)(nil)

func (c *ConfigStore) Get(context.Context) (entity.PlatformConfig, bool, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	if c.s.config == nil {
		return entity.PlatformConfig{}, false, nil
	}
	return *c.s.config, true, nil
}

func (c *ConfigStore) Upsert(_ context.Context, cfg entity.PlatformConfig) (entity.PlatformConfig, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	c.s.config = &cfg
	return cfg, nil
}
