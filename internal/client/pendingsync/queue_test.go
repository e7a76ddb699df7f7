package pendingsync

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/ignatzorin/gig-escrow-backend/internal/client/api"
	"github.com/ignatzorin/gig-escrow-backend/internal/domain/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func openTemp(t *testing.T) (*Queue, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pending.json")
	q, err := Open(path, 0)
	require.NoError(t, err)
	return q, path
}

func mustEntry(t *testing.T, kind Kind, sig string, at time.Time) Entry {
	t.Helper()
	e, err := NewEntry(kind, uuid.New(), sig, at)
	require.NoError(t, err)
	return e
}

func TestEntry_TaggedUnion(t *testing.T) {
	_, err := NewEntry(KindSubmitProof, uuid.New(), "sig", t0)
	assert.Error(t, err)

	e, err := NewSubmitProof(uuid.New(), "sig", entity.Proof{URLs: []string{"u"}}, t0)
	require.NoError(t, err)
	action, ok := e.Kind.Action()
	require.True(t, ok)
	assert.Equal(t, entity.ActionSubmit, action)

	e.Proof = nil
	assert.Error(t, e.Validate())

	p := mustEntry(t, KindPublish, "sig2", t0)
	p.Proof = &entity.Proof{}
	assert.Error(t, p.Validate())

	_, err = ParseKind("resolve")
	assert.Error(t, err)
}

func TestQueue_PersistsAndReloads(t *testing.T) {
	q, path := openTemp(t)

	a := mustEntry(t, KindAccept, "sigB", t0.Add(time.Minute))
	b := mustEntry(t, KindPublish, "sigA", t0)
	proof, err := NewSubmitProof(uuid.New(), "sigC", entity.Proof{URLs: []string{"https://cdn/p.jpg"}, Note: "готово"}, t0.Add(2*time.Minute))
	require.NoError(t, err)

	require.NoError(t, q.Add(a))
	require.NoError(t, q.Add(b))
	require.NoError(t, q.Add(proof))
	require.NoError(t, q.Add(b), "повтор подписи")
	assert.Equal(t, 3, q.Len())

	reopened, err := Open(path, 0)
	require.NoError(t, err)
	want := []Entry{b, a, proof}
	if diff := cmp.Diff(want, reopened.List()); diff != "" {
		t.Fatalf("журнал после перечитывания (-want +got):\n%s", diff)
	}

	leftovers, err := filepath.Glob(filepath.Join(filepath.Dir(path), "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestQueue_OpenCorruptJournal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pending.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := Open(path, 0)
	assert.Error(t, err)
}

func TestDrain_DuplicateRemovesWithoutRetries(t *testing.T) {
	q, path := openTemp(t)
	e := mustEntry(t, KindApprove, "sig", t0)
	require.NoError(t, q.Add(e))

	dup := &api.Error{HTTPStatus: 409, Code: api.CodeDuplicateSignature}
	rep, err := q.Drain(context.Background(), CommitFunc(func(context.Context, Entry) error { return dup }))
	require.NoError(t, err)
	assert.Equal(t, DrainReport{Duplicates: 1}, rep)
	assert.Equal(t, 0, q.Len())

	reopened, err := Open(path, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, reopened.Len())
}

func TestDrain_NetworkErrorIncrementsRetries(t *testing.T) {
	q, path := openTemp(t)
	e := mustEntry(t, KindRefund, "sig", t0)
	require.NoError(t, q.Add(e))

	netErr := errors.New("dial tcp: connection refused")
	rep, err := q.Drain(context.Background(), CommitFunc(func(context.Context, Entry) error { return netErr }))
	require.NoError(t, err)
	assert.Equal(t, DrainReport{Failed: 1}, rep)

	reopened, err := Open(path, 0)
	require.NoError(t, err)
	require.Equal(t, 1, reopened.Len())
	assert.Equal(t, 1, reopened.List()[0].Retries)
}

func TestDrain_SequentialInCreationOrder(t *testing.T) {
	q, _ := openTemp(t)
	late := mustEntry(t, KindApprove, "late", t0.Add(time.Hour))
	early := mustEntry(t, KindPublish, "early", t0)
	mid := mustEntry(t, KindAccept, "mid", t0.Add(time.Minute))
	for _, e := range []Entry{late, early, mid} {
		require.NoError(t, q.Add(e))
	}

	var order []string
	rep, err := q.Drain(context.Background(), CommitFunc(func(_ context.Context, e Entry) error {
		order = append(order, e.Signature)
		return nil
	}))
	require.NoError(t, err)
	assert.Equal(t, []string{"early", "mid", "late"}, order)
	assert.Equal(t, 3, rep.Committed)
	assert.Equal(t, 0, q.Len())
}

func TestDrain_StalledEntriesSkippedUntilRequeue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pending.json")
	q, err := Open(path, 2)
	require.NoError(t, err)
	e := mustEntry(t, KindCancel, "sig", t0)
	require.NoError(t, q.Add(e))

	failing := CommitFunc(func(context.Context, Entry) error { return errors.New("timeout") })
	for i := 0; i < 2; i++ {
		_, err := q.Drain(context.Background(), failing)
		require.NoError(t, err)
	}

	calls := 0
	counting := CommitFunc(func(context.Context, Entry) error { calls++; return nil })
	rep, err := q.Drain(context.Background(), counting)
	require.NoError(t, err)
	assert.Equal(t, DrainReport{Stalled: 1}, rep)
	assert.Zero(t, calls)
	require.Len(t, q.Stalled(), 1)
	assert.Equal(t, 1, q.Len(), "застрявшая запись не удаляется")

	require.NoError(t, q.Requeue(e.ID))
	assert.Empty(t, q.Stalled())

	rep, err = q.Drain(context.Background(), counting)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Committed)
	assert.Equal(t, 1, calls)

	assert.ErrorIs(t, q.Requeue(uuid.New()), ErrEntryNotFound)
}

func TestDrain_StopsOnCancelledContext(t *testing.T) {
	q, _ := openTemp(t)
	require.NoError(t, q.Add(mustEntry(t, KindPublish, "a", t0)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := q.Drain(ctx, CommitFunc(func(context.Context, Entry) error { return nil }))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, q.Len())
}

func TestRemoveBySignature(t *testing.T) {
	q, _ := openTemp(t)
	require.NoError(t, q.Add(mustEntry(t, KindPublish, "a", t0)))
	require.NoError(t, q.RemoveBySignature("missing"))
	require.NoError(t, q.RemoveBySignature("a"))
	assert.Equal(t, 0, q.Len())
}
