package syncflow

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/ignatzorin/gig-escrow-backend/internal/client/api"
	"github.com/ignatzorin/gig-escrow-backend/internal/client/pendingsync"
	"github.com/ignatzorin/gig-escrow-backend/internal/client/txmonitor"
	"github.com/ignatzorin/gig-escrow-backend/internal/domain/entity"
	"github.com/ignatzorin/gig-escrow-backend/internal/infrastructure/chain"
	"github.com/ignatzorin/gig-escrow-backend/internal/interface/http/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type commitCall struct {
	GigID     uuid.UUID
	Action    entity.Action
	Signature string
	Payload   dto.ActionPayload
}

type fakeAPI struct {
	mu    sync.Mutex
	calls []commitCall
	err   error
}

func (f *fakeAPI) Commit(_ context.Context, gigID uuid.UUID, action entity.Action, sig string, p dto.ActionPayload) (*dto.GigResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, commitCall{gigID, action, sig, p})
	if f.err != nil {
		return nil, f.err
	}
	return &dto.GigResponse{ID: gigID}, nil
}

func fixedStatus(s chain.SignatureStatus) txmonitor.StatusFunc {
	return func(context.Context, string) (chain.SignatureStatus, error) { return s, nil }
}

type fixture struct {
	clk   *clock.Mock
	queue *pendingsync.Queue
	path  string
	api   *fakeAPI
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pending.json")
	q, err := pendingsync.Open(path, 0)
	require.NoError(t, err)
	return &fixture{clk: clock.NewMock(), queue: q, path: path, api: &fakeAPI{}}
}

func (fx *fixture) flow(status txmonitor.StatusSource, attempts int) *Flow {
	m := txmonitor.New(status, txmonitor.WithClock(fx.clk), txmonitor.WithMaxAttempts(attempts))
	return New(fx.queue, m, fx.api)
}

// track крутит часы, пока Track не вернётся.
func (fx *fixture) track(t *testing.T, f *Flow, e pendingsync.Entry) (txmonitor.Result, error) {
	t.Helper()
	type out struct {
		res txmonitor.Result
		err error
	}
	done := make(chan out, 1)
	go func() {
		res, err := f.Track(context.Background(), e)
		done <- out{res, err}
	}()
	for i := 0; i < 500; i++ {
		select {
		case o := <-done:
			return o.res, o.err
		case <-time.After(2 * time.Millisecond):
			fx.clk.Add(txmonitor.DefaultInterval)
		}
	}
	t.Fatal("Track не завершился")
	return txmonitor.Result{}, nil
}

func TestTrack_ConfirmedCommitsAndRemoves(t *testing.T) {
	fx := newFixture(t)
	gigID := uuid.New()
	e, err := pendingsync.NewSubmitProof(gigID, "sig", entity.Proof{URLs: []string{"https://cdn/1.jpg"}}, time.Now())
	require.NoError(t, err)

	res, err := fx.track(t, fx.flow(fixedStatus(chain.StatusConfirmed), 5), e)
	require.NoError(t, err)
	assert.Equal(t, txmonitor.StateConfirmed, res.State)
	assert.Equal(t, 0, fx.queue.Len())

	require.Len(t, fx.api.calls, 1)
	call := fx.api.calls[0]
	assert.Equal(t, entity.ActionSubmit, call.Action)
	assert.Equal(t, gigID, call.GigID)
	require.NotNil(t, call.Payload.Proof)
	assert.Equal(t, []string{"https://cdn/1.jpg"}, call.Payload.Proof.URLs)
}

func TestTrack_DuplicateTreatedAsDone(t *testing.T) {
	fx := newFixture(t)
	fx.api.err = &api.Error{HTTPStatus: 409, Code: api.CodeDuplicateSignature}
	e, err := pendingsync.NewEntry(pendingsync.KindAccept, uuid.New(), "sig", time.Now())
	require.NoError(t, err)

	res, err := fx.track(t, fx.flow(fixedStatus(chain.StatusFinalized), 5), e)
	require.NoError(t, err)
	assert.Equal(t, txmonitor.StateConfirmed, res.State)
	assert.Equal(t, 0, fx.queue.Len())
}

func TestTrack_TimedOutKeepsEntryForReplay(t *testing.T) {
	fx := newFixture(t)
	e, err := pendingsync.NewEntry(pendingsync.KindPublish, uuid.New(), "sig", time.Now())
	require.NoError(t, err)

	res, err := fx.track(t, fx.flow(fixedStatus(chain.StatusNotFound), 3), e)
	require.NoError(t, err)
	assert.Equal(t, txmonitor.StateTimedOut, res.State)
	assert.Empty(t, fx.api.calls)

	reopened, err := pendingsync.Open(fx.path, 0)
	require.NoError(t, err)
	require.Equal(t, 1, reopened.Len())

	f := New(reopened, txmonitor.New(fixedStatus(chain.StatusConfirmed)), fx.api)
	rep, err := f.Replay(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Committed)
	assert.Equal(t, 0, reopened.Len())
	require.Len(t, fx.api.calls, 1)
	assert.Equal(t, entity.ActionPublish, fx.api.calls[0].Action)
}

func TestTrack_CommitFailureKeepsEntry(t *testing.T) {
	fx := newFixture(t)
	offline := errors.New("dial tcp: no route to host")
	fx.api.err = offline
	e, err := pendingsync.NewEntry(pendingsync.KindRefund, uuid.New(), "sig", time.Now())
	require.NoError(t, err)

	res, err := fx.track(t, fx.flow(fixedStatus(chain.StatusConfirmed), 5), e)
	assert.ErrorIs(t, err, offline)
	assert.Equal(t, txmonitor.StateConfirmed, res.State)
	require.Equal(t, 1, fx.queue.Len())
	assert.Equal(t, 0, fx.queue.List()[0].Retries)
}

func TestTrack_ChainFailureKeepsEntry(t *testing.T) {
	fx := newFixture(t)
	e, err := pendingsync.NewEntry(pendingsync.KindCancel, uuid.New(), "sig", time.Now())
	require.NoError(t, err)

	res, err := fx.track(t, fx.flow(fixedStatus(chain.StatusFailed), 5), e)
	assert.ErrorIs(t, err, txmonitor.ErrChainFailed)
	assert.Equal(t, txmonitor.StateFailed, res.State)
	assert.Empty(t, fx.api.calls)
	require.Equal(t, 1, fx.queue.Len())
	assert.Equal(t, e.ID, fx.queue.List()[0].ID)

	// Сервер отвечает CHAIN_FAILED: запись копит retries и застревает, но не пропадает.
	fx.api.err = &api.Error{HTTPStatus: 422, Code: api.CodeChainFailed}
	f := fx.flow(fixedStatus(chain.StatusFailed), 5)
	for i := 0; i < fx.queue.MaxRetries(); i++ {
		rep, err := f.Replay(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, rep.Failed)
	}
	rep, err := f.Replay(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Stalled)
	assert.Equal(t, 1, fx.queue.Len())
}

func TestTrack_RemovesEntryWithSameSignature(t *testing.T) {
	fx := newFixture(t)
	gigID := uuid.New()
	earlier, err := pendingsync.NewEntry(pendingsync.KindAccept, gigID, "sig", time.Now())
	require.NoError(t, err)
	require.NoError(t, fx.queue.Add(earlier))

	again, err := pendingsync.NewEntry(pendingsync.KindAccept, gigID, "sig", time.Now())
	require.NoError(t, err)
	require.NotEqual(t, earlier.ID, again.ID)

	res, err := fx.track(t, fx.flow(fixedStatus(chain.StatusConfirmed), 5), again)
	require.NoError(t, err)
	assert.Equal(t, txmonitor.StateConfirmed, res.State)
	assert.Equal(t, 0, fx.queue.Len())
	assert.Len(t, fx.api.calls, 1)
}
