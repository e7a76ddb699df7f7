package ws

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/ignatzorin/gig-escrow-backend/internal/domain/entity"
	"github.com/ignatzorin/gig-escrow-backend/internal/domain/event"
	"github.com/ignatzorin/gig-escrow-backend/internal/domain/valueobject"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(h *Hub, userID uuid.UUID) *Client {
	return &Client{hub: h, userID: userID, send: make(chan []byte, 4)}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, time.Second, 5*time.Millisecond)
}

func TestHub_GigChangedReachesParticipants(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := NewHub()
	go h.Run(ctx)

	poster, worker, stranger := uuid.New(), uuid.New(), uuid.New()
	pc, wc, sc := newTestClient(h, poster), newTestClient(h, worker), newTestClient(h, stranger)
	h.Register(pc)
	h.Register(wc)
	h.Register(sc)
	waitFor(t, func() bool { return h.ClientCount(stranger) == 1 })

	gig := &entity.Gig{ID: uuid.New(), PosterID: poster, WorkerID: &worker, Status: valueobject.GigStatusAccepted}
	h.GigChanged(ctx, event.NewGigChanged(gig, entity.ActionAccept, "sig", time.Now()))

	for _, c := range []*Client{pc, wc} {
		select {
		case raw := <-c.send:
			var msg struct {
				Type string           `json:"type"`
				Data event.GigChanged `json:"data"`
			}
			require.NoError(t, json.Unmarshal(raw, &msg))
			assert.Equal(t, gigChangedType, msg.Type)
			assert.Equal(t, gig.ID, msg.Data.GigID)
			assert.Equal(t, valueobject.GigStatusAccepted, msg.Data.Status)
		case <-time.After(time.Second):
			t.Fatal("событие не доставлено")
		}
	}

	select {
	case <-sc.send:
		t.Fatal("посторонний пользователь получил событие")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_UnregisterClosesSend(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := NewHub()
	go h.Run(ctx)

	user := uuid.New()
	c := newTestClient(h, user)
	h.Register(c)
	waitFor(t, func() bool { return h.ClientCount(user) == 1 })

	h.Unregister(c)
	waitFor(t, func() bool { return h.ClientCount(user) == 0 })

	_, open := <-c.send
	assert.False(t, open)
}

func TestHub_StoppedDoesNotBlock(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h := NewHub()
	stopped := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(stopped)
	}()
	cancel()
	<-stopped

	done := make(chan struct{})
	go func() {
		h.Unregister(newTestClient(h, uuid.New()))
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Unregister заблокировался после остановки хаба")
	}
}
