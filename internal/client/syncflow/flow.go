// Package syncflow ведёт подписанную транзакцию на клиенте: запись в журнал,
// ожидание подтверждения, коммит на сервер, удаление из журнала.
package syncflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/ignatzorin/gig-escrow-backend/internal/client/api"
	"github.com/ignatzorin/gig-escrow-backend/internal/client/pendingsync"
	"github.com/ignatzorin/gig-escrow-backend/internal/client/txmonitor"
	"github.com/ignatzorin/gig-escrow-backend/internal/domain/entity"
	"github.com/ignatzorin/gig-escrow-backend/internal/interface/http/dto"
	"github.com/ignatzorin/gig-escrow-backend/internal/logger"
)

var ErrStopped = errors.New("syncflow: наблюдение остановлено")

// Committer отправляет коммит на сервер; *api.Client ему соответствует.
type Committer interface {
	Commit(ctx context.Context, gigID uuid.UUID, action entity.Action, signature string, payload dto.ActionPayload) (*dto.GigResponse, error)
}

type Flow struct {
	queue   *pendingsync.Queue
	monitor *txmonitor.Monitor
	api     Committer
}

func New(queue *pendingsync.Queue, monitor *txmonitor.Monitor, committer Committer) *Flow {
	return &Flow{queue: queue, monitor: monitor, api: committer}
}

// Track сохраняет запись и ведёт её до коммита. Запись покидает журнал
// только после успешного коммита или ответа DUPLICATE_SIGNATURE; при
// timed_out и при ошибке транзакции в сети она ждёт Replay.
func (f *Flow) Track(ctx context.Context, e pendingsync.Entry) (txmonitor.Result, error) {
	if err := f.queue.Add(e); err != nil {
		return txmonitor.Result{}, err
	}
	log := logger.ForSignature(logger.ForGig(e.GigID, string(e.Kind)), e.Signature)

	res, ok := <-f.monitor.Watch(ctx, e.Signature, func(ctx context.Context, _ string) error {
		return f.commitAndRemove(ctx, e)
	})
	if !ok {
		return txmonitor.Result{Signature: e.Signature, State: txmonitor.StateIdle}, ErrStopped
	}

	switch res.State {
	case txmonitor.StateFailed:
		log.Warn("syncflow: транзакция упала в сети, запись оставлена в журнале")
	case txmonitor.StateTimedOut:
		log.Info("syncflow: запись оставлена в журнале до следующей синхронизации")
	case txmonitor.StateConfirmed:
		if res.Err != nil {
			log.WithError(res.Err).Warn("syncflow: коммит не удался, запись осталась в журнале")
		}
	}
	return res, res.Err
}

// Replay делает один проход по журналу.
func (f *Flow) Replay(ctx context.Context) (pendingsync.DrainReport, error) {
	return f.queue.Drain(ctx, pendingsync.CommitFunc(f.CommitEntry))
}

// CommitEntry отправляет запись на сервер без изменения журнала.
func (f *Flow) CommitEntry(ctx context.Context, e pendingsync.Entry) error {
	action, ok := e.Kind.Action()
	if !ok {
		return fmt.Errorf("syncflow: неизвестный вид %q", e.Kind)
	}
	var payload dto.ActionPayload
	if e.Proof != nil {
		payload.Proof = &dto.ProofDTO{URLs: e.Proof.URLs, Note: e.Proof.Note}
	}
	_, err := f.api.Commit(ctx, e.GigID, action, e.Signature, payload)
	return err
}

func (f *Flow) commitAndRemove(ctx context.Context, e pendingsync.Entry) error {
	err := f.CommitEntry(ctx, e)
	if err != nil && !api.IsDuplicate(err) {
		return err
	}
	// Add не заменяет запись с той же подписью, поэтому удаляем по подписи.
	return f.queue.RemoveBySignature(e.Signature)
}
