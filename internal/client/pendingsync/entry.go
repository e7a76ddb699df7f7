package pendingsync

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/gig-escrow-backend/internal/domain/entity"
)

// Kind задаёт вид отложенной операции.
type Kind string

const (
	KindPublish     Kind = "publish"
	KindAccept      Kind = "accept"
	KindApprove     Kind = "approve"
	KindCancel      Kind = "cancel"
	KindRefund      Kind = "refund"
	KindSubmitProof Kind = "submit_proof"
)

var kindActions = map[Kind]entity.Action{
	KindPublish:     entity.ActionPublish,
	KindAccept:      entity.ActionAccept,
	KindApprove:     entity.ActionApprove,
	KindCancel:      entity.ActionCancel,
	KindRefund:      entity.ActionRefund,
	KindSubmitProof: entity.ActionSubmit,
}

// Action возвращает серверную операцию, которой коммитится запись.
func (k Kind) Action() (entity.Action, bool) {
	a, ok := kindActions[k]
	return a, ok
}

func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if _, ok := kindActions[k]; !ok {
		return "", fmt.Errorf("pendingsync: неизвестный вид %q", s)
	}
	return k, nil
}

// Entry описывает подписанную и отправленную в сеть транзакцию, которую сервер ещё не принял.
// Proof есть только у submit_proof; конструкторы и Validate держат это условие.
type Entry struct {
	ID        uuid.UUID     `json:"id"`
	Kind      Kind          `json:"kind"`
	GigID     uuid.UUID     `json:"gig_id"`
	Signature string        `json:"signature"`
	Retries   int           `json:"retries"`
	CreatedAt time.Time     `json:"created_at"`
	Proof     *entity.Proof `json:"proof,omitempty"`
}

// NewEntry создаёт запись для любого вида, кроме submit_proof.
func NewEntry(kind Kind, gigID uuid.UUID, signature string, now time.Time) (Entry, error) {
	if kind == KindSubmitProof {
		return Entry{}, fmt.Errorf("pendingsync: для submit_proof нужен NewSubmitProof")
	}
	e := Entry{ID: uuid.New(), Kind: kind, GigID: gigID, Signature: signature, CreatedAt: now.UTC()}
	return e, e.Validate()
}

func NewSubmitProof(gigID uuid.UUID, signature string, proof entity.Proof, now time.Time) (Entry, error) {
	e := Entry{ID: uuid.New(), Kind: KindSubmitProof, GigID: gigID, Signature: signature, CreatedAt: now.UTC(), Proof: &proof}
	return e, e.Validate()
}

func (e Entry) Validate() error {
	if _, ok := e.Kind.Action(); !ok {
		return fmt.Errorf("pendingsync: неизвестный вид %q", e.Kind)
	}
	if e.ID == uuid.Nil || e.GigID == uuid.Nil {
		return fmt.Errorf("pendingsync: пустой id записи или задания")
	}
	if e.Signature == "" {
		return fmt.Errorf("pendingsync: пустая подпись")
	}
	if (e.Kind == KindSubmitProof) != (e.Proof != nil) {
		return fmt.Errorf("pendingsync: proof допустим только у submit_proof")
	}
	return nil
}

// Stalled сообщает, что запись исчерпала попытки и ждёт ручного Requeue.
func (e Entry) Stalled(maxRetries int) bool {
	return e.Retries >= maxRetries
}
