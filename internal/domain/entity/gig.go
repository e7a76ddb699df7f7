package entity

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ignatzorin/gig-escrow-backend/internal/domain/valueobject"
	"github.com/ignatzorin/gig-escrow-backend/internal/pkg/apperror"
	"github.com/ignatzorin/gig-escrow-backend/internal/validation"
)

const MaxProofURLs = 10

type Gig struct {
	ID                     uuid.UUID             `db:"id" json:"id"`
	PosterID               uuid.UUID             `db:"poster_id" json:"poster_id"`
	WorkerID               *uuid.UUID            `db:"worker_id" json:"worker_id,omitempty"`
	Title                  string                `db:"title" json:"title"`
	Category               string                `db:"category" json:"category"`
	City                   string                `db:"city" json:"city"`
	Address                string                `db:"address" json:"address"`
	PaymentLamports        valueobject.Lamports  `db:"payment_lamports" json:"payment_lamports"`
	Status                 valueobject.GigStatus `db:"status" json:"status"`
	AcceptDeadline         *time.Time            `db:"accept_deadline" json:"accept_deadline,omitempty"`
	CompletionDurationSecs int64                 `db:"completion_duration_secs" json:"completion_duration_secs"`
	AcceptedAt             *time.Time            `db:"accepted_at" json:"accepted_at,omitempty"`
	SubmittedAt            *time.Time            `db:"submitted_at" json:"submitted_at,omitempty"`
	Proof                  *Proof                `db:"proof" json:"proof,omitempty"`
	EscrowAddress          string                `db:"escrow_address" json:"escrow_address"`
	CreatedAt              time.Time             `db:"created_at" json:"created_at"`
	UpdatedAt              time.Time             `db:"updated_at" json:"updated_at"`
}

// NewGigParams содержит входные данные черновика.
type NewGigParams struct {
	PosterID               uuid.UUID
	Title                  string
	Category               string
	City                   string
	Address                string
	PaymentLamports        int64
	MaxPaymentLamports     int64
	AcceptDeadline         *time.Time
	CompletionDurationSecs int64
}

// NewGig создаёт черновик. Адрес эскроу заполняет вызывающая сторона,
// так как он зависит от адреса программы.
func NewGig(p NewGigParams, now time.Time) (*Gig, error) {
	title := strings.TrimSpace(p.Title)
	if title == "" {
		return nil, apperror.New(apperror.ErrCodeValidation, "название задания обязательно")
	}
	if err := validation.ValidateLength("название", title, 0, validation.MaxTitleLength); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	if err := validation.ValidateLength("адрес", strings.TrimSpace(p.Address), 0, validation.MaxAddressLength); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	if strings.TrimSpace(p.Category) == "" {
		return nil, apperror.New(apperror.ErrCodeValidation, "категория обязательна")
	}
	if strings.TrimSpace(p.City) == "" {
		return nil, apperror.New(apperror.ErrCodeValidation, "город обязателен")
	}
	payment, err := valueobject.NewLamports(p.PaymentLamports)
	if err != nil {
		return nil, err
	}
	if p.MaxPaymentLamports > 0 && p.PaymentLamports > p.MaxPaymentLamports {
		return nil, apperror.New(apperror.ErrCodeValidation,
			fmt.Sprintf("оплата превышает максимум %d лампортов", p.MaxPaymentLamports))
	}
	if p.CompletionDurationSecs <= 0 {
		return nil, apperror.New(apperror.ErrCodeValidation, "срок выполнения должен быть положительным")
	}
	if p.AcceptDeadline != nil && !p.AcceptDeadline.After(now) {
		return nil, apperror.New(apperror.ErrCodeValidation, "дедлайн принятия должен быть в будущем")
	}

	return &Gig{
		ID:                     uuid.New(),
		PosterID:               p.PosterID,
		Title:                  title,
		Category:               strings.TrimSpace(p.Category),
		City:                   strings.TrimSpace(p.City),
		Address:                strings.TrimSpace(p.Address),
		PaymentLamports:        payment,
		Status:                 valueobject.GigStatusDraft,
		AcceptDeadline:         p.AcceptDeadline,
		CompletionDurationSecs: p.CompletionDurationSecs,
		CreatedAt:              now,
		UpdatedAt:              now,
	}, nil
}

func (g *Gig) CompletionDuration() time.Duration {
	return time.Duration(g.CompletionDurationSecs) * time.Second
}

func (g *Gig) IsPoster(userID uuid.UUID) bool {
	return g.PosterID == userID
}

func (g *Gig) IsWorker(userID uuid.UUID) bool {
	return g.WorkerID != nil && *g.WorkerID == userID
}

// SubmissionCutoff возвращает крайний момент сдачи работы (accepted_at + срок + grace).
func (g *Gig) SubmissionCutoff(grace time.Duration) (time.Time, bool) {
	if g.AcceptedAt == nil {
		return time.Time{}, false
	}
	return g.AcceptedAt.Add(g.CompletionDuration()).Add(grace), true
}

// IsExpiredAt это единственный предикат истечения на стороне Go.
// SQL-вариант в persistence получает те же now и grace параметрами.
func (g *Gig) IsExpiredAt(now time.Time, grace time.Duration) bool {
	switch g.Status {
	case valueobject.GigStatusOpen:
		return g.AcceptDeadline != nil && now.After(*g.AcceptDeadline)
	case valueobject.GigStatusAccepted:
		cutoff, ok := g.SubmissionCutoff(grace)
		return ok && now.After(cutoff)
	}
	return false
}

func (g *Gig) requireStatus(action Action, allowed ...valueobject.GigStatus) error {
	for _, s := range allowed {
		if g.Status == s {
			return nil
		}
	}
	return apperror.StateConflict(string(action), g.Status.String())
}

func (g *Gig) moveTo(action Action, to valueobject.GigStatus, now time.Time) error {
	if !g.Status.CanTransitionTo(to) {
		return apperror.StateConflict(string(action), g.Status.String())
	}
	g.Status = to
	g.UpdatedAt = now
	return nil
}

func (g *Gig) CheckPublish(actor uuid.UUID) error {
	if !g.IsPoster(actor) {
		return apperror.New(apperror.ErrCodeForbidden, "опубликовать задание может только заказчик")
	}
	return g.requireStatus(ActionPublish, valueobject.GigStatusDraft)
}

func (g *Gig) Publish(actor uuid.UUID, now time.Time) error {
	if err := g.CheckPublish(actor); err != nil {
		return err
	}
	return g.moveTo(ActionPublish, valueobject.GigStatusOpen, now)
}

func (g *Gig) CheckAccept(actor uuid.UUID, now time.Time, grace time.Duration) error {
	if g.IsPoster(actor) {
		return apperror.New(apperror.ErrCodeForbidden, "заказчик не может принять собственное задание")
	}
	if err := g.requireStatus(ActionAccept, valueobject.GigStatusOpen); err != nil {
		return err
	}
	if g.IsExpiredAt(now, grace) {
		return apperror.StateConflict(string(ActionAccept), valueobject.GigStatusExpired.String())
	}
	return nil
}

func (g *Gig) Accept(actor uuid.UUID, now time.Time, grace time.Duration) error {
	if err := g.CheckAccept(actor, now, grace); err != nil {
		return err
	}
	if err := g.moveTo(ActionAccept, valueobject.GigStatusAccepted, now); err != nil {
		return err
	}
	worker := actor
	acceptedAt := now
	g.WorkerID = &worker
	g.AcceptedAt = &acceptedAt
	return nil
}

// CheckSubmit пропускает сдачу ровно до момента отсечки включительно.
func (g *Gig) CheckSubmit(actor uuid.UUID, now time.Time, grace time.Duration) error {
	if !g.IsWorker(actor) {
		return apperror.New(apperror.ErrCodeForbidden, "сдать работу может только назначенный исполнитель")
	}
	if err := g.requireStatus(ActionSubmit, valueobject.GigStatusAccepted); err != nil {
		return err
	}
	if cutoff, ok := g.SubmissionCutoff(grace); ok && now.After(cutoff) {
		return apperror.New(apperror.ErrCodeConflict, "срок сдачи работы истёк")
	}
	return nil
}

func (g *Gig) SubmitProof(actor uuid.UUID, proof Proof, now time.Time, grace time.Duration) error {
	if err := proof.Validate(); err != nil {
		return err
	}
	if err := g.CheckSubmit(actor, now, grace); err != nil {
		return err
	}
	if err := g.moveTo(ActionSubmit, valueobject.GigStatusSubmitted, now); err != nil {
		return err
	}
	submittedAt := now
	g.Proof = &proof
	g.SubmittedAt = &submittedAt
	return nil
}

func (g *Gig) CheckApprove(actor uuid.UUID) error {
	if !g.IsPoster(actor) {
		return apperror.New(apperror.ErrCodeForbidden, "принять работу может только заказчик")
	}
	return g.requireStatus(ActionApprove, valueobject.GigStatusSubmitted)
}

func (g *Gig) Approve(actor uuid.UUID, now time.Time) error {
	if err := g.CheckApprove(actor); err != nil {
		return err
	}
	return g.moveTo(ActionApprove, valueobject.GigStatusCompleted, now)
}

func (g *Gig) CheckDispute(actor uuid.UUID) error {
	if !g.IsPoster(actor) && !g.IsWorker(actor) {
		return apperror.New(apperror.ErrCodeForbidden, "открыть спор могут только участники задания")
	}
	return g.requireStatus(ActionDispute, valueobject.GigStatusAccepted, valueobject.GigStatusSubmitted)
}

func (g *Gig) OpenDispute(actor uuid.UUID, now time.Time) error {
	if err := g.CheckDispute(actor); err != nil {
		return err
	}
	return g.moveTo(ActionDispute, valueobject.GigStatusDisputed, now)
}

// CheckResolve не проверяет роль: это делает слой выше по токену.
func (g *Gig) CheckResolve() error {
	return g.requireStatus(ActionResolve, valueobject.GigStatusDisputed)
}

func (g *Gig) Resolve(now time.Time) error {
	if err := g.CheckResolve(); err != nil {
		return err
	}
	return g.moveTo(ActionResolve, valueobject.GigStatusResolved, now)
}

// CheckCancel допускает только открытое задание: отмена черновика
// не касается сети и идёт через CancelDraft.
func (g *Gig) CheckCancel(actor uuid.UUID) error {
	if !g.IsPoster(actor) {
		return apperror.New(apperror.ErrCodeForbidden, "отменить задание может только заказчик")
	}
	return g.requireStatus(ActionCancel, valueobject.GigStatusOpen)
}

func (g *Gig) Cancel(actor uuid.UUID, now time.Time) error {
	if err := g.CheckCancel(actor); err != nil {
		return err
	}
	return g.moveTo(ActionCancel, valueobject.GigStatusCancelled, now)
}

func (g *Gig) CancelDraft(actor uuid.UUID, now time.Time) error {
	if !g.IsPoster(actor) {
		return apperror.New(apperror.ErrCodeForbidden, "отменить задание может только заказчик")
	}
	if err := g.requireStatus(ActionCancel, valueobject.GigStatusDraft); err != nil {
		return err
	}
	return g.moveTo(ActionCancel, valueobject.GigStatusCancelled, now)
}

// CheckRefund проверяет возврат: его забирает заказчик из истёкшего задания, статус не меняется.
// Однократность обеспечивает журнал.
func (g *Gig) CheckRefund(actor uuid.UUID) error {
	if !g.IsPoster(actor) {
		return apperror.New(apperror.ErrCodeForbidden, "вернуть средства может только заказчик")
	}
	return g.requireStatus(ActionRefund, valueobject.GigStatusExpired)
}

func (g *Gig) Expire(now time.Time, grace time.Duration) error {
	if !g.IsExpiredAt(now, grace) {
		return apperror.StateConflict(string(ActionExpire), g.Status.String())
	}
	return g.moveTo(ActionExpire, valueobject.GigStatusExpired, now)
}

// Proof описывает доказательство выполнения, хранится в jsonb.
type Proof struct {
	URLs []string `json:"urls"`
	Note string   `json:"note,omitempty"`
}

func (p Proof) Validate() error {
	if len(p.URLs) == 0 {
		return apperror.New(apperror.ErrCodeValidation, "нужна хотя бы одна ссылка на результат")
	}
	if len(p.URLs) > MaxProofURLs {
		return apperror.New(apperror.ErrCodeValidation, fmt.Sprintf("не больше %d ссылок", MaxProofURLs))
	}
	for _, u := range p.URLs {
		if err := validation.ValidateLink(u); err != nil {
			return apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
		}
	}
	if err := validation.ValidateLength("комментарий", p.Note, 0, validation.MaxNoteLength); err != nil {
		return apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	return nil
}

func (p Proof) Value() (driver.Value, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (p *Proof) Scan(src interface{}) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("proof: unsupported type %T", src)
	}
	return json.Unmarshal(data, p)
}
