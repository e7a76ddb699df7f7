package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/gig-escrow-backend/internal/domain/entity"
	"github.com/ignatzorin/gig-escrow-backend/internal/infrastructure/chain"
	"github.com/ignatzorin/gig-escrow-backend/internal/interface/http/dto"
	"github.com/ignatzorin/gig-escrow-backend/internal/interface/http/response"
	"github.com/ignatzorin/gig-escrow-backend/internal/usecase/escrow"
)

type EscrowHandler struct {
	coordinator *escrow.Coordinator
}

func NewEscrowHandler(coordinator *escrow.Coordinator) *EscrowHandler {
	return &EscrowHandler{coordinator: coordinator}
}

func toPayload(p dto.ActionPayload) escrow.Payload {
	return escrow.Payload{
		Proof:  p.Proof.ToEntity(),
		Reason: p.Reason,
		Winner: p.Winner,
	}
}

// Build возвращает обработчик POST /api/gigs/:id/<action>/build.
// Тело необязательно, кроме submit (proof) и resolve (winner).
func (h *EscrowHandler) Build(action entity.Action) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := requireActor(c)
		if !ok {
			return
		}
		id, ok := gigIDParam(c)
		if !ok {
			return
		}

		var req dto.BuildRequest
		if c.Request.ContentLength != 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				response.BadRequest(c, "некорректные данные запроса")
				return
			}
		}

		res, err := h.coordinator.Build(c.Request.Context(), escrow.BuildInput{
			GigID:   id,
			Action:  action,
			Actor:   actor,
			Payload: toPayload(req.ActionPayload),
		})
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Success(c, res)
	}
}

// Commit возвращает обработчик POST /api/gigs/:id/<action>/commit.
func (h *EscrowHandler) Commit(action entity.Action) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := requireActor(c)
		if !ok {
			return
		}
		id, ok := gigIDParam(c)
		if !ok {
			return
		}

		var req dto.CommitRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "нужна подпись транзакции")
			return
		}

		g, err := h.coordinator.Commit(c.Request.Context(), escrow.CommitInput{
			GigID:     id,
			Action:    action,
			Actor:     actor,
			Signature: req.Signature,
			Payload:   toPayload(req.ActionPayload),
		})
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Success(c, dto.ToGigResponse(g))
	}
}

type signatureStatusResponse struct {
	Signature string                `json:"signature"`
	Status    chain.SignatureStatus `json:"status"`
}

// SignatureStatus обрабатывает GET /api/chain/signatures/:signature.
func (h *EscrowHandler) SignatureStatus(c *gin.Context) {
	sig := c.Param("signature")
	status, err := h.coordinator.SignatureStatus(c.Request.Context(), sig)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, signatureStatusResponse{Signature: sig, Status: status})
}
