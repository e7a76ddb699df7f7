package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/gig-escrow-backend/internal/domain/repository"
	"github.com/ignatzorin/gig-escrow-backend/internal/domain/valueobject"
	"github.com/ignatzorin/gig-escrow-backend/internal/interface/http/dto"
	"github.com/ignatzorin/gig-escrow-backend/internal/interface/http/response"
	"github.com/ignatzorin/gig-escrow-backend/internal/usecase/gig"
)

type GigHandler struct {
	createUC       *gig.CreateGigUseCase
	getUC          *gig.GetGigUseCase
	listUC         *gig.ListGigsUseCase
	cancelDraftUC  *gig.CancelDraftUseCase
	transactionsUC *gig.ListTransactionsUseCase
	disputeUC      *gig.GetDisputeUseCase
}

func NewGigHandler(
	createUC *gig.CreateGigUseCase,
	getUC *gig.GetGigUseCase,
	listUC *gig.ListGigsUseCase,
	cancelDraftUC *gig.CancelDraftUseCase,
	transactionsUC *gig.ListTransactionsUseCase,
	disputeUC *gig.GetDisputeUseCase,
) *GigHandler {
	return &GigHandler{
		createUC:       createUC,
		getUC:          getUC,
		listUC:         listUC,
		cancelDraftUC:  cancelDraftUC,
		transactionsUC: transactionsUC,
		disputeUC:      disputeUC,
	}
}

// CreateGig обрабатывает POST /api/gigs.
func (h *GigHandler) CreateGig(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	var req dto.CreateGigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "некорректные данные запроса")
		return
	}
	deadline, err := dto.ParseDeadline(req.AcceptDeadline)
	if err != nil {
		response.BadRequest(c, "некорректный формат дедлайна")
		return
	}

	created, err := h.createUC.Execute(c.Request.Context(), gig.CreateGigInput{
		PosterID:               actor.ID,
		Title:                  req.Title,
		Category:               req.Category,
		City:                   req.City,
		Address:                req.Address,
		PaymentLamports:        req.PaymentLamports,
		AcceptDeadline:         deadline,
		CompletionDurationSecs: req.CompletionDurationSecs,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.ToGigResponse(created))
}

func (h *GigHandler) GetGig(c *gin.Context) {
	id, ok := gigIDParam(c)
	if !ok {
		return
	}
	g, err := h.getUC.Execute(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.ToGigResponse(g))
}

// ListGigs обрабатывает GET /api/gigs?status=&city=&category=&poster_id=&worker_id=&limit=&offset=
func (h *GigHandler) ListGigs(c *gin.Context) {
	filter := repository.GigFilter{
		City:     c.Query("city"),
		Category: c.Query("category"),
		Limit:    parseIntQuery(c, "limit", gig.DefaultListLimit),
		Offset:   parseIntQuery(c, "offset", 0),
	}
	if filter.Limit <= 0 || filter.Limit > gig.MaxListLimit {
		filter.Limit = gig.DefaultListLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	if s := c.Query("status"); s != "" {
		status, err := valueobject.NewGigStatus(s)
		if err != nil {
			response.Error(c, err)
			return
		}
		filter.Status = status
	}
	var err error
	if filter.PosterID, err = dto.ParseOptionalUUID(c.Query("poster_id")); err != nil {
		response.BadRequest(c, "некорректный poster_id")
		return
	}
	if filter.WorkerID, err = dto.ParseOptionalUUID(c.Query("worker_id")); err != nil {
		response.BadRequest(c, "некорректный worker_id")
		return
	}

	gigs, total, err := h.listUC.Execute(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paginated(c, dto.ToGigResponses(gigs), total, filter.Limit, filter.Offset)
}

// CancelDraft обрабатывает POST /api/gigs/:id/cancel-draft.
func (h *GigHandler) CancelDraft(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := gigIDParam(c)
	if !ok {
		return
	}
	g, err := h.cancelDraftUC.Execute(c.Request.Context(), id, actor.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.ToGigResponse(g))
}

func (h *GigHandler) ListTransactions(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := gigIDParam(c)
	if !ok {
		return
	}
	entries, err := h.transactionsUC.Execute(c.Request.Context(), id, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, entries)
}

func (h *GigHandler) GetDispute(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := gigIDParam(c)
	if !ok {
		return
	}
	d, err := h.disputeUC.Execute(c.Request.Context(), id, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, d)
}
