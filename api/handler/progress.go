package handler

import (
	"net/http"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/questlog/pkg/httpcontext"
	"github.com/fastygo/questlog/usecase/progression"
)

const maxLeaderboard = 100

type ProgressHandler struct {
	baseHandler
	engine *progression.Engine
	now    func() time.Time
}

func NewProgressHandler(engine *progression.Engine, adapter *httpcontext.Adapter, logger *zap.Logger) *ProgressHandler {
	return &ProgressHandler{
		baseHandler: newBaseHandler(adapter, logger),
		engine:      engine,
		now:         time.Now,
	}
}

// @Summary Get ledger and level progress
// @Tags progress
// @Router /api/v1/progress [get]
func (h *ProgressHandler) GetProgress(ctx *fasthttp.RequestCtx) {
	userID := h.userID(ctx)
	if userID == "" {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	view, err := h.engine.Ledger(stdCtx, userID)
	if err != nil {
		h.respondError(stdCtx, ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, view)
}

// @Summary Provision ledger
// @Tags progress
// @Router /api/v1/progress [post]
func (h *ProgressHandler) Provision(ctx *fasthttp.RequestCtx) {
	userID := h.userID(ctx)
	if userID == "" {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	ledger, err := h.engine.ProvisionLedger(stdCtx, userID)
	if err != nil {
		h.respondError(stdCtx, ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, ledger)
}

// @Summary Reset progress
// @Tags progress
// @Router /api/v1/progress/reset [post]
func (h *ProgressHandler) Reset(ctx *fasthttp.RequestCtx) {
	userID := h.userID(ctx)
	if userID == "" {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	ledger, err := h.engine.ResetProgress(stdCtx, userID)
	if err != nil {
		h.respondError(stdCtx, ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, ledger)
}

// @Summary List achievements
// @Tags progress
// @Router /api/v1/achievements [get]
func (h *ProgressHandler) GetAchievements(ctx *fasthttp.RequestCtx) {
	userID := h.userID(ctx)
	if userID == "" {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	report, err := h.engine.Achievements(stdCtx, userID, h.now())
	if err != nil {
		h.respondError(stdCtx, ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, report)
}

// @Summary Leaderboard
// @Tags progress
// @Router /api/v1/leaderboard [get]
func (h *ProgressHandler) GetLeaderboard(ctx *fasthttp.RequestCtx) {
	if h.userID(ctx) == "" {
		return
	}
	limit := parseInt(ctx.QueryArgs().Peek("limit"), 10)
	if limit > maxLeaderboard {
		limit = maxLeaderboard
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	ledgers, err := h.engine.Leaderboard(stdCtx, limit)
	if err != nil {
		h.respondError(stdCtx, ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, ledgers)
}
