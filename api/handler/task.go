package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/questlog/api/transport"
	"github.com/fastygo/questlog/pkg/httpcontext"
	"github.com/fastygo/questlog/repository"
	"github.com/fastygo/questlog/usecase/progression"
	taskUC "github.com/fastygo/questlog/usecase/task"
)

type TaskHandler struct {
	baseHandler
	tasks  *taskUC.UseCase
	engine *progression.Engine
	now    func() time.Time
}

func NewTaskHandler(tasks *taskUC.UseCase, engine *progression.Engine, adapter *httpcontext.Adapter, logger *zap.Logger) *TaskHandler {
	return &TaskHandler{
		baseHandler: newBaseHandler(adapter, logger),
		tasks:       tasks,
		engine:      engine,
		now:         time.Now,
	}
}

// @Summary List tasks
// @Tags tasks
// @Router /api/v1/tasks [get]
func (h *TaskHandler) GetTasks(ctx *fasthttp.RequestCtx) {
	userID := h.userID(ctx)
	if userID == "" {
		return
	}

	args := ctx.QueryArgs()
	filter := repository.TaskFilter{
		Status: string(args.Peek("status")),
		Limit:  parseInt(args.Peek("limit"), 50),
		Offset: parseInt(args.Peek("offset"), 0),
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	tasks, err := h.tasks.ListTasks(stdCtx, userID, filter)
	if err != nil {
		h.respondError(stdCtx, ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, tasks)
}

// @Summary Get task
// @Tags tasks
// @Router /api/v1/tasks/{id} [get]
func (h *TaskHandler) GetTask(ctx *fasthttp.RequestCtx) {
	userID := h.userID(ctx)
	if userID == "" {
		return
	}
	id, ok := h.taskID(ctx)
	if !ok {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	task, err := h.tasks.GetTask(stdCtx, userID, id)
	if err != nil {
		h.respondError(stdCtx, ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, task)
}

// @Summary Create task
// @Tags tasks
// @Router /api/v1/tasks [post]
func (h *TaskHandler) CreateTask(ctx *fasthttp.RequestCtx) {
	userID := h.userID(ctx)
	if userID == "" {
		return
	}

	var req transport.CreateTaskRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.respondInvalid(ctx, "invalid payload")
		return
	}

	input := progression.NewTaskInput{
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
	}
	if req.DueDate != "" {
		due, err := time.Parse(time.RFC3339, req.DueDate)
		if err != nil {
			h.respondInvalid(ctx, "due_date must be RFC3339")
			return
		}
		input.DueDate = &due
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	created, err := h.engine.CreateTask(stdCtx, userID, input)
	if err != nil {
		h.respondError(stdCtx, ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusCreated, created)
}

// @Summary Toggle task completion
// @Tags tasks
// @Router /api/v1/tasks/{id}/toggle [post]
func (h *TaskHandler) ToggleTask(ctx *fasthttp.RequestCtx) {
	userID := h.userID(ctx)
	if userID == "" {
		return
	}
	id, ok := h.taskID(ctx)
	if !ok {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	result, err := h.engine.HandleToggle(stdCtx, userID, id, h.now())
	if err != nil {
		h.respondError(stdCtx, ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, result)
}

// @Summary Delete task
// @Tags tasks
// @Router /api/v1/tasks/{id} [delete]
func (h *TaskHandler) DeleteTask(ctx *fasthttp.RequestCtx) {
	userID := h.userID(ctx)
	if userID == "" {
		return
	}
	id, ok := h.taskID(ctx)
	if !ok {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	if err := h.engine.DeleteTask(stdCtx, userID, id); err != nil {
		h.respondError(stdCtx, ctx, err)
		return
	}
	ctx.SetStatusCode(http.StatusNoContent)
}

func (h *TaskHandler) taskID(ctx *fasthttp.RequestCtx) (string, bool) {
	id, _ := ctx.UserValue("id").(string)
	if id == "" {
		h.respondInvalid(ctx, "missing task id")
		return "", false
	}
	return id, true
}
