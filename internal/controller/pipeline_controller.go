package controller

import (
	"github.com/gofiber/fiber/v2"

	"writeup-rag-be/internal/dto"
	"writeup-rag-be/internal/pkg/serverutils"
	"writeup-rag-be/internal/repository/contract"
	"writeup-rag-be/internal/service"
)

type IPipelineController interface {
	RegisterRoutes(r fiber.Router)
	RunStatus(ctx *fiber.Ctx) error
	Reindex(ctx *fiber.Ctx) error
}

type pipelineController struct {
	pipelineService service.IPipelineService
	indexerService  service.IIndexerService
}

func NewPipelineController(pipelineService service.IPipelineService, indexerService service.IIndexerService) IPipelineController {
	return &pipelineController{
		pipelineService: pipelineService,
		indexerService:  indexerService,
	}
}

func (c *pipelineController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/pipeline/v1")
	h.Get("runs/:runId", c.RunStatus)
	h.Post("reindex", c.Reindex)
}

func (c *pipelineController) RunStatus(ctx *fiber.Ctx) error {
	runId := ctx.Params("runId")
	if runId == "" {
		return fiber.NewError(fiber.StatusBadRequest, "run id is required")
	}

	res, err := c.pipelineService.Status(ctx.Context(), runId)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success show run status", res))
}

func (c *pipelineController) Reindex(ctx *fiber.Ctx) error {
	var req dto.ReindexRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}

	err := serverutils.ValidateRequest(req)
	if err != nil {
		return err
	}

	mode := contract.UpdateMode(req.Mode)
	if mode == "" {
		mode = contract.ModeOverwrite
	}

	indexed, err := c.indexerService.Reindex(ctx.Context(), mode)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success reindex corpora", &dto.ReindexResponse{
		Mode:     string(mode),
		Writeups: indexed,
	}))
}
