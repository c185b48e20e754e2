package handlers

import (
	"errors"
	"strconv"

	"agro-search/internal/dto"
	"agro-search/internal/repository"
	"agro-search/internal/service"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type ArticleHandler struct {
	ingestService *service.IngestService
	logger        *zap.Logger
}

func NewArticleHandler(ingestService *service.IngestService, logger *zap.Logger) *ArticleHandler {
	return &ArticleHandler{
		ingestService: ingestService,
		logger:        logger,
	}
}

// CreateArticle godoc
// @Summary Add a knowledge article
// @Description Validates the article, embeds title and content, and stores it.
// @Tags articles
// @Accept json
// @Produce json
// @Param request body dto.CreateArticleRequest true "Article"
// @Security Bearer
// @Success 201 {object} dto.ArticleResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 401 {object} dto.ErrorResponse
// @Failure 403 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /api/v1/articles [post]
func (h *ArticleHandler) CreateArticle(c *fiber.Ctx) error {
	var req dto.CreateArticleRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "Invalid request body"})
	}

	article, err := h.ingestService.CreateArticle(c.UserContext(), &req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidArticle) {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: err.Error()})
		}
		h.logger.Error("Failed to create article", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "Failed to create article"})
	}

	return c.Status(fiber.StatusCreated).JSON(article)
}

// GetArticle godoc
// @Summary Get a knowledge article
// @Tags articles
// @Produce json
// @Param id path int true "Article ID"
// @Security Bearer
// @Success 200 {object} dto.ArticleResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /api/v1/articles/{id} [get]
func (h *ArticleHandler) GetArticle(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "Invalid article ID"})
	}

	article, err := h.ingestService.GetArticle(c.UserContext(), id)
	if err != nil {
		if errors.Is(err, repository.ErrArticleNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "Article not found"})
		}
		h.logger.Error("Failed to get article", zap.Int64("id", id), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "Failed to get article"})
	}

	return c.JSON(article)
}

// Reembed godoc
// @Summary Re-embed stale articles
// @Description Embeds every article whose vector is missing or has the wrong dimensionality.
// @Tags articles
// @Produce json
// @Param batch query int false "Batch size" default(50)
// @Security Bearer
// @Success 200 {object} dto.ReembedResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /api/v1/articles/reembed [post]
func (h *ArticleHandler) Reembed(c *fiber.Ctx) error {
	batch := c.QueryInt("batch", service.DefaultReembedBatchSize)

	report, err := h.ingestService.Reembed(c.UserContext(), batch)
	if err != nil {
		h.logger.Error("Re-embedding failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "Re-embedding failed"})
	}

	return c.JSON(report)
}
