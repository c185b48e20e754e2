package handlers

import (
	"strings"

	"agro-search/internal/dto"
	"agro-search/internal/service"
	"agro-search/pkg/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"go.uber.org/zap"
)

const (
	errMissingQuery      = "Query parameter 'q' is required"
	errSearchUnavailable = "Search is temporarily unavailable. Please try again later."
)

type SearchHandler struct {
	searchService *service.SearchService
	logger        *zap.Logger
}

func NewSearchHandler(searchService *service.SearchService, logger *zap.Logger) *SearchHandler {
	return &SearchHandler{
		searchService: searchService,
		logger:        logger,
	}
}

// Search godoc
// @Summary Search the agronomy knowledge base
// @Description Embeds the question and returns up to five articles whose cosine similarity exceeds the relevance threshold, most similar first.
// @Tags search
// @Produce json
// @Param q query string true "Free-text question"
// @Success 200 {object} dto.SearchResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /search [get]
func (h *SearchHandler) Search(c *fiber.Ctx) error {
	query := utils.CopyString(c.Query("q"))
	if strings.TrimSpace(query) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: errMissingQuery})
	}

	results, err := h.searchService.Search(c.UserContext(), query)
	if err != nil {
		h.logger.Error("Knowledge search failed",
			zap.String("stage", service.Stage(err)),
			zap.Int("query_length", len(query)),
			zap.String("request_id", middleware.GetRequestID(c)),
			zap.Error(err),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: errSearchUnavailable})
	}

	return c.JSON(dto.NewSearchResponse(query, results))
}
