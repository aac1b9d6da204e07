package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/gosched/internal/domain"
	"github.com/jonesrussell/gosched/internal/logger"
	"github.com/jonesrussell/gosched/internal/store"
)

// CategoriesHandler serves category CRUD. Writes are admin-only, enforced
// by the route group.
type CategoriesHandler struct {
	categories CategoryStore
	logger     logger.Interface
}

// NewCategoriesHandler creates a categories handler.
func NewCategoriesHandler(categories CategoryStore, log logger.Interface) *CategoriesHandler {
	return &CategoriesHandler{categories: categories, logger: log}
}

// List handles GET /api/v1/categories.
func (h *CategoriesHandler) List(c *gin.Context) {
	categories, err := h.categories.List(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to list categories", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list categories"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"categories": categories})
}

// Get handles GET /api/v1/categories/:id.
func (h *CategoriesHandler) Get(c *gin.Context) {
	id, ok := categoryID(c)
	if !ok {
		return
	}

	category, err := h.categories.GetByID(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("failed to load category", "category_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load category"})
		return
	}
	if category == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "category not found"})
		return
	}
	c.JSON(http.StatusOK, category)
}

// Create handles POST /api/v1/categories.
func (h *CategoriesHandler) Create(c *gin.Context) {
	var req CategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	category := &domain.Category{Name: req.Name, Description: req.Description}
	if err := h.categories.Add(c.Request.Context(), category); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "category name already exists"})
			return
		}
		h.logger.Error("failed to create category", "name", req.Name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create category"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": category.ID})
}

// Update handles PUT /api/v1/categories/:id.
func (h *CategoriesHandler) Update(c *gin.Context) {
	id, ok := categoryID(c)
	if !ok {
		return
	}

	var req CategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	category := &domain.Category{ID: id, Name: req.Name, Description: req.Description}
	if err := h.categories.Update(c.Request.Context(), category); err != nil {
		switch {
		case errors.Is(err, store.ErrReservedCategory):
			c.JSON(http.StatusBadRequest, gin.H{"error": "category 0 is reserved"})
		case errors.Is(err, store.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "category not found"})
		case errors.Is(err, store.ErrDuplicate):
			c.JSON(http.StatusBadRequest, gin.H{"error": "category name already exists"})
		default:
			h.logger.Error("failed to update category", "category_id", id, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update category"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id})
}

// Delete handles DELETE /api/v1/categories/:id.
func (h *CategoriesHandler) Delete(c *gin.Context) {
	id, ok := categoryID(c)
	if !ok {
		return
	}

	if err := h.categories.Delete(c.Request.Context(), id); err != nil {
		switch {
		case errors.Is(err, store.ErrReservedCategory):
			c.JSON(http.StatusBadRequest, gin.H{"error": "category 0 is reserved"})
		case errors.Is(err, store.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "category not found"})
		default:
			h.logger.Error("failed to delete category", "category_id", id, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete category"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id})
}

// categoryID parses the :id path parameter, writing a 400 when it is not an
// integer.
func categoryID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "category id must be an integer"})
		return 0, false
	}
	return id, true
}
