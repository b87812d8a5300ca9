package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"prodcat/internal"
	"prodcat/internal/config"
	"prodcat/internal/storage"
	"prodcat/internal/validate"
	"prodcat/internal/ws"
)

const (
	productListCacheKey = "products:all"
	productListCacheTTL = 30 * time.Second
)

type Handlers struct {
	db    *storage.DB
	cfg   config.Config
	cache *redis.Client // nil disables caching
	ctrl  *ws.Controller
}

func New(db *storage.DB, cfg config.Config, cache *redis.Client, ctrl *ws.Controller) *Handlers {
	h := &Handlers{db: db, cfg: cfg, cache: cache, ctrl: ctrl}
	if ctrl != nil {
		ctrl.OnImportComplete(func() { h.invalidateListCache(context.Background()) })
	}
	return h
}

type productRequest struct {
	Name        string  `json:"name" binding:"required"`
	Description string  `json:"description" binding:"required"`
	Price       float64 `json:"price"`
	Quantity    int     `json:"quantity"`
}

func (req productRequest) check() string {
	if !validate.Name(req.Name) {
		return "name must not be empty"
	}
	if !validate.Description(req.Description) {
		return "description must not be empty"
	}
	if !validate.Price(req.Price) {
		return "price must be zero or greater"
	}
	if !validate.Quantity(req.Quantity) {
		return "quantity must be zero or greater"
	}
	return ""
}

func (h *Handlers) CreateProduct(c *gin.Context) {
	var req productRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if msg := req.check(); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}

	product, err := h.db.CreateProduct(internal.Product{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Quantity:    req.Quantity,
	})
	if err != nil {
		zap.L().Error("failed to create product", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create product"})
		return
	}

	h.invalidateListCache(c)
	c.JSON(http.StatusCreated, gin.H{"product": product})
}

func (h *Handlers) ListProducts(c *gin.Context) {
	if h.cache != nil {
		if raw, err := h.cache.Get(c, productListCacheKey).Bytes(); err == nil {
			c.Data(http.StatusOK, "application/json; charset=utf-8", raw)
			return
		}
	}

	products, err := h.db.ListProducts()
	if err != nil {
		zap.L().Error("failed to list products", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch products"})
		return
	}
	if products == nil {
		products = []internal.Product{}
	}

	payload := gin.H{"products": products, "total": len(products)}
	if h.cache != nil {
		if raw, err := json.Marshal(payload); err == nil {
			h.cache.Set(c, productListCacheKey, raw, productListCacheTTL)
		}
	}
	c.JSON(http.StatusOK, payload)
}

func (h *Handlers) FilterProducts(c *gin.Context) {
	minPrice, err := strconv.ParseFloat(c.Query("min_price"), 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "min_price must be a number"})
		return
	}

	products, err := h.db.FilterByMinPrice(minPrice)
	if err != nil {
		zap.L().Error("failed to filter products", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to filter products"})
		return
	}
	if products == nil {
		products = []internal.Product{}
	}
	c.JSON(http.StatusOK, gin.H{"products": products, "total": len(products)})
}

func (h *Handlers) LowStockProducts(c *gin.Context) {
	threshold, err := strconv.Atoi(c.DefaultQuery("threshold", "10"))
	if err != nil || threshold < 0 {
		threshold = 10
	}

	products, err := h.db.ListLowStock(threshold)
	if err != nil {
		zap.L().Error("failed to list low-stock products", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch products"})
		return
	}
	if products == nil {
		products = []internal.Product{}
	}
	c.JSON(http.StatusOK, gin.H{"products": products, "total": len(products), "threshold": threshold})
}

func (h *Handlers) HighStockProducts(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "5"))
	if err != nil || limit <= 0 {
		limit = 5
	}

	products, err := h.db.ListTopStock(limit)
	if err != nil {
		zap.L().Error("failed to list high-stock products", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch products"})
		return
	}
	if products == nil {
		products = []internal.Product{}
	}
	c.JSON(http.StatusOK, gin.H{"products": products, "total": len(products)})
}

func (h *Handlers) GetProductByID(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid product id"})
		return
	}

	product, err := h.db.GetProductByID(id)
	if err != nil {
		zap.L().Error("failed to get product", zap.Int64("id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch product"})
		return
	}
	if product == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"product": product})
}

func (h *Handlers) UpdateProduct(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid product id"})
		return
	}

	var req productRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if msg := req.check(); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}

	ok, err := h.db.UpdateProduct(internal.Product{
		ID:          id,
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Quantity:    req.Quantity,
	})
	if err != nil {
		zap.L().Error("failed to update product", zap.Int64("id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update product"})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
		return
	}

	h.invalidateListCache(c)
	product, err := h.db.GetProductByID(id)
	if err != nil || product == nil {
		c.JSON(http.StatusOK, gin.H{"updated": true})
		return
	}
	c.JSON(http.StatusOK, gin.H{"product": product})
}

func (h *Handlers) DeleteProduct(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid product id"})
		return
	}

	ok, err := h.db.DeleteProduct(id)
	if err != nil {
		zap.L().Error("failed to delete product", zap.Int64("id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete product"})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
		return
	}

	h.invalidateListCache(c)
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handlers) invalidateListCache(ctx context.Context) {
	if h.cache == nil {
		return
	}
	if err := h.cache.Del(ctx, productListCacheKey).Err(); err != nil && err != redis.Nil {
		zap.L().Warn("failed to invalidate product cache", zap.Error(err))
	}
}
