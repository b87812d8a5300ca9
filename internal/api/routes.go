package api

import "github.com/gin-gonic/gin"

func RegisterRoutes(r *gin.Engine, h *Handlers) {
	products := r.Group("/products")
	{
		products.GET("", h.ListProducts)
		products.POST("", h.CreateProduct)
		products.GET("/filter", h.FilterProducts)
		products.GET("/low-stock", h.LowStockProducts)
		products.GET("/high-stock", h.HighStockProducts)
		products.GET("/:id", h.GetProductByID)
		products.PUT("/:id", h.UpdateProduct)
		products.DELETE("/:id", h.DeleteProduct)
	}

	upload := r.Group("/upload")
	{
		upload.POST("/analyze", h.AnalyzeUpload)
		upload.POST("/preview", h.PreviewUpload)
		upload.POST("/validate-duplicates", h.ValidateDuplicatesUpload)
	}

	r.GET("/ws/upload", func(c *gin.Context) {
		h.ctrl.Serve(c.Writer, c.Request)
	})

	r.GET("/health", h.Health)
}
