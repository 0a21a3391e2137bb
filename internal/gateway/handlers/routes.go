package handlers

import "github.com/gin-gonic/gin"

// RegisterRoutes mounts the POS API on api, usually the /api/v1 group.
func RegisterRoutes(api *gin.RouterGroup, catalog *CatalogHTTPHandler, settings *SettingsHTTPHandler, pos *POSHTTPHandler) {
	products := api.Group("/products")
	{
		products.GET("", catalog.ListProducts)
		products.POST("", catalog.CreateProduct)
		products.GET("/:id", catalog.GetProduct)
		products.PUT("/:id", catalog.UpdateProduct)
		products.PATCH("/:id/stock", catalog.UpdateStock)
		products.DELETE("/:id", catalog.DeleteProduct)
	}

	settingsGroup := api.Group("/settings")
	{
		settingsGroup.GET("", settings.GetSettings)
		settingsGroup.PUT("", settings.UpdateSettings)
	}

	sales := api.Group("/sales")
	{
		sales.POST("", pos.CreateSale)
		sales.GET("", pos.ListSales)
		sales.GET("/:id", pos.GetSale)
	}

	api.GET("/dashboard", pos.GetDashboard)
}
