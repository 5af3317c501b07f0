package handler

import "github.com/gin-gonic/gin"

// RegisterRoutes mounts the API under api. A nil limiter disables client
// rate limiting.
func RegisterRoutes(api *gin.RouterGroup, conv *ConversationHandler, leads *LeadHandler, inv *InventoryHandler, limiter *ClientRateLimiter) {
	clients := api.Group("/clients/:id")
	if limiter != nil {
		clients.Use(limiter.Middleware())
	}
	{
		clients.POST("/start", conv.Start)
		clients.POST("/messages", conv.Message)
		clients.POST("/voice", conv.Voice)
		clients.POST("/selection", conv.Select)
		clients.POST("/contact", conv.Contact)
		clients.POST("/cancel", conv.Cancel)
	}

	api.POST("/agents", leads.RegisterAgent)
	api.GET("/agents/:id/leads", leads.ListAgentLeads)
	api.GET("/leads/:id", leads.GetLead)
	api.PATCH("/leads/:id/status", leads.UpdateStatus)
	api.PUT("/leads/:id/agent", leads.Reassign)

	api.GET("/inventory", inv.Status)
	api.POST("/inventory/refresh", inv.Refresh)
}
