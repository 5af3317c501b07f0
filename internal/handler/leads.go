package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"leadmatch/internal/model"
)

// Leads is the agent-side lead management used by the handler
type Leads interface {
	RegisterAgent(ctx context.Context, req model.AgentRegisterRequest) (*model.Agent, error)
	GetAgent(ctx context.Context, id string) (*model.Agent, error)
	ListLeads(ctx context.Context, agentID string, status model.LeadStatus) ([]model.Lead, error)
	GetLead(ctx context.Context, id string) (*model.Lead, error)
	UpdateStatus(ctx context.Context, leadID string, update model.LeadStatusUpdate) (*model.Lead, error)
	Reassign(ctx context.Context, leadID, agentID string) (*model.Lead, error)
}

// LeadHandler handles agent and lead requests
type LeadHandler struct {
	leads Leads
}

// NewLeadHandler creates a new lead handler
func NewLeadHandler(leads Leads) *LeadHandler {
	return &LeadHandler{leads: leads}
}

// RegisterAgent handles POST /api/v1/agents
func (h *LeadHandler) RegisterAgent(c *gin.Context) {
	var req model.AgentRegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	agent, err := h.leads.RegisterAgent(c.Request.Context(), req)
	if err != nil {
		respondError(c, "Register agent", err)
		return
	}
	c.JSON(http.StatusCreated, agent)
}

// ListAgentLeads handles GET /api/v1/agents/:id/leads?status=
func (h *LeadHandler) ListAgentLeads(c *gin.Context) {
	agentID := c.Param("id")
	if _, err := h.leads.GetAgent(c.Request.Context(), agentID); err != nil {
		respondError(c, "List leads", err)
		return
	}

	leads, err := h.leads.ListLeads(c.Request.Context(), agentID, model.LeadStatus(c.Query("status")))
	if err != nil {
		respondError(c, "List leads", err)
		return
	}
	c.JSON(http.StatusOK, model.LeadListResponse{Leads: leads, Total: len(leads)})
}

// GetLead handles GET /api/v1/leads/:id
func (h *LeadHandler) GetLead(c *gin.Context) {
	lead, err := h.leads.GetLead(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "Get lead", err)
		return
	}
	c.JSON(http.StatusOK, lead)
}

// UpdateStatus handles PATCH /api/v1/leads/:id/status
func (h *LeadHandler) UpdateStatus(c *gin.Context) {
	var req model.LeadStatusUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	lead, err := h.leads.UpdateStatus(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		respondError(c, "Update status", err)
		return
	}
	c.JSON(http.StatusOK, lead)
}

// Reassign handles PUT /api/v1/leads/:id/agent
func (h *LeadHandler) Reassign(c *gin.Context) {
	var req model.LeadReassignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	lead, err := h.leads.Reassign(c.Request.Context(), c.Param("id"), req.AgentID)
	if err != nil {
		respondError(c, "Reassign lead", err)
		return
	}
	c.JSON(http.StatusOK, lead)
}
