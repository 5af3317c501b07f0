package model

import "time"

// Agent is a realtor who receives leads
type Agent struct {
	ID              string    `json:"id" db:"id"`
	Handle          string    `json:"handle" db:"handle"`
	FullName        string    `json:"full_name" db:"full_name"`
	Phone           string    `json:"phone,omitempty" db:"phone"`
	Company         string    `json:"company,omitempty" db:"company"`
	NotifyChannelID string    `json:"notify_channel_id,omitempty" db:"notify_channel_id"`
	IsActive        bool      `json:"is_active" db:"is_active"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}

// AgentRegisterRequest is the body of POST /agents
type AgentRegisterRequest struct {
	Handle          string `json:"handle" binding:"required"`
	FullName        string `json:"full_name" binding:"required"`
	Phone           string `json:"phone"`
	Company         string `json:"company"`
	NotifyChannelID string `json:"notify_channel_id"`
}
