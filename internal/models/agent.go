package models

import (
	"time"
)

// Agent is a specialist persona that can be messaged
type Agent struct {
	Name        string `json:"name"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

// DisplayTitle falls back to the agent name when no title is set
func (a Agent) DisplayTitle() string {
	if a.Title != "" {
		return a.Title
	}
	return a.Name
}

// KnowledgeItem is one entry of the accumulated knowledge base
type KnowledgeItem struct {
	ID        int64  `json:"id,omitempty"`
	Content   string `json:"content"`
	Category  string `json:"category,omitempty"`
	Agent     string `json:"agent"`
	Query     string `json:"query,omitempty"`
	CreatedAt string `json:"created_at"`
}

// Sender identifies who authored a chat message
type Sender string

const (
	SenderUser   Sender = "user"
	SenderAgent  Sender = "agent"
	SenderSystem Sender = "system"
)

// Message is one entry of a chat transcript
type Message struct {
	ID        string    `json:"id"`
	Sender    Sender    `json:"sender"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// MessageRequest is the body of POST /agents/{name}
type MessageRequest struct {
	Message string `json:"message"`
}

// AgentReply is the response of POST /agents/{name}
type AgentReply struct {
	Response string `json:"response"`
}
