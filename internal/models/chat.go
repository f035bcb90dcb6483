package models

// Role tags who authored a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single entry of a conversation. Never mutated once appended.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// WelcomeRequest is the payload of POST /api/welcome.
type WelcomeRequest struct {
	Message *string `json:"message"`
}

// WelcomeResponse is the reply to a visitor message.
type WelcomeResponse struct {
	Response  string  `json:"response"`
	Timestamp float64 `json:"timestamp"`
}

// ResetResponse is the reply to POST /api/reset.
type ResetResponse struct {
	Response          string `json:"response"`
	ConversationReset bool   `json:"conversation_reset"`
}

// HealthResponse is the reply to GET /api/health.
type HealthResponse struct {
	Status  string       `json:"status"`
	Message string       `json:"message"`
	Config  HealthConfig `json:"config"`
}

type HealthConfig struct {
	Model   string `json:"model"`
	Company string `json:"company"`
	Version string `json:"version"`
}

// StatsResponse is the reply to GET /api/stats.
type StatsResponse struct {
	ConversationLength int         `json:"conversation_length"`
	ModelUsed          string      `json:"model_used"`
	CompanyInfo        CompanyInfo `json:"company_info"`
}

type CompanyInfo struct {
	Name        string   `json:"name"`
	Specialties []string `json:"specialties"`
}
