package models

// CompanyProfile describes the company the assistant represents. Read-only once loaded.
type CompanyProfile struct {
	Name           string   `yaml:"name"`
	Abbreviation   string   `yaml:"abbreviation"`
	Domain         string   `yaml:"domain"`
	Specialties    []string `yaml:"specialties"`
	Zones          []string `yaml:"zones"`
	Experience     string   `yaml:"experience"`
	Certifications []string `yaml:"certifications"`
	Phone          string   `yaml:"phone"`
	Email          string   `yaml:"email"`
}

// VisitorType is one of the categories the assistant classifies visitors into.
type VisitorType struct {
	Key         string `yaml:"key"`
	Label       string `yaml:"label"`
	Description string `yaml:"description"`
}

// TopicPolicy drives the topic gate.
type TopicPolicy struct {
	ForbiddenTopics []string `yaml:"forbidden_topics"`
	DomainKeywords  []string `yaml:"domain_keywords"`
	RedirectReplies []string `yaml:"redirect_replies"`
}

// Copy holds every visitor-facing string. Values may reference profile fields
// with text/template syntax, e.g. {{.Name}}.
type Copy struct {
	SystemPrompt    string            `yaml:"system_prompt"`
	WelcomeMessages map[string]string `yaml:"welcome_messages"`
	Apology         string            `yaml:"apology"`
	HealthMessage   string            `yaml:"health_message"`
	MessageRequired string            `yaml:"message_required"`
	Validation      map[string]string `yaml:"validation"`
	RateLimited     string            `yaml:"rate_limited"`
	ServerError     string            `yaml:"server_error"`
	ResetError      string            `yaml:"reset_error"`
}
