// Package profile loads the company profile, topic policy and visitor-facing
// copy, and renders them into the system prompt and canned replies.
package profile

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"

	"welcome-backend/internal/models"
)

//go:embed default.yaml
var defaultDocument []byte

// Profile is the static data the assistant is built from.
type Profile struct {
	Company      models.CompanyProfile `yaml:"company"`
	VisitorTypes []models.VisitorType  `yaml:"visitor_types"`
	Policy       models.TopicPolicy    `yaml:"policy"`
	Copy         models.Copy           `yaml:"copy"`
}

var funcs = template.FuncMap{"join": strings.Join}

// Default returns the embedded profile.
func Default() (*Profile, error) {
	var p Profile
	if err := yaml.Unmarshal(defaultDocument, &p); err != nil {
		return nil, fmt.Errorf("failed to parse embedded profile: %w", err)
	}
	return &p, nil
}

// Load returns the embedded profile overlaid with the YAML document at path.
// Keys missing from the document keep their default values.
func Load(path string) (*Profile, error) {
	p, err := Default()
	if err != nil {
		return nil, err
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read profile %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, p); err != nil {
			return nil, fmt.Errorf("failed to parse profile %s: %w", path, err)
		}
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate checks required fields and that every template renders.
func (p *Profile) Validate() error {
	if strings.TrimSpace(p.Company.Name) == "" {
		return errors.New("profile: company name is required")
	}
	if len(p.Policy.RedirectReplies) == 0 {
		return errors.New("profile: at least one redirect reply is required")
	}
	if _, err := RenderSystemPrompt(p); err != nil {
		return err
	}
	for _, reply := range p.Policy.RedirectReplies {
		if _, err := p.Interpolate(reply); err != nil {
			return err
		}
	}
	for key, msg := range p.Copy.WelcomeMessages {
		if _, err := p.Interpolate(msg); err != nil {
			return fmt.Errorf("profile: welcome message %q: %w", key, err)
		}
	}
	if _, err := p.Interpolate(p.Copy.Apology); err != nil {
		return fmt.Errorf("profile: apology: %w", err)
	}
	return nil
}

// Interpolate renders text with the company profile as template data.
func (p *Profile) Interpolate(text string) (string, error) {
	return render("copy", text, p.Company)
}

// Welcome returns the welcome message for a visitor type, falling back to the default one.
func (p *Profile) Welcome(visitorType string) (string, error) {
	msg, ok := p.Copy.WelcomeMessages[visitorType]
	if !ok {
		msg = p.Copy.WelcomeMessages["default"]
	}
	return p.Interpolate(msg)
}

// Info returns the public summary of the company.
func (p *Profile) Info() models.CompanyInfo {
	return models.CompanyInfo{
		Name:        p.Company.Name,
		Specialties: append([]string(nil), p.Company.Specialties...),
	}
}

// RenderSystemPrompt renders the system prompt. It is pure: the same profile
// always yields the same text.
func RenderSystemPrompt(p *Profile) (string, error) {
	visitors := make([]models.VisitorType, 0, len(p.VisitorTypes))
	for _, v := range p.VisitorTypes {
		desc, err := p.Interpolate(v.Description)
		if err != nil {
			return "", fmt.Errorf("profile: visitor type %q: %w", v.Key, err)
		}
		v.Description = desc
		visitors = append(visitors, v)
	}

	data := struct {
		Company      models.CompanyProfile
		VisitorTypes []models.VisitorType
	}{p.Company, visitors}

	prompt, err := render("system_prompt", p.Copy.SystemPrompt, data)
	if err != nil {
		return "", fmt.Errorf("profile: system prompt: %w", err)
	}
	return prompt, nil
}

func render(name, text string, data any) (string, error) {
	tmpl, err := template.New(name).Funcs(funcs).Option("missingkey=error").Parse(text)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", err
	}
	return sb.String(), nil
}
