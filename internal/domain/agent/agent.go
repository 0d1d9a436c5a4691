package agent

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/kailas-cloud/equidex/internal/domain"
)

// Agent is a named analytical role with an instruction template (immutable).
// The template may reference {{.TokenBudget}}; it is instantiated per Render call
// and never written back.
type Agent struct {
	name     string
	role     string
	function string
	query    string
	tmpl     *template.Template
}

// Prompt is a rendered system/user pair ready for the generation service.
type Prompt struct {
	System string
	User   string
}

type templateData struct {
	TokenBudget int
}

// New parses the function template and creates an Agent.
// A malformed template fails with domain.ErrInvalidTemplate.
// query is the retrieval query for the agent's domain focus; empty falls back to role.
func New(name, role, function, query string) (Agent, error) {
	if strings.TrimSpace(name) == "" {
		return Agent{}, fmt.Errorf("%w: agent name is required", domain.ErrInvalidTemplate)
	}
	if strings.TrimSpace(function) == "" {
		return Agent{}, fmt.Errorf("%w: agent %q has no function", domain.ErrInvalidTemplate, name)
	}

	tmpl, err := template.New(name).Option("missingkey=error").Parse(function)
	if err != nil {
		return Agent{}, fmt.Errorf("%w: agent %q: %v", domain.ErrInvalidTemplate, name, err)
	}
	// Execute once with and without a budget so bad field references fail at startup.
	for _, budget := range []int{0, 1} {
		if err := tmpl.Execute(&strings.Builder{}, templateData{TokenBudget: budget}); err != nil {
			return Agent{}, fmt.Errorf("%w: agent %q: %v", domain.ErrInvalidTemplate, name, err)
		}
	}

	if strings.TrimSpace(query) == "" {
		query = role
	}

	return Agent{name: name, role: role, function: function, query: query, tmpl: tmpl}, nil
}

// MustNew is New for the static registry; it panics on a malformed template.
func MustNew(name, role, function, query string) Agent {
	a, err := New(name, role, function, query)
	if err != nil {
		panic(err)
	}
	return a
}

// Name returns the agent name, the stable key of its analysis slot.
func (a Agent) Name() string { return a.name }

// Role returns the role description.
func (a Agent) Role() string { return a.role }

// Function returns the raw, uninstantiated instruction template.
func (a Agent) Function() string { return a.function }

// Query returns the retrieval query used to fetch the agent's context.
func (a Agent) Query() string { return a.query }

// Instruction instantiates the function template. tokenBudget <= 0 means no budget.
func (a Agent) Instruction(tokenBudget int) (string, error) {
	if a.tmpl == nil {
		return "", fmt.Errorf("%w: agent %q was not constructed with New", domain.ErrInvalidTemplate, a.name)
	}
	if tokenBudget < 0 {
		tokenBudget = 0
	}

	var sb strings.Builder
	if err := a.tmpl.Execute(&sb, templateData{TokenBudget: tokenBudget}); err != nil {
		return "", fmt.Errorf("%w: agent %q: %v", domain.ErrInvalidTemplate, a.name, err)
	}
	return sb.String(), nil
}

// Render pairs the agent's role and instantiated function with the joined context.
func (a Agent) Render(context []string, tokenBudget int) (Prompt, error) {
	fn, err := a.Instruction(tokenBudget)
	if err != nil {
		return Prompt{}, err
	}

	system := fmt.Sprintf(
		"You are a: %s. Your role is: %s. Your function is: %s. "+
			"Based on your role and function, do the task you are given. "+
			"Do not give me anything else other than the given task",
		a.name, a.role, fn,
	)

	return Prompt{System: system, User: strings.Join(context, "\n\n")}, nil
}
