package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/bashclaw/bashclaw/internal/skills"
)

// SkillSearchTool lets the agent look up a skill by name or keyword when
// the skill set is too large to inline in the system prompt (see
// internal/agent/loop_history.go's resolveSkillsSummary inline threshold).
type SkillSearchTool struct {
	loader *skills.Loader
}

// NewSkillSearchTool builds a skill_search tool backed by loader.
func NewSkillSearchTool(loader *skills.Loader) *SkillSearchTool {
	return &SkillSearchTool{loader: loader}
}

func (t *SkillSearchTool) Name() string { return "skill_search" }

func (t *SkillSearchTool) Description() string {
	return "Search available skills by name or keyword and return the matching skill's full instructions"
}

func (t *SkillSearchTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"query": map[string]interface{}{
				"type":        "string",
				"description": "Skill name or keyword to search for",
			},
		},
		"required": []string{"query"},
	}
}

func (t *SkillSearchTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	query, _ := args["query"].(string)
	if query == "" {
		return ErrorResult("query is required")
	}
	if t.loader == nil {
		return NewResult("No skills are configured.")
	}

	if skill, ok := t.loader.Get(query); ok {
		return NewResult(fmt.Sprintf("Skill %q:\n%s", skill.Name, skill.Body))
	}

	lower := strings.ToLower(query)
	var matches []string
	for _, s := range t.loader.ListSkills() {
		if strings.Contains(strings.ToLower(s.Name), lower) || strings.Contains(strings.ToLower(s.Description), lower) {
			matches = append(matches, fmt.Sprintf("- %s: %s", s.Name, s.Description))
		}
	}

	if len(matches) == 0 {
		return NewResult(fmt.Sprintf("No skill matches %q.", query))
	}
	return NewResult(fmt.Sprintf("Matching skills:\n%s", strings.Join(matches, "\n")))
}
