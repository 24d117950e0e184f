// Package skills loads markdown skill files (instructions the agent can
// follow for a specific task) from a workspace-local directory and one or
// more global directories shared across agents.
package skills

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Skill is one loaded skill file: YAML frontmatter metadata plus body.
type Skill struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Path        string `yaml:"-"`
	Body        string `yaml:"-"`
}

// Loader scans workspaceDir and one or more global directories for
// "*.md" skill files, caching the parsed result until Load is called
// again (e.g. by Watcher on a filesystem event).
type Loader struct {
	dirs []string // workspace dir first, so a workspace skill of the same
	// name overrides a global one with the same Name.

	mu     sync.RWMutex
	skills []Skill
}

// NewLoader builds a Loader over workspaceDir and any non-empty
// globalDirs, and does an initial synchronous Load.
func NewLoader(workspaceDir string, globalDirs ...string) *Loader {
	dirs := make([]string, 0, 1+len(globalDirs))
	if workspaceDir != "" {
		dirs = append(dirs, filepath.Join(workspaceDir, "skills"))
	}
	for _, d := range globalDirs {
		if d != "" {
			dirs = append(dirs, d)
		}
	}

	l := &Loader{dirs: dirs}
	_ = l.Load()
	return l
}

// Load re-scans every configured directory and replaces the cached skill
// set. A missing directory is skipped, not an error — skills are optional.
func (l *Loader) Load() error {
	byName := make(map[string]Skill)

	for _, dir := range l.dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return fmt.Errorf("skills: read dir %s: %w", dir, err)
		}
		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
				continue
			}
			path := filepath.Join(dir, entry.Name())
			skill, err := parseSkillFile(path)
			if err != nil {
				continue
			}
			if _, exists := byName[skill.Name]; !exists {
				byName[skill.Name] = skill
			}
		}
	}

	skills := make([]Skill, 0, len(byName))
	for _, s := range byName {
		skills = append(skills, s)
	}
	sort.Slice(skills, func(i, j int) bool { return skills[i].Name < skills[j].Name })

	l.mu.Lock()
	l.skills = skills
	l.mu.Unlock()
	return nil
}

func parseSkillFile(path string) (Skill, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Skill{}, err
	}

	content := string(data)
	meta := Skill{Path: path}

	if strings.HasPrefix(content, "---\n") {
		if end := strings.Index(content[4:], "\n---"); end >= 0 {
			frontmatter := content[4 : 4+end]
			rest := content[4+end+4:]
			_ = yaml.Unmarshal([]byte(frontmatter), &meta)
			meta.Body = strings.TrimLeft(rest, "\n")
		}
	}

	if meta.Name == "" {
		base := filepath.Base(path)
		meta.Name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	if meta.Body == "" {
		meta.Body = content
	}
	meta.Path = path

	return meta, nil
}

// ListSkills returns every loaded skill, name-sorted.
func (l *Loader) ListSkills() []Skill {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Skill, len(l.skills))
	copy(out, l.skills)
	return out
}

// FilterSkills returns the skills allowed by allowList: nil means every
// loaded skill, an empty non-nil slice means none, otherwise only skills
// whose Name appears in allowList.
func (l *Loader) FilterSkills(allowList []string) []Skill {
	all := l.ListSkills()
	if allowList == nil {
		return all
	}
	if len(allowList) == 0 {
		return nil
	}

	allowed := make(map[string]bool, len(allowList))
	for _, name := range allowList {
		allowed[name] = true
	}

	out := make([]Skill, 0, len(all))
	for _, s := range all {
		if allowed[s.Name] {
			out = append(out, s)
		}
	}
	return out
}

// Get returns the skill with the given name.
func (l *Loader) Get(name string) (Skill, bool) {
	for _, s := range l.ListSkills() {
		if s.Name == name {
			return s, true
		}
	}
	return Skill{}, false
}

// BuildSummary renders the allowed skills as inline XML for the system
// prompt, so the model can follow a skill's instructions without an
// extra tool round-trip.
func (l *Loader) BuildSummary(allowList []string) string {
	filtered := l.FilterSkills(allowList)
	if len(filtered) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("<available_skills>\n")
	for _, s := range filtered {
		fmt.Fprintf(&b, "<skill name=%q description=%q>\n%s\n</skill>\n", s.Name, s.Description, s.Body)
	}
	b.WriteString("</available_skills>")
	return b.String()
}
