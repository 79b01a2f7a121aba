package guard

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"gopkg.in/yaml.v3"

	"github.com/riordi80/vocational-training-final-project/internal/rbac"
)

// ErrBadCenterParam is returned when a route's center parameter is not an id.
var ErrBadCenterParam = errors.New("guard: invalid center parameter")

// Rule is one route entry of the manifest.
type Rule struct {
	Pattern     string      `yaml:"pattern" json:"pattern"`
	Methods     []string    `yaml:"methods,omitempty" json:"methods,omitempty"`
	Title       string      `yaml:"title,omitempty" json:"title,omitempty"`
	Public      bool        `yaml:"public,omitempty" json:"public,omitempty"`
	Roles       []string    `yaml:"roles,omitempty" json:"roles,omitempty"`
	Center      *CenterRule `yaml:"center,omitempty" json:"center,omitempty"`
	globalRoles []rbac.GlobalRole
	centerRoles []rbac.CenterRole
}

// CenterRule binds a URL parameter to the center roles it requires.
type CenterRule struct {
	Param string   `yaml:"param" json:"param"`
	Roles []string `yaml:"roles" json:"roles"`
}

// Manifest maps route patterns to their rules.
type Manifest struct {
	rules map[string]*Rule
}

type manifestFile struct {
	Routes []*Rule `yaml:"routes"`
}

// ParseManifest decodes and validates a YAML route manifest.
func ParseManifest(data []byte) (*Manifest, error) {
	var file manifestFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("guard: parse manifest: %w", err)
	}
	m := &Manifest{rules: make(map[string]*Rule, len(file.Routes))}
	for _, rule := range file.Routes {
		if err := rule.compile(); err != nil {
			return nil, err
		}
		if _, dup := m.rules[rule.Pattern]; dup {
			return nil, fmt.Errorf("guard: duplicate route %q", rule.Pattern)
		}
		m.rules[rule.Pattern] = rule
	}
	return m, nil
}

func (r *Rule) compile() error {
	if !strings.HasPrefix(r.Pattern, "/") {
		return fmt.Errorf("guard: route %q must start with /", r.Pattern)
	}
	for i, method := range r.Methods {
		r.Methods[i] = strings.ToUpper(strings.TrimSpace(method))
	}
	for _, raw := range r.Roles {
		if !strings.EqualFold(strings.TrimSpace(raw), string(rbac.RoleAdmin)) &&
			!strings.EqualFold(strings.TrimSpace(raw), string(rbac.RoleStandard)) {
			return fmt.Errorf("guard: route %q: unknown global role %q", r.Pattern, raw)
		}
		r.globalRoles = append(r.globalRoles, rbac.ParseGlobalRole(raw))
	}
	if r.Center != nil {
		if r.Center.Param == "" || !strings.Contains(r.Pattern, "{"+r.Center.Param+"}") {
			return fmt.Errorf("guard: route %q: center param %q not in pattern", r.Pattern, r.Center.Param)
		}
		for _, raw := range r.Center.Roles {
			role, ok := rbac.ParseCenterRole(raw)
			if !ok {
				return fmt.Errorf("guard: route %q: unknown center role %q", r.Pattern, raw)
			}
			r.centerRoles = append(r.centerRoles, role)
		}
	}
	if r.Public && (len(r.globalRoles) > 0 || r.Center != nil) {
		return fmt.Errorf("guard: route %q: public routes cannot require roles", r.Pattern)
	}
	return nil
}

// Lookup returns the rule registered for pattern.
func (m *Manifest) Lookup(pattern string) (*Rule, bool) {
	if m == nil {
		return nil, false
	}
	rule, ok := m.rules[pattern]
	return rule, ok
}

// Rules lists every rule sorted by pattern.
func (m *Manifest) Rules() []Rule {
	if m == nil {
		return nil
	}
	out := make([]Rule, 0, len(m.rules))
	for _, rule := range m.rules {
		out = append(out, *rule)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Pattern < out[j].Pattern })
	return out
}

// Resolve builds the Requirement for a request matched by this rule.
func (r *Rule) Resolve(req *http.Request) (Requirement, error) {
	out := Requirement{GlobalRoles: r.globalRoles}
	if r.Center == nil {
		return out, nil
	}
	raw := chi.URLParam(req, r.Center.Param)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return out, fmt.Errorf("%w: %q", ErrBadCenterParam, raw)
	}
	out.Center = &CenterRequirement{CenterID: id, Roles: r.centerRoles}
	return out, nil
}

// Describe renders the rule's requirement for listings.
func (r Rule) Describe() string {
	if r.Public {
		return "public"
	}
	var parts []string
	if len(r.Roles) > 0 {
		parts = append(parts, "roles="+strings.Join(r.Roles, ","))
	}
	if r.Center != nil {
		parts = append(parts, fmt.Sprintf("center{%s}=%s", r.Center.Param, strings.Join(r.Center.Roles, ",")))
	}
	if len(parts) == 0 {
		return "authenticated"
	}
	return strings.Join(parts, " ")
}
