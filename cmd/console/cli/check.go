package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"

	"github.com/go-chi/chi/v5"

	"github.com/riordi80/vocational-training-final-project/internal/guard"
	"github.com/riordi80/vocational-training-final-project/internal/rbac"
	"github.com/riordi80/vocational-training-final-project/internal/session"
)

// Exit statuses of the check command.
const (
	checkGranted = 0
	checkFailed  = 1
	checkDenied  = 2
)

// CheckOptions defines available flags for the check command.
type CheckOptions struct {
	IdentityPath string
	Capability   string
	CenterID     int64
	Path         string
	Manifest     []byte
	JSONOutput   bool
	Stdout       io.Writer
	Stderr       io.Writer
}

// CheckSummary describes the JSON response for check.
type CheckSummary struct {
	Granted      bool              `json:"granted"`
	Email        string            `json:"email"`
	Admin        bool              `json:"admin"`
	Capability   string            `json:"capability,omitempty"`
	CenterID     int64             `json:"centerId,omitempty"`
	Path         string            `json:"path,omitempty"`
	State        string            `json:"state,omitempty"`
	Reason       string            `json:"reason,omitempty"`
	Capabilities []rbac.Capability `json:"capabilities"`
}

// CheckCommand evaluates a capability, or a route when Path is set, for the
// identity stored at IdentityPath.
func CheckCommand(opts CheckOptions) int {
	identity, err := readIdentity(opts.IdentityPath)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "check: %v\n", err)
		return checkFailed
	}
	scope := rbac.AnyCenter
	if opts.CenterID > 0 {
		scope = rbac.AtCenter(opts.CenterID)
	}
	summary := CheckSummary{
		Email:        identity.Email,
		Admin:        rbac.IsAdmin(identity),
		CenterID:     opts.CenterID,
		Capabilities: rbac.Capabilities(identity, scope),
	}
	if summary.Capabilities == nil {
		summary.Capabilities = []rbac.Capability{}
	}

	switch {
	case opts.Path != "":
		decision, err := evaluatePath(opts.Manifest, opts.Path, identity)
		if err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "check: %v\n", err)
			return checkFailed
		}
		summary.Path = opts.Path
		summary.State = string(decision.State)
		summary.Reason = decision.Reason
		summary.Granted = decision.Allowed()
	case opts.Capability != "":
		capability, ok := rbac.ParseCapability(opts.Capability)
		if !ok {
			_, _ = fmt.Fprintf(opts.Stderr, "check: unknown capability %q\n", opts.Capability)
			return checkFailed
		}
		summary.Capability = string(capability)
		summary.Granted = rbac.HasCapability(identity, capability, scope)
	default:
		summary.Granted = true
	}

	if opts.JSONOutput {
		if err := json.NewEncoder(opts.Stdout).Encode(summary); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "check: encode json: %v\n", err)
			return checkFailed
		}
	} else {
		renderCheckHuman(opts.Stdout, identity, summary)
	}
	if !summary.Granted {
		return checkDenied
	}
	return checkGranted
}

func readIdentity(path string) (*rbac.Identity, error) {
	if path == "" {
		return nil, fmt.Errorf("--identity is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var identity rbac.Identity
	if err := json.Unmarshal(data, &identity); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return &identity, nil
}

// evaluatePath routes path through the manifest patterns and applies the
// matching rule to an authenticated snapshot of identity.
func evaluatePath(manifest []byte, path string, identity *rbac.Identity) (guard.Decision, error) {
	m, err := guard.ParseManifest(manifest)
	if err != nil {
		return guard.Decision{}, err
	}
	snap := session.Snapshot{Status: session.StatusAuthenticated, Identity: identity}

	var (
		decision guard.Decision
		matched  bool
	)
	r := chi.NewRouter()
	for _, rule := range m.Rules() {
		r.HandleFunc(rule.Pattern, func(_ http.ResponseWriter, req *http.Request) {
			matched = true
			if rule.Public {
				decision = guard.Decision{State: guard.StateAuthorized, Reason: "public"}
				return
			}
			requirement, err := rule.Resolve(req)
			decision = guard.Evaluate(snap, requirement)
			if err != nil && decision.Allowed() {
				decision = guard.Decision{State: guard.StateDenied, Reason: "center parameter"}
			}
		})
	}
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	if !matched {
		return guard.Decision{}, fmt.Errorf("no route matches %s", path)
	}
	return decision, nil
}

func renderCheckHuman(out io.Writer, identity *rbac.Identity, s CheckSummary) {
	verdict := "DENIED"
	if s.Granted {
		verdict = "GRANTED"
	}
	who := fmt.Sprintf("%s (%s)", identity.Email, identity.GlobalRole.Label())
	switch {
	case s.Path != "":
		_, _ = fmt.Fprintf(out, "%s %s for %s: %s", verdict, s.Path, who, s.State)
		if s.Reason != "" {
			_, _ = fmt.Fprintf(out, " (%s)", s.Reason)
		}
		_, _ = fmt.Fprintln(out)
	case s.Capability != "":
		where := "any center"
		if s.CenterID > 0 {
			where = fmt.Sprintf("center %d", s.CenterID)
		}
		_, _ = fmt.Fprintf(out, "%s %s at %s for %s\n", verdict, s.Capability, where, who)
	default:
		_, _ = fmt.Fprintf(out, "Identity %s\n", who)
	}
	for _, m := range identity.Centers {
		_, _ = fmt.Fprintf(out, " - center %d: %s\n", m.CenterID, m.Role.Label())
	}
	if len(s.Capabilities) > 0 {
		_, _ = fmt.Fprintln(out, "Capabilities in scope:")
		for _, c := range s.Capabilities {
			_, _ = fmt.Fprintf(out, " - %s\n", c)
		}
	}
}
