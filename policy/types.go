package policy

// Version is the only policy document version understood by the evaluator.
const Version = "2024-01-01"

type Conclusion int

const (
	UNSET Conclusion = iota
	OK
	NG
	ALLOW
	DENY
)

func ParseConclusion(s string) Conclusion {
	switch s {
	case "allow":
		return ALLOW
	case "deny":
		return DENY
	case "ok":
		return OK
	case "ng":
		return NG
	default:
		return UNSET
	}
}

func (c Conclusion) String() string {
	switch c {
	case ALLOW:
		return "allow"
	case DENY:
		return "deny"
	case OK:
		return "ok"
	case NG:
		return "ng"
	default:
		return "unset"
	}
}

// Or merges two conclusions. ALLOW/DENY outrank OK/NG, and contradicting
// conclusions of the same rank cancel out.
func (c Conclusion) Or(other Conclusion) Conclusion {
	if c == UNSET {
		return other
	}
	if other == UNSET {
		return c
	}
	if (c == DENY && other == ALLOW) || (c == ALLOW && other == DENY) {
		return UNSET
	}
	if c == DENY || other == DENY {
		return DENY
	}
	if c == ALLOW || other == ALLOW {
		return ALLOW
	}
	if (c == OK && other == NG) || (c == NG && other == OK) {
		return UNSET
	}
	if c == OK || other == OK {
		return OK
	}
	if c == NG || other == NG {
		return NG
	}
	return UNSET
}

// RequestContext is what a policy expression can Load from.
type RequestContext struct {
	Requester any            `json:"requester"`
	This      any            `json:"this"`
	Params    map[string]any `json:"params"`
}

type PolicyDocument struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Versions    map[string]Policy `json:"versions"`
}

type Policy struct {
	Statements map[string][]Stmt `json:"statements"`
	Defaults   map[string]bool   `json:"defaults"`
}

type Stmt struct {
	Emit      string `json:"emit"`
	Condition Expr   `json:"condition"`
}

type Expr struct {
	Operator string `json:"op"`
	Args     []Expr `json:"args"`
	Const    any    `json:"const,omitempty"`
}

type EvalResult struct {
	Operator string       `json:"op"`
	Args     []EvalResult `json:"args"`
	Result   any          `json:"result"`
	Error    string       `json:"error"`
}
