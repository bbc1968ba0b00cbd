package cache

import (
	"strings"
	"time"
)

// PolicyKind closed set of freshness policies
type PolicyKind uint8

const (
	policyUnset PolicyKind = iota // zero Policy: category default
	PolicyAlwaysFresh
	PolicyFixedTTL
	PolicyStatic
	PolicyCustom
)

func (k PolicyKind) String() string {
	switch k {
	case PolicyAlwaysFresh:
		return "always_fresh"
	case PolicyFixedTTL:
		return "fixed_ttl"
	case PolicyStatic:
		return "static"
	case PolicyCustom:
		return "custom"
	default:
		return "unset"
	}
}

// Policy freshness policy. The zero value means "use the category default"
// and is resolved by the Manager before anything is stored.
type Policy struct {
	kind PolicyKind
	ttl  time.Duration
}

// 预设
var (
	Daily   = FixedTTL(24 * time.Hour)
	Weekly  = FixedTTL(7 * 24 * time.Hour)
	Monthly = FixedTTL(30 * 24 * time.Hour)
)

// AlwaysFresh every read is a miss; nothing is stored
func AlwaysFresh() Policy { return Policy{kind: PolicyAlwaysFresh} }

// Static never expires
func Static() Policy { return Policy{kind: PolicyStatic} }

// FixedTTL expires d after creation
func FixedTTL(d time.Duration) Policy { return Policy{kind: PolicyFixedTTL, ttl: d} }

// Custom caller-chosen TTL for cases the presets don't fit
func Custom(d time.Duration) Policy { return Policy{kind: PolicyCustom, ttl: d} }

func (p Policy) Kind() PolicyKind { return p.kind }

// TTL zero for AlwaysFresh and Static
func (p Policy) TTL() time.Duration { return p.ttl }

// IsZero reports the unset policy
func (p Policy) IsZero() bool { return p.kind == policyUnset }

// Validate rejects unset policies and non-positive TTLs
func (p Policy) Validate() error {
	switch p.kind {
	case PolicyAlwaysFresh, PolicyStatic:
		return nil
	case PolicyFixedTTL, PolicyCustom:
		if p.ttl <= 0 {
			return ErrInvalidPolicy.WithMsgf("%s policy requires a positive ttl, got %s", p.kind, p.ttl)
		}
		return nil
	default:
		return ErrInvalidPolicy.WithMsg("policy is not set")
	}
}

// expiresAt created+ttl, zero when the policy never computes an expiry
func (p Policy) expiresAt(created time.Time) time.Time {
	switch p.kind {
	case PolicyFixedTTL, PolicyCustom:
		return created.Add(p.ttl)
	default:
		return time.Time{}
	}
}

// String text form used in config and persisted records
func (p Policy) String() string {
	switch p.kind {
	case PolicyAlwaysFresh:
		return "always_fresh"
	case PolicyStatic:
		return "static"
	case PolicyFixedTTL:
		switch p {
		case Daily:
			return "daily"
		case Weekly:
			return "weekly"
		case Monthly:
			return "monthly"
		}
		return "ttl:" + p.ttl.String()
	case PolicyCustom:
		return "custom:" + p.ttl.String()
	default:
		return ""
	}
}

func (p Policy) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Policy) UnmarshalText(text []byte) error {
	parsed, err := ParsePolicy(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// ParsePolicy always_fresh | static | daily | weekly | monthly | ttl:<duration> | custom:<duration>.
// An empty string yields the zero Policy.
func ParsePolicy(s string) (Policy, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	switch s {
	case "":
		return Policy{}, nil
	case "always_fresh":
		return AlwaysFresh(), nil
	case "static":
		return Static(), nil
	case "daily":
		return Daily, nil
	case "weekly":
		return Weekly, nil
	case "monthly":
		return Monthly, nil
	}

	name, raw, ok := strings.Cut(s, ":")
	if !ok {
		return Policy{}, ErrInvalidPolicy.WithMsgf("unknown policy %q", s)
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return Policy{}, ErrInvalidPolicy.Wrapf(err, "policy %q has an invalid duration", s)
	}

	var p Policy
	switch name {
	case "ttl":
		p = FixedTTL(d)
	case "custom":
		p = Custom(d)
	default:
		return Policy{}, ErrInvalidPolicy.WithMsgf("unknown policy %q", s)
	}
	if err := p.Validate(); err != nil {
		return Policy{}, err
	}
	return p, nil
}

// IsFresh reports whether e may be served at now. Pure; the only place policy
// semantics live.
func IsFresh(e *Entry, now time.Time) bool {
	switch e.Policy.kind {
	case PolicyAlwaysFresh:
		return false
	case PolicyStatic:
		return true
	case PolicyFixedTTL, PolicyCustom:
		return now.Before(e.ExpiresAt)
	default:
		return false
	}
}
