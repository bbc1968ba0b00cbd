package cache

import (
	"regexp"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Category semantic type of cached data; selects the default policy and keys statistics
type Category string

// Predeclared categories; collaborators may register their own
const (
	CategoryGeo         Category = "geo"
	CategoryRegulatory  Category = "regulatory"
	CategorySubsidy     Category = "subsidy"
	CategoryClimate     Category = "climate"
	CategoryExternalAPI Category = "external_api"
	CategoryGeneric     Category = "generic"
)

// MaxIdentifierLen longest identifier accepted, in bytes
const MaxIdentifierLen = 512

var categoryPattern = regexp.MustCompile(`^[a-z0-9_.-]+$`)

func (c Category) String() string {
	return string(c)
}

// Validate lowercase, 1-64 chars of [a-z0-9_.-], not "." or ".."
func (c Category) Validate() error {
	err := validation.Validate(string(c),
		validation.Required,
		validation.Length(1, 64),
		validation.Match(categoryPattern),
		validation.NotIn(".", ".."),
	)
	if err != nil {
		return ErrInvalidKey.WithMsgf("invalid category %q: %v", string(c), err).WithData("category", string(c))
	}
	return nil
}

// DefaultPolicies built-in category defaults; uncategorised data falls back to Daily
func DefaultPolicies() map[Category]Policy {
	return map[Category]Policy{
		CategoryGeo:         Weekly,
		CategoryRegulatory:  Monthly,
		CategorySubsidy:     Daily,
		CategoryClimate:     FixedTTL(6 * time.Hour),
		CategoryExternalAPI: FixedTTL(15 * time.Minute),
		CategoryGeneric:     Daily,
	}
}

// Key composite key; the same identifier in two categories is a different entry
type Key struct {
	Category Category
	ID       string
}

// NewKey validates category and identifier
func NewKey(category Category, id string) (Key, error) {
	k := Key{Category: category, ID: id}
	if err := k.Validate(); err != nil {
		return Key{}, err
	}
	return k, nil
}

func (k Key) Validate() error {
	if err := k.Category.Validate(); err != nil {
		return err
	}
	if k.ID == "" {
		return ErrInvalidKey.WithMsg("identifier must not be empty").WithData("category", string(k.Category))
	}
	if len(k.ID) > MaxIdentifierLen {
		return ErrInvalidKey.WithMsgf("identifier longer than %d bytes", MaxIdentifierLen).
			WithData("category", string(k.Category))
	}
	return nil
}

// String category:id; categories never contain ':' so the split is unambiguous
func (k Key) String() string {
	return string(k.Category) + ":" + k.ID
}
