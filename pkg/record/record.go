// Package record maps the closed set of business record kinds to typed
// repositories. The engine never owns these records; it reads them as
// opaque field mappings and writes single fields through the repository
// for the kind.
package record

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

type Type string

const (
	TypePet     Type = "pet"
	TypeOwner   Type = "owner"
	TypeBooking Type = "booking"
)

// TypeKey is injected into every record mapping handed to executors.
const TypeKey = "_type"

var ErrUnknownType = fmt.Errorf("unknown record type")

func ParseType(value string) (Type, error) {
	switch Type(value) {
	case TypePet, TypeOwner, TypeBooking:
		return Type(value), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownType, value)
	}
}

// Repository is the per-kind storage handle exposed to the engine.
type Repository interface {
	Get(ctx context.Context, tenantID, id uuid.UUID) (map[string]interface{}, error)
	UpdateField(ctx context.Context, tenantID, id uuid.UUID, field string, value interface{}) error
}

// Registry resolves a record type to its repository. It is populated once
// at startup; resolution of an unregistered type is an error, not a panic.
type Registry struct {
	repos map[Type]Repository
}

func NewRegistry() *Registry {
	return &Registry{repos: make(map[Type]Repository)}
}

func (r *Registry) Register(recordType Type, repo Repository) {
	r.repos[recordType] = repo
}

func (r *Registry) Resolve(recordType Type) (Repository, error) {
	repo, ok := r.repos[recordType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, string(recordType))
	}
	return repo, nil
}

// Fetch loads a record and injects the type discriminator executors key on.
func (r *Registry) Fetch(ctx context.Context, recordType Type, tenantID, id uuid.UUID) (map[string]interface{}, error) {
	repo, err := r.Resolve(recordType)
	if err != nil {
		return nil, err
	}
	fields, err := repo.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	fields[TypeKey] = string(recordType)
	return fields, nil
}
