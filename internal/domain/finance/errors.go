package finance

import (
	"fmt"

	"github.com/agency/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// LinkType names the kind of record that blocks a deletion
type LinkType string

const (
	LinkTypeContract   LinkType = "contract"
	LinkTypeSale       LinkType = "sale"
	LinkTypeObligation LinkType = "obligation"
)

// DependencyBlockedError reports that a record cannot be deleted because
// another record still references it
type DependencyBlockedError struct {
	LinkType LinkType
	LinkID   uuid.UUID
}

// NewDependencyBlockedError creates a DependencyBlockedError
func NewDependencyBlockedError(linkType LinkType, linkID uuid.UUID) *DependencyBlockedError {
	return &DependencyBlockedError{LinkType: linkType, LinkID: linkID}
}

// Error implements the error interface
func (e *DependencyBlockedError) Error() string {
	return fmt.Sprintf("blocked by linked %s %s", e.LinkType, e.LinkID)
}

// Is matches shared.ErrDependencyBlocked
func (e *DependencyBlockedError) Is(target error) bool {
	t, ok := target.(*shared.DomainError)
	return ok && t.Code == shared.CodeDependencyBlocked
}
