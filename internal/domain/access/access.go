package access

import (
	"context"
	"errors"
	"fmt"

	"taskscore/internal/domain/auth"
	"taskscore/internal/domain/core"
)

// ErrNoEmployeeProfile is returned when the caller has no employee record
// in their tenant and so cannot own, create or review tasks.
var ErrNoEmployeeProfile = errors.New("caller has no employee profile")

type Capability uint8

const (
	// CapAssignee: the actor is the employee the work belongs to.
	CapAssignee Capability = 1 << iota
	// CapManagerLevel: the actor's role may manage tasks in general.
	CapManagerLevel
	// CapReviewer: the actor may create, review and act on behalf of the
	// employee, i.e. sits above them in the reporting chain or is HR.
	CapReviewer
)

func (c Capability) Has(flag Capability) bool { return c&flag == flag }

func (c Capability) IsAssignee() bool { return c.Has(CapAssignee) }

func (c Capability) IsManagerLevel() bool { return c.Has(CapManagerLevel) }

func (c Capability) CanReview() bool { return c.Has(CapReviewer) }

// CanProgress covers the assignee-or-manager edges of the task lifecycle.
func (c Capability) CanProgress() bool { return c.IsAssignee() || c.CanReview() }

func (c Capability) None() bool { return c == 0 }

// Actor is an authenticated caller bound to their employee record.
type Actor struct {
	UserID     string
	TenantID   string
	RoleName   string
	EmployeeID string
}

func (a Actor) IsHR() bool { return a.RoleName == auth.RoleHR }

// Scope is the set of employees an actor oversees.
type Scope struct {
	All         bool
	EmployeeIDs []string
}

func (s Scope) Empty() bool { return !s.All && len(s.EmployeeIDs) == 0 }

type Directory interface {
	GetEmployeeByUserID(ctx context.Context, tenantID, userID string) (*core.Employee, error)
	IsInManagerChain(ctx context.Context, tenantID, managerEmployeeID, employeeID string) (bool, error)
	ListReportIDs(ctx context.Context, tenantID, managerEmployeeID string) ([]string, error)
}

// Resolver is the single place role and reporting-chain rules are decided.
type Resolver struct {
	dir Directory
}

func NewResolver(dir Directory) *Resolver {
	return &Resolver{dir: dir}
}

func (r *Resolver) Actor(ctx context.Context, user auth.UserContext) (Actor, error) {
	emp, err := r.dir.GetEmployeeByUserID(ctx, user.TenantID, user.UserID)
	if errors.Is(err, core.ErrEmployeeNotFound) {
		return Actor{}, ErrNoEmployeeProfile
	}
	if err != nil {
		return Actor{}, fmt.Errorf("resolve actor: %w", err)
	}
	return Actor{
		UserID:     user.UserID,
		TenantID:   user.TenantID,
		RoleName:   user.RoleName,
		EmployeeID: emp.ID,
	}, nil
}

// For returns the actor's capabilities over work belonging to employeeID.
func (r *Resolver) For(ctx context.Context, actor Actor, employeeID string) (Capability, error) {
	var caps Capability
	if actor.EmployeeID != "" && actor.EmployeeID == employeeID {
		caps |= CapAssignee
	}
	if !auth.ManagerLevel(actor.RoleName) {
		return caps, nil
	}
	caps |= CapManagerLevel

	if caps.IsAssignee() {
		return caps, nil
	}
	if actor.IsHR() {
		return caps | CapReviewer, nil
	}
	inChain, err := r.dir.IsInManagerChain(ctx, actor.TenantID, actor.EmployeeID, employeeID)
	if err != nil {
		return caps, fmt.Errorf("resolve chain: %w", err)
	}
	if inChain {
		caps |= CapReviewer
	}
	return caps, nil
}

// Oversight returns the employees whose work the actor may review.
func (r *Resolver) Oversight(ctx context.Context, actor Actor) (Scope, error) {
	if !auth.ManagerLevel(actor.RoleName) {
		return Scope{}, nil
	}
	if actor.IsHR() {
		return Scope{All: true}, nil
	}
	ids, err := r.dir.ListReportIDs(ctx, actor.TenantID, actor.EmployeeID)
	if err != nil {
		return Scope{}, fmt.Errorf("list reports: %w", err)
	}
	return Scope{EmployeeIDs: ids}, nil
}
