package domain

import (
	"github.com/meridian-mutual/platform/internal/access"
	"github.com/meridian-mutual/platform/internal/shared/types"
)

// TransitionRule describes one edge of the claim workflow: who may take it
// and what payload must accompany it.
type TransitionRule struct {
	From  ClaimStatus
	To    ClaimStatus
	Roles []access.Role

	// RequiresAdjuster means the payload must carry assigned_adjuster_id
	// referencing an existing adjuster.
	RequiresAdjuster bool
	// RequiresAmount means the payload must carry approved_amount, > 0 and
	// bounded by the policy's coverage amount.
	RequiresAmount bool
}

// TransitionPayload carries the edge-defined fields of a transition request.
type TransitionPayload struct {
	AssignedAdjusterID *types.ID `json:"assigned_adjuster_id,omitempty"`
	ApprovedAmount     *float64  `json:"approved_amount,omitempty"`
}

// transitionTable is the single authoritative transition table for the claim
// workflow. The states form a strict DAG; rejected and settled are terminal.
// Presentation layers consume the engine's AvailableTransitions view instead
// of re-deriving any of this.
var transitionTable = map[ClaimStatus][]TransitionRule{
	StatusSubmitted: {
		{From: StatusSubmitted, To: StatusUnderReview, Roles: []access.Role{access.RoleAgent, access.RoleManager}},
		{From: StatusSubmitted, To: StatusRejected, Roles: []access.Role{access.RoleAgent, access.RoleManager}},
	},
	StatusUnderReview: {
		{From: StatusUnderReview, To: StatusAssigned, Roles: []access.Role{access.RoleManager}, RequiresAdjuster: true},
		{From: StatusUnderReview, To: StatusRejected, Roles: []access.Role{access.RoleManager}},
	},
	StatusAssigned: {
		{From: StatusAssigned, To: StatusInvestigating, Roles: []access.Role{access.RoleAdjuster, access.RoleManager}},
		{From: StatusAssigned, To: StatusRejected, Roles: []access.Role{access.RoleAdjuster, access.RoleManager}},
	},
	StatusInvestigating: {
		{From: StatusInvestigating, To: StatusApproved, Roles: []access.Role{access.RoleAdjuster}, RequiresAmount: true},
		{From: StatusInvestigating, To: StatusRejected, Roles: []access.Role{access.RoleAdjuster}},
	},
	StatusApproved: {
		{From: StatusApproved, To: StatusSettled, Roles: []access.Role{access.RoleManager}},
	},
	// Terminal states have no rows.
	StatusRejected: {},
	StatusSettled:  {},
}

// RuleFor looks up the edge from one status to another. The second return is
// false when no such edge exists, including the from == to case: the table
// defines no self-loops.
func RuleFor(from, to ClaimStatus) (TransitionRule, bool) {
	for _, rule := range transitionTable[from] {
		if rule.To == to {
			return rule, true
		}
	}
	return TransitionRule{}, false
}

// TargetsFrom returns every target reachable from the status, regardless of
// role, in table order.
func TargetsFrom(from ClaimStatus) []ClaimStatus {
	rules := transitionTable[from]
	targets := make([]ClaimStatus, 0, len(rules))
	for _, rule := range rules {
		targets = append(targets, rule.To)
	}
	return targets
}

// LegalTargets returns the targets reachable from the status by a principal
// holding the given roles. One qualifying role per edge suffices.
func LegalTargets(from ClaimStatus, roles access.RoleSet) []ClaimStatus {
	var targets []ClaimStatus
	for _, rule := range transitionTable[from] {
		if roles.HasAny(rule.Roles...) {
			targets = append(targets, rule.To)
		}
	}
	return targets
}
