// Copyright 2018 Johannes Weigend
// Licensed under the Apache License, Version 2.0

package raft

import "fmt"

// roleState encapsulates the current Role and ensures only valid state
// changes are executed. Adapted from the teacher's Statemachine: the
// transition table below is spec.md §3's Role set, generalized from the
// teacher's single-process toy state machine to the three roles this
// engine actually needs. Every role has a self-loop, so a redundant
// transition (a Follower adopting a higher term, a Candidate restarting its
// election) never panics.
type roleState struct {
	current          Role
	validTransitions map[Role][]Role
}

// newRoleState returns a new roleState in the Follower role.
func newRoleState() *roleState {
	s := new(roleState)
	s.current = Follower
	s.validTransitions = map[Role][]Role{
		Follower:  {Follower, Candidate},
		Candidate: {Follower, Candidate, Leader},
		Leader:    {Follower, Leader},
	}
	return s
}

// next advances the role and panics on an invalid transition — reaching
// one here would be a programming error in this package, never a reachable
// runtime condition (see DESIGN.md).
func (s *roleState) next(next Role) {
	if !s.isValid(next) {
		panic(fmt.Sprintf("role change from %v to %v is not allowed", s.current, next))
	}
	s.current = next
}

// role returns the current role.
func (s *roleState) role() Role {
	return s.current
}

func (s *roleState) isValid(next Role) bool {
	for _, v := range s.validTransitions[s.current] {
		if v == next {
			return true
		}
	}
	return false
}
