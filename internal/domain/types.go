package domain

import (
	"errors"
	"fmt"
	"strings"
)

type StageType string

const (
	StageFlat           StageType = "FLAT"
	StageMediumMountain StageType = "MEDIUM_MOUNTAIN"
	StageHighMountain   StageType = "HIGH_MOUNTAIN"
	StageTimeTrial      StageType = "TT"
)

var StageTypes = []StageType{StageFlat, StageMediumMountain, StageHighMountain, StageTimeTrial}

func (t StageType) Valid() bool {
	switch t {
	case StageFlat, StageMediumMountain, StageHighMountain, StageTimeTrial:
		return true
	}
	return false
}

func ParseStageType(s string) (StageType, error) {
	t := StageType(strings.ToUpper(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown stage type %q", s)
	}
	return t, nil
}

type CheckpointType string

const (
	CheckpointSprint CheckpointType = "SPRINT"
	CheckpointC4     CheckpointType = "C4"
	CheckpointC3     CheckpointType = "C3"
	CheckpointC2     CheckpointType = "C2"
	CheckpointC1     CheckpointType = "C1"
	CheckpointHC     CheckpointType = "HC"
)

func (t CheckpointType) Valid() bool {
	return t == CheckpointSprint || t.IsClimb()
}

func (t CheckpointType) IsClimb() bool {
	switch t {
	case CheckpointC4, CheckpointC3, CheckpointC2, CheckpointC1, CheckpointHC:
		return true
	}
	return false
}

func ParseCheckpointType(s string) (CheckpointType, error) {
	t := CheckpointType(strings.ToUpper(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown checkpoint type %q", s)
	}
	return t, nil
}

type StageState string

const (
	StateInPreparation StageState = "IN_PREPARATION"
	StateResultsOpen   StageState = "RESULTS_OPEN"
)

var ErrInvalidTransition = errors.New("invalid stage state transition")

// Transition returns the next state. The only legal move is
// IN_PREPARATION -> RESULTS_OPEN.
func (s StageState) Transition(to StageState) (StageState, error) {
	if s == StateInPreparation && to == StateResultsOpen {
		return to, nil
	}
	return s, fmt.Errorf("%w %s -> %s", ErrInvalidTransition, s, to)
}

func (s StageState) Valid() bool {
	return s == StateInPreparation || s == StateResultsOpen
}
