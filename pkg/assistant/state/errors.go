package state

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindAnalysis    Kind = "analysis"
	KindTool        Kind = "tool"
	KindRetrieval   Kind = "retrieval"
	KindGeneration  Kind = "generation"
	KindPersistence Kind = "persistence"
	KindGuard       Kind = "guard"
)

var (
	ErrAnalysis    = errors.New("analysis failure")
	ErrTool        = errors.New("tool failure")
	ErrRetrieval   = errors.New("retrieval failure")
	ErrGeneration  = errors.New("generation failure")
	ErrPersistence = errors.New("persistence failure")
	ErrGuard       = errors.New("workflow guard tripped")
)

var sentinels = map[Kind]error{
	KindAnalysis:    ErrAnalysis,
	KindTool:        ErrTool,
	KindRetrieval:   ErrRetrieval,
	KindGeneration:  ErrGeneration,
	KindPersistence: ErrPersistence,
	KindGuard:       ErrGuard,
}

// NodeError is a non-fatal failure recorded on the State by the node that hit it.
type NodeError struct {
	Kind Kind
	Node string
	Err  error
}

func NewNodeError(kind Kind, node string, err error) *NodeError {
	return &NodeError{Kind: kind, Node: node, Err: err}
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Node, sentinels[e.Kind], e.Err)
}

func (e *NodeError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrRetrieval) match any retrieval NodeError.
func (e *NodeError) Is(target error) bool {
	return sentinels[e.Kind] == target
}
