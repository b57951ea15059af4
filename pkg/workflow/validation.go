package workflow

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ErrorKind tags a ValidationError variant.
type ErrorKind string

const (
	KindCycle             ErrorKind = "cycle"
	KindUnsatisfiedInput  ErrorKind = "unsatisfied-input"
	KindInvalidConnection ErrorKind = "invalid-connection"
	KindOrphanNode        ErrorKind = "orphan-node"
	KindDuplicateNodeID   ErrorKind = "duplicate-node-id"
	KindDuplicateEdgeID   ErrorKind = "duplicate-edge-id"
	KindMissingNode       ErrorKind = "missing-node"
)

// ValidationError is a structural finding. The set of implementations is
// closed; switch on the concrete type and panic in the default branch.
type ValidationError interface {
	Kind() ErrorKind
	Message() string
	validationError()
}

type CycleError struct {
	Nodes []NodeID `json:"nodes"`
}

type UnsatisfiedInputError struct {
	NodeID NodeID `json:"nodeId"`
	PortID PortID `json:"portId"`
}

type InvalidConnectionError struct {
	EdgeID EdgeID `json:"edgeId"`
	Reason string `json:"reason"`
}

type OrphanNodeError struct {
	NodeID NodeID `json:"nodeId"`
}

type DuplicateNodeIDError struct {
	NodeID NodeID `json:"nodeId"`
}

type DuplicateEdgeIDError struct {
	EdgeID EdgeID `json:"edgeId"`
}

// MissingNodeError is reported for an edge whose endpoint node does not exist.
type MissingNodeError struct {
	NodeID       NodeID `json:"nodeId"`
	ReferencedBy EdgeID `json:"referencedBy"`
}

func (CycleError) Kind() ErrorKind             { return KindCycle }
func (UnsatisfiedInputError) Kind() ErrorKind  { return KindUnsatisfiedInput }
func (InvalidConnectionError) Kind() ErrorKind { return KindInvalidConnection }
func (OrphanNodeError) Kind() ErrorKind        { return KindOrphanNode }
func (DuplicateNodeIDError) Kind() ErrorKind   { return KindDuplicateNodeID }
func (DuplicateEdgeIDError) Kind() ErrorKind   { return KindDuplicateEdgeID }
func (MissingNodeError) Kind() ErrorKind       { return KindMissingNode }

func (CycleError) validationError()             {}
func (UnsatisfiedInputError) validationError()  {}
func (InvalidConnectionError) validationError() {}
func (OrphanNodeError) validationError()        {}
func (DuplicateNodeIDError) validationError()   {}
func (DuplicateEdgeIDError) validationError()   {}
func (MissingNodeError) validationError()       {}

func (e CycleError) Message() string {
	ids := make([]string, len(e.Nodes))
	for i, id := range e.Nodes {
		ids[i] = string(id)
	}
	return "cycle detected: " + strings.Join(ids, " -> ")
}

func (e UnsatisfiedInputError) Message() string {
	return fmt.Sprintf("required input %s is not connected", KeyOf(e.NodeID, e.PortID))
}

func (e InvalidConnectionError) Message() string {
	return fmt.Sprintf("edge %s: %s", e.EdgeID, e.Reason)
}

func (e OrphanNodeError) Message() string {
	return fmt.Sprintf("node %s has no connections", e.NodeID)
}

func (e DuplicateNodeIDError) Message() string {
	return fmt.Sprintf("duplicate node id %s", e.NodeID)
}

func (e DuplicateEdgeIDError) Message() string {
	return fmt.Sprintf("duplicate edge id %s", e.EdgeID)
}

func (e MissingNodeError) Message() string {
	return fmt.Sprintf("edge %s references missing node %s", e.ReferencedBy, e.NodeID)
}

// MarshalJSON methods add the "kind" discriminator next to the payload.

func (e CycleError) MarshalJSON() ([]byte, error) {
	type payload CycleError
	return marshalTagged(e.Kind(), payload(e))
}

func (e UnsatisfiedInputError) MarshalJSON() ([]byte, error) {
	type payload UnsatisfiedInputError
	return marshalTagged(e.Kind(), payload(e))
}

func (e InvalidConnectionError) MarshalJSON() ([]byte, error) {
	type payload InvalidConnectionError
	return marshalTagged(e.Kind(), payload(e))
}

func (e OrphanNodeError) MarshalJSON() ([]byte, error) {
	type payload OrphanNodeError
	return marshalTagged(e.Kind(), payload(e))
}

func (e DuplicateNodeIDError) MarshalJSON() ([]byte, error) {
	type payload DuplicateNodeIDError
	return marshalTagged(e.Kind(), payload(e))
}

func (e DuplicateEdgeIDError) MarshalJSON() ([]byte, error) {
	type payload DuplicateEdgeIDError
	return marshalTagged(e.Kind(), payload(e))
}

func (e MissingNodeError) MarshalJSON() ([]byte, error) {
	type payload MissingNodeError
	return marshalTagged(e.Kind(), payload(e))
}

func marshalTagged(kind ErrorKind, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	fields["kind"] = kind
	return json.Marshal(fields)
}

// Subject returns the node or edge a finding is about, for display.
func Subject(e ValidationError) string {
	switch v := e.(type) {
	case CycleError:
		if len(v.Nodes) > 0 {
			return string(v.Nodes[0])
		}
		return ""
	case UnsatisfiedInputError:
		return string(KeyOf(v.NodeID, v.PortID))
	case InvalidConnectionError:
		return string(v.EdgeID)
	case OrphanNodeError:
		return string(v.NodeID)
	case DuplicateNodeIDError:
		return string(v.NodeID)
	case DuplicateEdgeIDError:
		return string(v.EdgeID)
	case MissingNodeError:
		return string(v.NodeID)
	default:
		panic(fmt.Sprintf("workflow: unhandled validation error variant %T", e))
	}
}
