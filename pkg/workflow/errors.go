package workflow

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrCycle is wrapped by SortError when no topological order exists.
	ErrCycle = errors.New("workflow: graph contains a cycle")

	// ErrDocument is wrapped by DocumentError when a document is rejected at the boundary.
	ErrDocument = errors.New("workflow: invalid document")
)

// SortError is returned by TopologicalSort for cyclic graphs.
type SortError struct {
	Reason           string
	ProblematicNodes []NodeID
}

func (e *SortError) Error() string {
	ids := make([]string, len(e.ProblematicNodes))
	for i, id := range e.ProblematicNodes {
		ids[i] = string(id)
	}
	return fmt.Sprintf("%s: %s [%s]", ErrCycle, e.Reason, strings.Join(ids, ", "))
}

func (e *SortError) Unwrap() error { return ErrCycle }

// Issue is one shape problem found in a document, addressed by a JSON-pointer-like path.
type Issue struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (i Issue) String() string { return i.Path + ": " + i.Message }

// DocumentError lists every issue that caused a document to be rejected.
type DocumentError struct {
	Issues []Issue
}

func (e *DocumentError) Error() string {
	if len(e.Issues) == 1 {
		return fmt.Sprintf("%s: %s", ErrDocument, e.Issues[0])
	}
	parts := make([]string, len(e.Issues))
	for i, is := range e.Issues {
		parts[i] = is.String()
	}
	return fmt.Sprintf("%s: %d issues: %s", ErrDocument, len(e.Issues), strings.Join(parts, "; "))
}

func (e *DocumentError) Unwrap() error { return ErrDocument }
