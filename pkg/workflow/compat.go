package workflow

import "fmt"

// Compatibility is the verdict of CheckPortCompatibility.
type Compatibility struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

// CheckPortCompatibility decides whether a value typed source may flow into a
// port typed target. It is total and has no side effects.
func CheckPortCompatibility(source, target PortType) Compatibility {
	if source.Kind == KindAny || target.Kind == KindAny {
		return Compatibility{Valid: true}
	}
	if source.Kind == target.Kind && source.Kind != KindCustom {
		return Compatibility{Valid: true}
	}
	if source.Kind == KindCustom && target.Kind == KindCustom {
		if source.TypeName == target.TypeName {
			return Compatibility{Valid: true}
		}
		return Compatibility{Reason: fmt.Sprintf("custom type mismatch: %q -> %q", source.TypeName, target.TypeName)}
	}
	return Compatibility{Reason: fmt.Sprintf("type mismatch: %s -> %s", source.Kind, target.Kind)}
}
