package integration

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Payload is an opaque JSON object passed between connectors
type Payload map[string]any

// Hash returns a deterministic SHA-256 digest of the payload. Object keys are
// serialized in sorted order so equal payloads always hash the same.
func (p Payload) Hash() (string, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("hash payload: %w", err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

// Clone returns a deep copy of the payload
func (p Payload) Clone() Payload {
	if p == nil {
		return nil
	}
	out := make(Payload, len(p))
	for k, v := range p {
		out[k] = cloneValue(v)
	}
	return out
}

// Get resolves a dotted path such as "order.id" or "items.0.sku"
func (p Payload) Get(path string) (any, bool) {
	if path == "" {
		return nil, false
	}
	var current any = map[string]any(p)
	for _, segment := range strings.Split(path, ".") {
		switch node := current.(type) {
		case map[string]any:
			v, ok := node[segment]
			if !ok {
				return nil, false
			}
			current = v
		case Payload:
			v, ok := node[segment]
			if !ok {
				return nil, false
			}
			current = v
		case []any:
			idx, err := strconv.Atoi(segment)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			current = node[idx]
		default:
			return nil, false
		}
	}
	return current, true
}

// Set writes value at a dotted path, creating intermediate objects as needed.
// It fails when an intermediate segment already holds a non-object value.
func (p Payload) Set(path string, value any) error {
	if path == "" {
		return ErrInvalidPath.WithMessage("Target path is empty")
	}
	segments := strings.Split(path, ".")
	node := map[string]any(p)
	for i, segment := range segments {
		if segment == "" {
			return ErrInvalidPath.WithMessage(fmt.Sprintf("Path %q has an empty segment", path))
		}
		if i == len(segments)-1 {
			node[segment] = value
			return nil
		}
		next, ok := node[segment]
		if !ok {
			child := map[string]any{}
			node[segment] = child
			node = child
			continue
		}
		switch child := next.(type) {
		case map[string]any:
			node = child
		case Payload:
			node = child
		default:
			return ErrInvalidPath.WithMessage(fmt.Sprintf("Path %q crosses non-object field %q", path, segment))
		}
	}
	return nil
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = cloneValue(item)
		}
		return out
	case Payload:
		return map[string]any(val.Clone())
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return val
	}
}
