package classify

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/mark3labs/reagent/internal/engine"
	"github.com/mark3labs/reagent/internal/logger"
)

// UnknownTool is the tool name reported when no candidate field yields one.
const UnknownTool = "unknown"

// providerSeparator qualifies a tool name with its provider, e.g. "files:read".
const providerSeparator = ":"

// ToolRef is a normalized (provider, tool, arguments) triple extracted from an
// opaque tool-invocation record.
type ToolRef struct {
	Provider  string // empty when the tool could not be attributed
	Tool      string
	Arguments map[string]any
}

// Resolver normalizes raw tool-invocation records. It knows the currently
// connected providers (name to declared tool list) and caches the triple
// resolved from a start record so the paired result record skips the provider
// scan. A Resolver is used by a single classifier and is not safe for
// concurrent use.
type Resolver struct {
	providers map[string][]string
	order     []string // provider names in sorted order, for deterministic scans

	byID    map[string]ToolRef
	lastRef *ToolRef // pairing fallback for records without an invocation ID
}

// NewResolver creates a resolver over the given provider/tool catalog.
func NewResolver(providers map[string][]string) *Resolver {
	order := make([]string, 0, len(providers))
	for name := range providers {
		order = append(order, name)
	}
	sort.Strings(order)
	return &Resolver{
		providers: providers,
		order:     order,
		byID:      make(map[string]ToolRef),
	}
}

// Name candidate fields, in priority order. Different engine revisions put
// the tool name in different places.
var nameFields = []string{"tool_name", "name", "tool"}

// Argument candidate fields, in priority order.
var argFields = []string{"arguments", "input", "args"}

// Output candidate fields, in priority order.
var outputFields = []string{"output", "result", "content"}

// ID candidate fields used to pair a result with its start record.
var idFields = []string{"id", "tool_call_id", "call_id"}

// ResolveCall extracts the canonical triple from a tool-invocation-start
// record and remembers it for the paired result record.
func (r *Resolver) ResolveCall(rec engine.ToolRecord) ToolRef {
	ref := r.resolve(rec)
	if id, ok := recordID(rec); ok {
		r.byID[id] = ref
	}
	r.lastRef = &ref
	return ref
}

// ResolveResult extracts the triple and output from a tool-invocation-result
// record, reusing the triple cached from the matching start record when the
// records share an invocation ID.
func (r *Resolver) ResolveResult(rec engine.ToolRecord) (ToolRef, any) {
	output := resolveOutput(rec)

	if id, ok := recordID(rec); ok {
		if ref, ok := r.byID[id]; ok {
			delete(r.byID, id)
			r.lastRef = nil
			return ref, output
		}
	}
	if r.lastRef != nil {
		ref := *r.lastRef
		r.lastRef = nil
		return ref, output
	}
	return r.resolve(rec), output
}

func (r *Resolver) resolve(rec engine.ToolRecord) ToolRef {
	name := resolveName(rec)
	args := resolveArguments(rec)

	// Exactly one embedded separator qualifies the provider explicitly. Names
	// with more than one are opaque identifiers, not provider-qualified.
	if strings.Count(name, providerSeparator) == 1 {
		if before, after, _ := strings.Cut(name, providerSeparator); before != "" && after != "" {
			return ToolRef{Provider: before, Tool: after, Arguments: args}
		}
	}

	// Otherwise scan the connected providers' declared tools. Invocation
	// counts per turn are single digits, so the linear scan is fine.
	for _, provider := range r.order {
		for _, tool := range r.providers[provider] {
			if tool == name {
				return ToolRef{Provider: provider, Tool: name, Arguments: args}
			}
		}
	}
	return ToolRef{Tool: name, Arguments: args}
}

// resolveName probes the candidate name fields, including the nested
// chat-completions layout {"function": {"name": ...}}.
func resolveName(rec engine.ToolRecord) string {
	for _, field := range nameFields {
		if v, ok := rec.String(field); ok {
			return v
		}
	}
	if fn, ok := rec.Map("function"); ok {
		if v, ok := engine.ToolRecord(fn).String("name"); ok {
			return v
		}
	}
	return UnknownTool
}

// resolveArguments probes the candidate argument fields. Arguments present as
// encoded JSON text are decoded; on decode failure the turn continues with an
// empty mapping.
func resolveArguments(rec engine.ToolRecord) map[string]any {
	if fn, ok := rec.Map("function"); ok {
		if v, present := fn["arguments"]; present {
			return decodeArguments(v)
		}
	}
	for _, field := range argFields {
		if v, present := rec[field]; present {
			return decodeArguments(v)
		}
	}
	return map[string]any{}
}

func decodeArguments(v any) map[string]any {
	switch args := v.(type) {
	case map[string]any:
		return args
	case string:
		if args == "" {
			return map[string]any{}
		}
		var decoded map[string]any
		if err := json.Unmarshal([]byte(args), &decoded); err != nil {
			logger.Warn("Undecodable tool arguments %q: %v", truncateForLog(args), err)
			return map[string]any{}
		}
		return decoded
	default:
		return map[string]any{}
	}
}

func resolveOutput(rec engine.ToolRecord) any {
	for _, field := range outputFields {
		if v, present := rec[field]; present {
			return v
		}
	}
	return nil
}

func recordID(rec engine.ToolRecord) (string, bool) {
	for _, field := range idFields {
		if v, ok := rec.String(field); ok {
			return v, true
		}
	}
	return "", false
}

func truncateForLog(s string) string {
	if len(s) > 80 {
		return s[:80] + "..."
	}
	return s
}
