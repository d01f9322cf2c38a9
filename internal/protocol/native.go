package protocol

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/codefionn/agentloop/internal/tools"
)

// NativeCall is the already-lexed structured tool call the model-provider
// layer hands over on the native protocol.
type NativeCall struct {
	ID        string
	Name      string
	Arguments map[string]interface{}
}

// ValidateNative checks a native call's argument bag against the catalog
// definition and coerces string-typed numeric and boolean fields. Providers
// occasionally omit call ids; a stable one is synthesized so downstream
// tool_result blocks always have something to reference.
func ValidateNative(catalog *tools.Catalog, call NativeCall) (*tools.Invocation, *tools.ToolError) {
	name := strings.TrimSpace(call.Name)
	def, ok := catalog.ByName(name)
	if !ok {
		return nil, tools.NewParseError(name, fmt.Sprintf("unknown tool %q", name))
	}

	params := make(map[string]interface{}, len(call.Arguments))
	for key, value := range call.Arguments {
		spec, known := def.Param(key)
		if !known {
			// Unknown arguments are kept verbatim; individual executors
			// decide whether to reject them.
			params[key] = value
			continue
		}
		coerced, err := coerceNativeValue(spec, value)
		if err != nil {
			return nil, tools.NewValidationError(name,
				fmt.Sprintf("parameter %q: %v", key, err))
		}
		params[key] = coerced
	}

	id := call.ID
	if strings.TrimSpace(id) == "" {
		id = "call_" + uuid.NewString()
	}

	return &tools.Invocation{
		Kind:   def.Kind,
		Name:   name,
		CallID: id,
		Params: params,
	}, nil
}

func coerceNativeValue(spec tools.ParamSpec, value interface{}) (interface{}, error) {
	switch spec.Type {
	case tools.ParamInteger:
		switch v := value.(type) {
		case float64:
			return int(v), nil
		case int:
			return v, nil
		case string:
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return nil, fmt.Errorf("expected integer, got %q", v)
			}
			return n, nil
		default:
			return nil, fmt.Errorf("expected integer, got %T", value)
		}
	case tools.ParamBoolean:
		switch v := value.(type) {
		case bool:
			return v, nil
		case string:
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				return nil, fmt.Errorf("expected boolean, got %q", v)
			}
			return b, nil
		default:
			return nil, fmt.Errorf("expected boolean, got %T", value)
		}
	case tools.ParamEnum:
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("expected one of %v, got %T", spec.EnumValues, value)
		}
		for _, allowed := range spec.EnumValues {
			if s == allowed {
				return s, nil
			}
		}
		return nil, fmt.Errorf("value %q not in %v", s, spec.EnumValues)
	default:
		return value, nil
	}
}
