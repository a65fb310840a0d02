package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/umucyo/guarantee-gateway/internal/operations"
	"github.com/umucyo/guarantee-gateway/internal/payload"
	"github.com/umucyo/guarantee-gateway/internal/soap"
)

// ErrInvalidArguments is wrapped by every argument validation failure.
var ErrInvalidArguments = errors.New("invalid arguments")

// Credentials authenticate the gateway itself against the remote service.
// They are injected into every request and always override caller input.
type Credentials struct {
	ID       string
	Password string
}

const (
	credentialID       = operations.ElementID
	credentialPassword = operations.ElementPassword
)

func invalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArguments, fmt.Sprintf(format, args...))
}

// buildRequest validates raw caller input against op's contract and shapes
// it into the remote request element graph.
func buildRequest(op operations.Operation, raw map[string]any, creds Credentials) (soap.Request, error) {
	wrapper := map[string]any{}
	for _, param := range op.Params {
		switch param.Kind {
		case operations.KindScalar:
			value, ok, err := scalarArg(param, raw)
			if err != nil {
				return soap.Request{}, err
			}
			if ok {
				wrapper[param.Name] = value
			}
		case operations.KindStructured:
			nested, err := structuredArg(param, raw)
			if err != nil {
				return soap.Request{}, err
			}
			merge(wrapper, nested)
		}
	}
	wrapper[credentialID] = creds.ID
	wrapper[credentialPassword] = creds.Password

	order := make([]string, 0, len(op.Params)+2)
	order = append(order,
		op.Wrapper+payload.Delimiter+credentialID,
		op.Wrapper+payload.Delimiter+credentialPassword)
	for _, path := range op.ElementOrder() {
		order = append(order, op.Wrapper+payload.Delimiter+path)
	}
	return soap.Request{
		Operation: op.Name,
		Args:      map[string]any{op.Wrapper: wrapper},
		Order:     order,
	}, nil
}

func scalarArg(param operations.Param, raw map[string]any) (any, bool, error) {
	for _, key := range param.Keys() {
		value, ok := raw[key]
		if !ok || value == nil {
			continue
		}
		if !isScalar(value) {
			return nil, false, invalidArgument("%s must be a scalar value", param.Name)
		}
		if s, isString := value.(string); isString && strings.TrimSpace(s) == "" {
			continue
		}
		return value, true, nil
	}
	if param.Required {
		return nil, false, invalidArgument("missing required argument %s", param.Name)
	}
	return nil, false, nil
}

// structuredArg accepts the group either as an object under the param name,
// with nested or delimiter-joined keys, or as delimiter-joined keys at the
// top level of raw. Keys outside the allow-list are dropped.
func structuredArg(param operations.Param, raw map[string]any) (map[string]any, error) {
	var flat map[string]any
	switch group := raw[param.Name].(type) {
	case map[string]any:
		flat = payload.Flatten("", group)
	case nil:
		flat = raw
	default:
		return nil, invalidArgument("%s must be an object", param.Name)
	}
	for _, field := range param.Fields {
		if value, ok := flat[field]; ok && value != nil && !isScalar(value) {
			return nil, invalidArgument("%s must be a scalar value", field)
		}
	}
	nested := payload.Reconstruct(flat, param.Fields)
	if param.Required && len(nested) == 0 {
		return nil, invalidArgument("missing required argument %s", param.Name)
	}
	return nested, nil
}

func isScalar(v any) bool {
	switch v.(type) {
	case string, json.Number, bool, float64, float32, int, int32, int64:
		return true
	default:
		return false
	}
}

func merge(dst, src map[string]any) {
	for key, value := range src {
		srcChild, srcIsMap := value.(map[string]any)
		dstChild, dstIsMap := dst[key].(map[string]any)
		if srcIsMap && dstIsMap {
			merge(dstChild, srcChild)
			continue
		}
		dst[key] = value
	}
}
