package gateway

// Kind classifies the outcome of a dispatch.
type Kind string

const (
	KindOK                Kind = "ok"
	KindAuthRequired      Kind = "auth_required"
	KindPermissionDenied  Kind = "permission_denied"
	KindUnknownOperation  Kind = "unknown_operation"
	KindInvalidArguments  Kind = "invalid_arguments"
	KindRemoteUnavailable Kind = "remote_unavailable"
)

// RemoteUnavailableMessage is the only text callers see for remote failures.
const RemoteUnavailableMessage = "External SOAP Service is currently unavailable. Please try again later."

// Result is the tagged outcome of Dispatch. Payload is set only for KindOK;
// Message is set only for failures.
type Result struct {
	Kind    Kind
	Payload map[string]any
	Message string
}

// OK reports whether the dispatch succeeded.
func (r Result) OK() bool { return r.Kind == KindOK }

func success(payload map[string]any) Result {
	return Result{Kind: KindOK, Payload: payload}
}

func failure(kind Kind, message string) Result {
	return Result{Kind: kind, Message: message}
}
