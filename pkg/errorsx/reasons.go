package errorsx

// ReasonCode is a short machine-readable error reason.
type ReasonCode string

const (
	ReasonUnknown ReasonCode = "unknown"

	ReasonInputSanitize  ReasonCode = "input_sanitize"
	ReasonLanguageDetect ReasonCode = "language_detect"

	ReasonClassifierInvoke    ReasonCode = "classifier_invoke"
	ReasonClassifierMalformed ReasonCode = "classifier_malformed"
	ReasonCircuitOpen         ReasonCode = "circuit_open"
	ReasonCompletionGenerate  ReasonCode = "completion_generate"
	ReasonCompletionRateLimit ReasonCode = "completion_rate_limit"

	ReasonProfileStore  ReasonCode = "profile_store"
	ReasonContextStore  ReasonCode = "context_store"
	ReasonStructuring   ReasonCode = "structuring"
	ReasonGatewaySend   ReasonCode = "gateway_send"
	ReasonRoutingFailed ReasonCode = "routing_failed"
	ReasonWorkerFailed  ReasonCode = "worker_failed"
)
