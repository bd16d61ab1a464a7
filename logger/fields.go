package logger

// Standard field names for consistent structured logging across protobridge.
// Use these constants instead of raw strings to ensure consistency.
const (
	FieldSchema     = "schema"
	FieldStrategy   = "strategy"
	FieldWorkspace  = "workspace"
	FieldBinary     = "binary"
	FieldArgs       = "args"
	FieldExitCode   = "exit_code"
	FieldStderr     = "stderr"
	FieldMessages   = "messages"
	FieldServices   = "services"
	FieldDurationMS = "duration_ms"
	FieldError      = "error"
	FieldCount      = "count"
)
