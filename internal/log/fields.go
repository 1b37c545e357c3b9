package log

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldQuery      = "query"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldUserAgent  = "user_agent"
	FieldError      = "error"
	FieldOperation  = "operation"
	FieldDate       = "date"
	FieldAmount     = "amount"
	FieldToken      = "token"
)

// Components defines standard component names
const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentCycle     = "cycle"
	ComponentCheckin   = "checkin"
	ComponentStorage   = "storage"
	ComponentSheets    = "sheets"
	ComponentAMQP      = "amqp"
	ComponentWorker    = "worker"
	ComponentScheduler = "scheduler"
)

// Operations used by the HTTP layer and the workers.
const (
	OpStartCycle     = "start_cycle"
	OpRegisterIncome = "register_income"
	OpExtraSpend     = "extra_spend"
	OpDailySpend     = "daily_spend"
	OpConfirm        = "confirm_checkin"
	OpUpdateDefault  = "update_default"
	OpStatus         = "status"
	OpSync           = "sync"
	OpStartup        = "startup"
	OpShutdown       = "shutdown"
)
