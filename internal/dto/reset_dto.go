package dto

type ResetResponse struct {
	Success       bool   `json:"success"`
	Message       string `json:"message"`
	BusinessDate  string `json:"business_date"`
	ArchivedCount int    `json:"archived_count"`
	ReportKey     string `json:"report_key,omitempty"`
}

// ResetRequest is the optional body of the cron endpoint; an empty date means
// the current business date.
type ResetRequest struct {
	BusinessDate string `json:"business_date" validate:"omitempty,datetime=2006-01-02"`
}

type HealthResponse struct {
	OK           bool   `json:"ok"`
	DB           string `json:"db"`    // connected | error
	Redis        string `json:"redis"` // connected | error | disabled
	BusinessDate string `json:"business_date,omitempty"`
	// rows whose writes exhausted their retries; only known with Redis
	FailedLedgerWrites *int64 `json:"failed_ledger_writes,omitempty"`
}
