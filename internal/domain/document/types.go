package document

// ValidationResult captures the outcome of security validation.
type ValidationResult struct {
	IsValid      bool
	Format       string
	FileSize     int64
	Error        error
	SecurityRisk string
}
