package ports

// WorkflowMetrics records workflow activity. Implementations must be safe for
// concurrent use; the usecase layer tolerates a nil value.
type WorkflowMetrics interface {
	CAPACreated(capaType string)
	StatusChanged(from string, to string)
	VerificationRecorded(result string)
	OperationFailed(operation string, kind string)
}
