package core

// Metrics records domain events for monitoring.
type Metrics interface {
	MarksRecorded(count int)
	ResultsPublished(exams, notices int)
	ReportServed(kind string, cached bool)
}
