package telemetry

type ActionCategory int

const (
	Registration ActionCategory = iota
	Batch
	Run
	Classification
	Reporting
)

func (a ActionCategory) String() string {
	switch a {
	case Registration:
		return "registration"
	case Batch:
		return "batch"
	case Run:
		return "run"
	case Classification:
		return "classification"
	case Reporting:
		return "reporting"
	default:
		return "unknown"
	}
}
