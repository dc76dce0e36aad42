package flows

// Deps groups flow dependency sets. Root engine builds this once and delegates
// request methods to the matching flow implementation.
type Deps struct {
	Create   CreateDeps
	Validate ValidateDeps
	Refresh  RefreshDeps
	Login    LoginDeps
}

func noWarn(string, ...any) {}

func noMetric(int) {}
