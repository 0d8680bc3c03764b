package result

type CaseMeta struct {
	Case          string `json:"case"`
	TestType      string `json:"test_type"`
	DurationS     int    `json:"duration_s"`
	ExitCode      int    `json:"exit_code"`
	ExitReason    string `json:"exit_reason"`
	Invocations   int    `json:"invocations"`
	ChecksPassed  bool   `json:"checks_passed"`
	CheckExitCode int    `json:"check_exit_code"`
}

// Passed reports overall case success: the training process completed and
// the log checks exited zero.
func (m *CaseMeta) Passed() bool {
	return m.ExitReason == "completed" && m.ChecksPassed
}
