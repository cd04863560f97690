package tmux

// Executor abstracts tmux operations so session handling can be tested
// without a tmux server.
type Executor interface {
	SessionPrefix() string
	ListSessions() ([]SessionInfo, error)
	CapturePaneOutput(fullName string, lines int) (string, error)
	NewSession(fullName, workDir string) error
	SendKeys(fullName, text string) error
	KillSession(fullName string) error
	HasSession(fullName string) bool
	GetPanePath(fullName string) string
	AttachSession(fullName string) error
}
