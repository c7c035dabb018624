package engine

import (
	"strconv"
	"time"
)

// Profile configures one engine binary: which CLI to invoke and how.
// Primary and consultant roles each get their own Profile, possibly
// pointing at different binaries.
type Profile struct {
	CLIPath        string
	DefaultModel   string
	MaxTokens      int
	OutputFormat   string // default "stream-json"
	AllowedTools   []string
	SystemPrompt   string
	TimeoutSeconds float64

	// ReasoningEffort is consumed only by consultant-role profiles.
	ReasoningEffort string
}

// Timeout returns the profile's configured timeout as a time.Duration,
// falling back to def if unset.
func (p Profile) Timeout(def time.Duration) time.Duration {
	if p.TimeoutSeconds <= 0 {
		return def
	}
	return time.Duration(p.TimeoutSeconds * float64(time.Second))
}

// buildArgv constructs the arguments [flags…, prompt] from the profile; the
// cli_path itself is not included and is passed separately to exec.
func (p Profile) buildArgv(prompt, model, systemPrompt string) []string {
	if model == "" {
		model = p.DefaultModel
	}
	if systemPrompt == "" {
		systemPrompt = p.SystemPrompt
	}
	format := p.OutputFormat
	if format == "" {
		format = "stream-json"
	}

	argv := []string{
		"--model", model,
		"--max-tokens", strconv.Itoa(p.MaxTokens),
		"--output", format,
	}
	if systemPrompt != "" {
		argv = append(argv, "--system", systemPrompt)
	}
	for _, tool := range p.AllowedTools {
		argv = append(argv, "--allow-tool", tool)
	}
	if p.ReasoningEffort != "" {
		argv = append(argv, "--reasoning-effort", p.ReasoningEffort)
	}
	argv = append(argv, prompt)
	return argv
}
