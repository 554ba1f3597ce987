package bridge

import (
	"fmt"

	"sessionhub/internal/model"
)

// ToolStatus is the result of the installation probe for one tool.
type ToolStatus struct {
	Tool       model.AiTool `json:"ai_tool"`
	Executable string       `json:"executable"`
	Path       string       `json:"path,omitempty"`
	Installed  bool         `json:"installed"`
}

// LookPathFunc resolves an executable name to a path.
type LookPathFunc func(name string) (string, error)

// Executable returns the configured executable for tool, falling back to
// the adapter's default.
func (b *Bridge) Executable(tool model.AiTool) string {
	if exe := b.opts.Executables[tool]; exe != "" {
		return exe
	}
	adapter, err := b.opts.Adapters(tool)
	if err != nil {
		return string(tool)
	}
	inv, err := adapter.BuildInvocation(".", "", nil)
	if err != nil || inv.Executable == "" {
		return string(tool)
	}
	return inv.Executable
}

// Probe reports whether tool's executable can be resolved.
func (b *Bridge) Probe(tool model.AiTool) ToolStatus {
	exe := b.Executable(tool)
	path, err := b.lookPath(tool, exe)
	return ToolStatus{Tool: tool, Executable: exe, Path: path, Installed: err == nil}
}

// ProbeAll probes every known tool.
func (b *Bridge) ProbeAll() []ToolStatus {
	tools := model.Tools()
	out := make([]ToolStatus, 0, len(tools))
	for _, tool := range tools {
		out = append(out, b.Probe(tool))
	}
	return out
}

func (b *Bridge) lookPath(tool model.AiTool, exe string) (string, error) {
	path, err := b.opts.LookPath(exe)
	if err != nil {
		return "", &SpawnError{Tool: tool, Executable: exe, Err: fmt.Errorf("%w: %v", ErrToolNotInstalled, err)}
	}
	return path, nil
}
