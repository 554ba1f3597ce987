package model

import (
	"fmt"
	"sync"
)

// ParserFactory is a function type that creates a Parser.
// We use this to avoid circular dependencies between model and tool packages.
type ParserFactory func() Parser

// AdapterFactory is a function type that creates an Adapter.
type AdapterFactory func() Adapter

var (
	factoryMu        sync.RWMutex
	parserFactories  = map[AiTool]ParserFactory{}
	adapterFactories = map[AiTool]AdapterFactory{}
)

// RegisterParser registers the transcript parser factory for tool.
func RegisterParser(tool AiTool, factory ParserFactory) {
	factoryMu.Lock()
	defer factoryMu.Unlock()
	parserFactories[tool] = factory
}

// RegisterAdapter registers the stream adapter factory for tool.
func RegisterAdapter(tool AiTool, factory AdapterFactory) {
	factoryMu.Lock()
	defer factoryMu.Unlock()
	adapterFactories[tool] = factory
}

// NewParser creates a parser for the specified tool.
func NewParser(tool AiTool) (Parser, error) {
	factoryMu.RLock()
	factory := parserFactories[tool]
	factoryMu.RUnlock()
	if !tool.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, tool)
	}
	if factory == nil {
		return nil, fmt.Errorf("%s parser not registered", tool)
	}
	return factory(), nil
}

// NewAdapter creates a stream adapter for the specified tool.
func NewAdapter(tool AiTool) (Adapter, error) {
	factoryMu.RLock()
	factory := adapterFactories[tool]
	factoryMu.RUnlock()
	if !tool.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, tool)
	}
	if factory == nil {
		return nil, fmt.Errorf("%s adapter not registered", tool)
	}
	return factory(), nil
}
