package refit

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/jward/refit/internal/analysis"
	"github.com/jward/refit/internal/rules"
	"github.com/jward/refit/internal/runtime"
	"github.com/jward/refit/scripts"
)

// DefaultRegistry returns the built-in analyzers followed by the scripted
// rules embedded in the binary.
func DefaultRegistry(logger logrus.FieldLogger) (*analysis.Registry, error) {
	return LoadRegistry("", logger)
}

// LoadRegistry returns the built-in analyzers followed by the scripted rules
// found under scriptsDir/rules. An empty scriptsDir uses the embedded
// scripts.
func LoadRegistry(scriptsDir string, logger logrus.FieldLogger) (*analysis.Registry, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	rtOpts := []runtime.RuntimeOption{runtime.WithLogger(logger)}
	if scriptsDir == "" {
		rtOpts = append(rtOpts, runtime.WithRuntimeFS(scripts.FS))
	}
	rt := runtime.NewRuntime(scriptsDir, rtOpts...)

	scripted, err := rt.Analyzers()
	if err != nil {
		return nil, fmt.Errorf("refit: loading scripted rules: %w", err)
	}
	reg, err := analysis.NewRegistry(append(rules.All(), scripted...)...)
	if err != nil {
		return nil, fmt.Errorf("refit: building registry: %w", err)
	}
	return reg, nil
}
