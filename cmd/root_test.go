package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestRootCmd(t *testing.T) {
	assert.Equal(t, "payment-mcp", rootCmd.Use)
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("log-level"))

	envFlag := rootCmd.PersistentFlags().Lookup("env-file")
	if assert.NotNil(t, envFlag) {
		assert.Equal(t, ".env", envFlag.DefValue)
	}
}

func TestInitLogger(t *testing.T) {
	defer func(level string) { logLevel = level }(logLevel)

	tests := map[string]struct {
		level   string
		enabled zapcore.Level
		muted   zapcore.Level
	}{
		"debug":   {level: "DEBUG", enabled: zapcore.DebugLevel, muted: zapcore.Level(-2)},
		"default": {level: "", enabled: zapcore.InfoLevel, muted: zapcore.DebugLevel},
		"warn":    {level: "warn", enabled: zapcore.WarnLevel, muted: zapcore.InfoLevel},
		"invalid": {level: "loud", enabled: zapcore.InfoLevel, muted: zapcore.DebugLevel},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			logLevel = test.level
			initLogger()

			core := zap.L().Core()
			assert.True(t, core.Enabled(test.enabled))
			assert.False(t, core.Enabled(test.muted))
		})
	}
}

func TestVersionCmd(t *testing.T) {
	var out bytes.Buffer
	versionCmd.SetOut(&out)

	versionCmd.Run(versionCmd, nil)

	assert.Contains(t, out.String(), "payment-mcp dev")
}
