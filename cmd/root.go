package cmd

import (
	"strings"

	"payment-mcp/internal/config"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	logLevel string
	envFile  string
)

var rootCmd = &cobra.Command{
	Use:   "payment-mcp",
	Short: "Payment Model Context Protocol (MCP) Server",
	Long: `The MCP server exposes payment tools to AI agents. Every call to the
MCP endpoint is authorized with an OAuth 2.0 bearer token.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		initLogger()
		return config.LoadDotEnv(envFile)
	},
}

// Execute runs the root command
func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Set the log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Load unset environment variables from this dotenv file")
}

func initLogger() {
	if strings.ToLower(logLevel) == "debug" {
		zap.ReplaceGlobals(zap.Must(zap.NewDevelopment()))
		return
	}

	config := zap.NewProductionConfig()
	// remove the "caller" key from the log output
	config.EncoderConfig.CallerKey = zapcore.OmitKey
	if level, err := zapcore.ParseLevel(logLevel); err == nil && logLevel != "" {
		config.Level = zap.NewAtomicLevelAt(level)
	}
	zap.ReplaceGlobals(zap.Must(config.Build()))
}
