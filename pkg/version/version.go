// Package version reports the build version of the server.
package version

// Name of the server, advertised to MCP clients and authorization servers.
const Name = "payment-mcp"

var (
	// Version of the MCP server, set via ldflags at build time.
	Version = "dev"
	// GitCommit of the Version, set via ldflags at build time.
	GitCommit = ""
)

// GetVersion returns the version of the MCP server,
// including the git commit if available.
func GetVersion() string {
	version := Version

	if GitCommit != "" {
		version += " (" + GitCommit + ")"
	}

	return version
}

// UserAgent is sent on outgoing requests to the authorization server.
func UserAgent() string {
	return Name + "/" + Version
}
