package cmd

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"payment-mcp/internal/config"
	"payment-mcp/internal/middleware"
	"payment-mcp/internal/validator"
	"payment-mcp/pkg/toolsets"
	"payment-mcp/pkg/version"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rancher/dynamiclistener"
	"github.com/rancher/dynamiclistener/server"
	"github.com/rancher/wrangler/v3/pkg/generated/controllers/core"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"k8s.io/client-go/rest"
)

const (
	tlsName       = "payment-mcp.payment-system.svc"
	certNamespace = "payment-system"
	certName      = "payment-mcp-tls"
	caName        = "payment-mcp-ca"
)

const (
	readHeaderTimeout = 10 * time.Second
	readTimeout       = 30 * time.Second
	idleTimeout       = 120 * time.Second
	shutdownTimeout   = 10 * time.Second
)

const (
	wellKnownMetadataPath = "/.well-known/oauth-protected-resource"
	metricsPath           = "/metrics"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long:  `Start the MCP server behind the OAuth 2.0 authorization gate`,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	flags := serveCmd.Flags()
	flags.String("issuer-url", "", "Authorization server issuer URL")
	flags.String("audience", "", "Accepted token audience, comma separated for several")
	flags.String("client-id", "", "Client ID used for token introspection")
	flags.String("client-secret", "", "Client secret used for token introspection")
	flags.String("resource-metadata-url", "", "Protected resource metadata URL advertised in WWW-Authenticate")
	flags.String("tool-scope", "", "Comma separated scopes required to call tools")
	flags.String("metadata-json", "", "Protected resource metadata document served on "+wellKnownMetadataPath)
	flags.Int("port", config.DefaultPort, "Port to listen on")
	flags.String("validation-mode", config.DefaultValidationMode, "Token validation mode (jwks, introspection)")
	flags.String("jwks-url", "", "JWKS URL, defaults to <issuer-url>/keys")
	flags.String("introspection-url", "", "Token introspection URL, defaults to <issuer-url>/oauth/introspect")
	flags.String("mount-path", config.DefaultMountPath, "Path of the MCP endpoint")
	flags.Int64("max-body-bytes", config.DefaultMaxBodyBytes, "Maximum size of a buffered request body")
	flags.Bool("insecure", false, "Skip TLS verification when talking to the authorization server")
	flags.Bool("tls", false, "Serve TLS with certificates managed in the cluster")

	mustBindFlag(config.KeyIssuerURL, "AUTH_ISSUER_URL", flags.Lookup("issuer-url"))
	mustBindFlag(config.KeyAudience, "AUTH_AUDIENCE", flags.Lookup("audience"))
	mustBindFlag(config.KeyClientID, "AUTH_CLIENT_ID", flags.Lookup("client-id"))
	mustBindFlag(config.KeyClientSecret, "AUTH_CLIENT_SECRET", flags.Lookup("client-secret"))
	mustBindFlag(config.KeyResourceMetadataURL, "AUTH_RESOURCE_METADATA_URL", flags.Lookup("resource-metadata-url"))
	mustBindFlag(config.KeyToolScope, "MCP_TOOL_SCOPE", flags.Lookup("tool-scope"))
	mustBindFlag(config.KeyMetadataJSON, "METADATA_JSON_RESPONSE", flags.Lookup("metadata-json"))
	mustBindFlag(config.KeyPort, "PORT", flags.Lookup("port"))
	mustBindFlag(config.KeyValidationMode, "AUTH_VALIDATION_MODE", flags.Lookup("validation-mode"))
	mustBindFlag(config.KeyJWKSURL, "AUTH_JWKS_URL", flags.Lookup("jwks-url"))
	mustBindFlag(config.KeyIntrospectionURL, "AUTH_INTROSPECTION_URL", flags.Lookup("introspection-url"))
	mustBindFlag(config.KeyMountPath, "MCP_MOUNT_PATH", flags.Lookup("mount-path"))
	mustBindFlag(config.KeyMaxBodyBytes, "MCP_MAX_BODY_BYTES", flags.Lookup("max-body-bytes"))
	mustBindFlag(config.KeyInsecure, "MCP_INSECURE", flags.Lookup("insecure"))
	mustBindFlag(config.KeyTLS, "MCP_TLS", flags.Lookup("tls"))
	config.SetDefaults(viper.GetViper())
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.FromViper(viper.GetViper())
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	handler := newHandler(cfg, newValidator(ctx, cfg), registry, toolsets.Backends{})

	if cfg.TLS {
		return startTLSServer(ctx, cfg.Port, handler)
	}

	return startServer(ctx, cfg.Port, handler)
}

// newValidator returns a validator built on first use. Background key
// refresh is bound to ctx, which lives as long as the server.
func newValidator(ctx context.Context, cfg config.Config) *validator.Lazy {
	return validator.NewLazy(func(context.Context) (validator.Validator, error) {
		if cfg.ValidationMode == config.ValidationModeIntrospection {
			v, err := validator.NewIntrospectionValidator(cfg.IntrospectionEndpoint(), cfg.ClientID, cfg.ClientSecret, cfg.Insecure)
			if err != nil {
				return nil, err
			}
			return v, nil
		}

		v, err := validator.NewJWKSValidator(ctx, cfg.JWKSEndpoint(), cfg.Insecure)
		if err != nil {
			return nil, err
		}
		return v, nil
	})
}

// newHandler assembles the HTTP handler: CORS, then the authorization gate,
// then the routes.
func newHandler(cfg config.Config, v middleware.TokenValidator, registry *prometheus.Registry, backends toolsets.Backends) http.Handler {
	mcpServer := mcp.NewServer(&mcp.Implementation{Name: version.Name, Version: version.Version}, nil)
	toolsets.AddAllTools(backends, mcpServer)

	mcpHandler := mcp.NewStreamableHTTPHandler(func(request *http.Request) *mcp.Server {
		return mcpServer
	}, &mcp.StreamableHTTPOptions{})

	mountPath := "/" + strings.Trim(cfg.MountPath, "/")
	gate := middleware.NewGate(middleware.GateConfig{
		Issuer:              cfg.IssuerURL,
		Audience:            cfg.Audiences(),
		ResourceMetadataURL: cfg.ResourceMetadataURL,
		ToolScopes:          cfg.ToolScopes(),
		MountPath:           mountPath,
		MaxBodyBytes:        cfg.MaxBodyBytes,
	}, v, middleware.WithMetrics(middleware.NewMetrics(registry)))

	metadata := middleware.NewMetadataHandler(cfg.MetadataJSON, cfg.FallbackMetadata())

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", handleHealth)
	mux.Handle(wellKnownMetadataPath, metadata)
	mux.Handle(wellKnownMetadataPath+"/", metadata)
	mux.Handle("GET "+metricsPath, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.Handle(mountPath, mcpHandler)
	if mountPath != "/" {
		mux.Handle(mountPath+"/", mcpHandler)
	}

	return middleware.CORS(gate.Middleware(mux))
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(map[string]string{"status": "ok", "service": version.Name}); err != nil {
		zap.L().Error("Failed to write health response", zap.Error(err))
	}
}

func startServer(ctx context.Context, port int, handler http.Handler) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		IdleTimeout:       idleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	zap.L().Info("MCP Server started!", zap.Int("port", port))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	zap.L().Info("Shutting down MCP Server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}

func startTLSServer(ctx context.Context, port int, handler http.Handler) error {
	restConfig, err := rest.InClusterConfig()
	if err != nil {
		return fmt.Errorf("error creating in-cluster config: %w", err)
	}
	factory, err := core.NewFactoryFromConfig(restConfig)
	if err != nil {
		return fmt.Errorf("creating factory: %w", err)
	}

	err = server.ListenAndServe(ctx, port, 0, handler, &server.ListenOpts{
		Secrets:       factory.Core().V1().Secret(),
		CertNamespace: certNamespace,
		CertName:      certName,
		CAName:        caName,
		TLSListenerConfig: dynamiclistener.Config{
			SANs: []string{
				tlsName,
			},
			FilterCN: dynamiclistener.OnlyAllow(tlsName),
			TLSConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
				CipherSuites: []uint16{
					tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
					tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
					tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305,
					tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
					tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
					tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305,
				},
				ClientAuth: tls.RequestClientCert,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("creating tls server: %w", err)
	}
	if err := factory.Start(ctx, 1); err != nil {
		return fmt.Errorf("starting secret controller: %w", err)
	}

	zap.L().Info("MCP Server with TLS started!", zap.Int("port", port))
	<-ctx.Done()

	return nil
}
