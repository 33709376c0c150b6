// ABOUTME: Entry point for the hearth-gateway resource gateway server
// ABOUTME: Verifies app signatures and brokers their access to vaulted provider credentials

package main

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/2389/hearth-gateway/internal/auth"
	"github.com/2389/hearth-gateway/internal/config"
	"github.com/2389/hearth-gateway/internal/httpapi"
	"github.com/2389/hearth-gateway/internal/ledger"
	"github.com/2389/hearth-gateway/internal/plugins"
	"github.com/2389/hearth-gateway/internal/pop"
	"github.com/2389/hearth-gateway/internal/session"
	"github.com/2389/hearth-gateway/internal/store"
	"github.com/2389/hearth-gateway/internal/vault"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
 _                     _   _
| |__   ___  __ _ _ __| |_| |__        __ _  __ _| |_ _____      ____ _ _   _
| '_ \ / _ \/ _' | '__| __| '_ \ _____/ _' |/ _' | __/ _ \ \ /\ / / _' | | | |
| | | |  __/ (_| | |  | |_| | | |_____| (_| | (_| | ||  __/\ V  V / (_| | |_| |
|_| |_|\___|\__,_|_|   \__|_| |_|      \__, |\__,_|\__\___| \_/\_/ \__,_|\__, |
                                       |___/                             |___/
`

// defaultSweepInterval is used when sessions.sweep_interval is unset.
const defaultSweepInterval = time.Hour

// getConfigPath returns the path to the gateway config file.
// Priority: HEARTH_CONFIG env var > XDG_CONFIG_HOME/hearth/gateway.yaml > ~/.config/hearth/gateway.yaml
func getConfigPath() string {
	if envPath := os.Getenv("HEARTH_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "gateway.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "hearth", "gateway.yaml")
}

// getDataPath returns the path to the hearth data directory.
// Priority: XDG_DATA_HOME/hearth > ~/.local/share/hearth
func getDataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data" // fallback
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "hearth")
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: hearth-gateway <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve        Start the gateway server")
		fmt.Println("  init         Create a new config file interactively")
		fmt.Println("  bootstrap    Generate config, keys, and an admin token")
		fmt.Println("  health       Check gateway health")
		fmt.Println("  sweep        Remove apps whose grants all expired")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit()
	case "bootstrap":
		err = runBootstrap()
	case "health":
		err = runHealth(ctx)
	case "sweep":
		err = runSweep(ctx)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := getConfigPath()

	// Print banner
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	// Version info
	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Setup logger
	logger := setupLogger(cfg.Logging)
	slog.SetDefault(logger)

	// Startup info
	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:      %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("Database:  %s\n", cfg.Database.Path)
	green.Print("    ▶ ")
	fmt.Printf("Plugins:   %s\n", cfg.Plugins.ManifestPath)
	fmt.Println()

	logger.Info("starting hearth-gateway",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
	)

	masterKey, err := cfg.MasterKey()
	if err != nil {
		return err
	}
	v, err := vault.New(masterKey)
	if err != nil {
		return fmt.Errorf("opening vault: %w", err)
	}

	st, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer st.Close()

	manifest, err := plugins.LoadManifest(cfg.Plugins.ManifestPath)
	if err != nil {
		return err
	}
	registry, err := plugins.BuildRegistry(manifest, logger)
	if err != nil {
		return err
	}

	ldg := ledger.New(st)
	verifier := pop.NewVerifier(st, cfg.PoP.Window)
	defer verifier.Close()

	baseURL := cfg.Server.BaseURL
	if baseURL == "" {
		baseURL = fmt.Sprintf("http://%s", cfg.Server.HTTPAddr)
	}

	server := httpapi.NewServer(httpapi.Config{
		Addr:     cfg.Server.HTTPAddr,
		Store:    st,
		Vault:    v,
		Verifier: verifier,
		Ledger:   ldg,
		Sessions: session.NewService(st, baseURL, cfg.Sessions.TTL),
		Registry: registry,
		Router: plugins.NewRouter(plugins.RouterConfig{
			Registry: registry,
			Ledger:   ldg,
			Secrets:  st,
			Vault:    v,
			Logger:   logger,
		}),
		Tokens: auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret)),
		Logger: logger,
	})

	// Periodic sweep of apps whose every permission has expired
	sweepInterval := cfg.Sessions.SweepInterval
	if sweepInterval == 0 {
		sweepInterval = defaultSweepInterval
	}
	go runSweeper(ctx, ldg, sweepInterval, logger)

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// runSweeper periodically removes ACTIVE apps with only expired grants.
func runSweeper(ctx context.Context, ldg *ledger.Ledger, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := ldg.Sweep(ctx)
			if err != nil {
				logger.Error("sweep failed", "error", err)
				continue
			}
			if removed > 0 {
				logger.Info("sweep removed expired apps", "count", removed)
			}
		}
	}
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = &colorHandler{
			level: level,
		}
	}

	return slog.New(handler)
}

// colorHandler provides colorized log output with thread-safe writes.
type colorHandler struct {
	mu     sync.Mutex
	level  slog.Level
	attrs  []slog.Attr
	groups []string
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var buf strings.Builder

	// Format timestamp
	buf.WriteString(color.HiBlackString(r.Time.Format("15:04:05") + " "))

	// Colorize level
	switch r.Level {
	case slog.LevelDebug:
		buf.WriteString(color.MagentaString("DBG "))
	case slog.LevelInfo:
		buf.WriteString(color.CyanString("INF "))
	case slog.LevelWarn:
		buf.WriteString(color.YellowString("WRN "))
	case slog.LevelError:
		buf.WriteString(color.New(color.FgRed, color.Bold).Sprint("ERR "))
	default:
		buf.WriteString("??? ")
	}

	// Print message
	buf.WriteString(r.Message)

	// Print handler-level attrs first (from WithAttrs)
	for _, a := range h.attrs {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
	}

	// Print record attrs
	r.Attrs(func(a slog.Attr) bool {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
		return true
	})

	buf.WriteString("\n")
	fmt.Print(buf.String())
	return nil
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	newAttrs = append(newAttrs, attrs...)
	return &colorHandler{
		level:  h.level,
		attrs:  newAttrs,
		groups: h.groups,
	}
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	newGroups := make([]string, len(h.groups), len(h.groups)+1)
	copy(newGroups, h.groups)
	newGroups = append(newGroups, name)
	return &colorHandler{
		level:  h.level,
		attrs:  h.attrs,
		groups: newGroups,
	}
}

func runHealth(ctx context.Context) error {
	configPath := getConfigPath()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Make HTTP request to health endpoint with context
	url := fmt.Sprintf("http://%s/health", cfg.Server.HTTPAddr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}

	fmt.Println("healthy")
	return nil
}

// runSweep opens the database directly and removes apps whose every
// permission has expired. Useful when the gateway is not running.
func runSweep(ctx context.Context) error {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	st, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer st.Close()

	removed, err := ledger.New(st).Sweep(ctx)
	if err != nil {
		return fmt.Errorf("sweeping: %w", err)
	}

	green := color.New(color.FgGreen)
	green.Printf("✓ Sweep complete: %d app(s) removed\n", removed)
	return nil
}

// runBootstrap performs first-time setup of the gateway:
// 1. Creates config file with a random JWT secret and vault master key
// 2. Writes a starter plugin manifest
// 3. Generates an admin token for the CLI
func runBootstrap() error {
	configPath := getConfigPath()
	dataPath := getDataPath()
	dbPath := filepath.Join(dataPath, "gateway.db")
	manifestPath := filepath.Join(filepath.Dir(configPath), "plugins.toml")

	green := color.New(color.FgGreen)
	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)

	var cfg *config.Config
	var jwtSecret string

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		jwtSecret, err = randomBase64(32)
		if err != nil {
			return fmt.Errorf("generating JWT secret: %w", err)
		}
		masterKey, err := randomBase64(vault.MasterKeySize)
		if err != nil {
			return fmt.Errorf("generating master key: %w", err)
		}

		// Create config and data directories
		if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}
		if err := os.MkdirAll(dataPath, 0755); err != nil {
			return fmt.Errorf("creating data directory: %w", err)
		}

		configContent := fmt.Sprintf(`# hearth-gateway configuration
# Generated by hearth-gateway bootstrap

server:
  http_addr: "localhost:8420"

database:
  path: "%s"

vault:
  master_key: "%s"

auth:
  jwt_secret: "%s"

plugins:
  manifest_path: "%s"

pop:
  window: "90s"

sessions:
  ttl: "15m"
  sweep_interval: "1h"

logging:
  level: "info"
  format: "text"
`, dbPath, masterKey, jwtSecret, manifestPath)

		if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
			return fmt.Errorf("writing config file: %w", err)
		}
		green.Printf("  ✓ Created config: %s\n", configPath)

		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
	} else {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		jwtSecret = cfg.Auth.JWTSecret
		cyan.Printf("  Using existing config: %s\n", configPath)
	}

	// Write a starter plugin manifest if none exists
	if _, err := os.Stat(cfg.Plugins.ManifestPath); os.IsNotExist(err) {
		if err := os.WriteFile(cfg.Plugins.ManifestPath, []byte(starterManifest), 0644); err != nil {
			return fmt.Errorf("writing plugin manifest: %w", err)
		}
		green.Printf("  ✓ Created plugin manifest: %s\n", cfg.Plugins.ManifestPath)
	}

	// Generate an admin token and save it for the CLI
	verifier := auth.NewJWTVerifier([]byte(jwtSecret))
	tokenTTL := 30 * 24 * time.Hour
	token, err := verifier.Generate("operator", tokenTTL)
	if err != nil {
		return fmt.Errorf("generating admin token: %w", err)
	}

	tokenPath := filepath.Join(filepath.Dir(configPath), "token")
	if err := os.WriteFile(tokenPath, []byte(token), 0600); err != nil {
		return fmt.Errorf("writing token file: %w", err)
	}
	green.Printf("  ✓ Saved admin token: %s\n", tokenPath)

	expiresAt := time.Now().Add(tokenTTL).UTC()
	fmt.Println()
	green.Println("  Bootstrap complete!")
	fmt.Println()
	fmt.Printf("  Config:  %s\n", configPath)
	fmt.Printf("  Token:   %s (expires %s)\n", tokenPath, expiresAt.Format("Jan 02, 2006"))
	fmt.Println()

	yellow.Println("  Ready to go:")
	fmt.Println("    hearth-gateway serve            # start the gateway")
	fmt.Println("    hearth-admin secrets seed ...   # vault your provider keys")
	fmt.Println()

	return nil
}

// starterManifest seeds a bootstrap install with the builtin providers.
const starterManifest = `# hearth-gateway plugin manifest
# Each entry maps a resource id to a provider endpoint.

[[plugins]]
id = "llm:groq"
name = "Groq"
actions = ["chat.completions", "models.list"]
default_models = ["llama-3.3-70b-versatile"]
base_url = "https://api.groq.com/openai/v1"

[[plugins]]
id = "mail:resend"
name = "Resend"
actions = ["emails.send"]
base_url = "https://api.resend.com"

# [plugins.enforcement]
# allowed_domains = ["example.com"]
# max_body_bytes = 65536
`

func randomBase64(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf), nil
}

func runInit() error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("hearth-gateway configuration setup")
	fmt.Println("==================================")
	fmt.Println()

	// Default paths
	defaultConfigPath := getConfigPath()
	defaultDataPath := getDataPath()
	defaultDbPath := filepath.Join(defaultDataPath, "gateway.db")
	defaultManifestPath := filepath.Join(filepath.Dir(defaultConfigPath), "plugins.toml")

	// Output filename
	outputFile := prompt(reader, "Config file path", defaultConfigPath)

	// Check if file exists
	if _, err := os.Stat(outputFile); err == nil {
		overwrite := prompt(reader, "File exists. Overwrite?", "no")
		if strings.ToLower(overwrite) != "yes" && strings.ToLower(overwrite) != "y" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	// Server configuration
	fmt.Println("\n--- Server Configuration ---")
	httpAddr := prompt(reader, "HTTP address", "localhost:8420")
	baseURL := prompt(reader, "Public base URL (blank to derive from HTTP address)", "")

	// Database
	fmt.Println("\n--- Database Configuration ---")
	dbPath := prompt(reader, "SQLite database path", defaultDbPath)

	// Plugins
	fmt.Println("\n--- Plugin Configuration ---")
	manifestPath := prompt(reader, "Plugin manifest path", defaultManifestPath)

	// Secrets
	fmt.Println("\n--- Secrets ---")
	fmt.Println("Generating random vault master key and JWT secret...")
	masterKey, err := randomBase64(vault.MasterKeySize)
	if err != nil {
		return fmt.Errorf("generating master key: %w", err)
	}
	jwtSecret, err := randomBase64(32)
	if err != nil {
		return fmt.Errorf("generating JWT secret: %w", err)
	}

	// Logging
	fmt.Println("\n--- Logging Configuration ---")
	logLevel := prompt(reader, "Log level (debug/info/warn/error)", "info")
	logFormat := prompt(reader, "Log format (text/json)", "text")

	// Generate config
	var cfg strings.Builder
	cfg.WriteString("# hearth-gateway configuration\n")
	cfg.WriteString("# Generated by hearth-gateway init\n\n")

	cfg.WriteString("server:\n")
	cfg.WriteString(fmt.Sprintf("  http_addr: \"%s\"\n", httpAddr))
	if baseURL != "" {
		cfg.WriteString(fmt.Sprintf("  base_url: \"%s\"\n", baseURL))
	}
	cfg.WriteString("\n")

	cfg.WriteString("database:\n")
	cfg.WriteString(fmt.Sprintf("  path: \"%s\"\n", dbPath))
	cfg.WriteString("\n")

	cfg.WriteString("vault:\n")
	cfg.WriteString(fmt.Sprintf("  master_key: \"%s\"\n", masterKey))
	cfg.WriteString("\n")

	cfg.WriteString("auth:\n")
	cfg.WriteString(fmt.Sprintf("  jwt_secret: \"%s\"\n", jwtSecret))
	cfg.WriteString("\n")

	cfg.WriteString("plugins:\n")
	cfg.WriteString(fmt.Sprintf("  manifest_path: \"%s\"\n", manifestPath))
	cfg.WriteString("\n")

	cfg.WriteString("pop:\n")
	cfg.WriteString("  window: \"90s\"\n")
	cfg.WriteString("\n")

	cfg.WriteString("sessions:\n")
	cfg.WriteString("  ttl: \"15m\"\n")
	cfg.WriteString("  sweep_interval: \"1h\"\n")
	cfg.WriteString("\n")

	cfg.WriteString("logging:\n")
	cfg.WriteString(fmt.Sprintf("  level: \"%s\"\n", logLevel))
	cfg.WriteString(fmt.Sprintf("  format: \"%s\"\n", logFormat))

	// Ensure config directory exists
	configDir := filepath.Dir(outputFile)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	// Write config file
	if err := os.WriteFile(outputFile, []byte(cfg.String()), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	// Write starter manifest if missing
	if _, err := os.Stat(manifestPath); os.IsNotExist(err) {
		if err := os.WriteFile(manifestPath, []byte(starterManifest), 0644); err != nil {
			return fmt.Errorf("writing plugin manifest: %w", err)
		}
	}

	// Ensure data directory exists
	dataDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	fmt.Printf("\nConfig written to %s\n", outputFile)
	fmt.Printf("Data directory: %s\n", dataDir)
	fmt.Println("\nTo start the server:")
	fmt.Printf("  hearth-gateway serve\n")

	return nil
}

func prompt(reader *bufio.Reader, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", question, defaultVal)
	} else {
		fmt.Printf("%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil {
		// On EOF or error, return default
		fmt.Println()
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}
