// ABOUTME: Admin CLI for hearth-gateway app and credential management
// ABOUTME: Talks to the gateway's admin HTTP API with JWT authentication

package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
)

const banner = `
 _                     _   _                        _           _
| |__   ___  __ _ _ __| |_| |__          __ _  __| |_ __ ___ (_)_ __
| '_ \ / _ \/ _' | '__| __| '_ \  _____ / _' |/ _' | '_ ' _ \| | '_ \
| | | |  __/ (_| | |  | |_| | | ||_____| (_| | (_| | | | | | | | | | |
|_| |_|\___|\__,_|_|   \__|_| |_|       \__,_|\__,_|_| |_| |_|_|_| |_|
`

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	baseURL := os.Getenv("HEARTH_GATEWAY_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8420"
	}
	baseURL = strings.TrimRight(baseURL, "/")
	token := getToken()

	c := &client{baseURL: baseURL, token: token}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "status":
		err = cmdStatus(c)
	case "sessions":
		err = cmdSessions(c, args)
	case "apps":
		err = cmdApps(c, args)
	case "secrets":
		err = cmdSecrets(c, args)
	case "grants":
		err = cmdGrants(c, args)
	case "sweep":
		err = cmdSweep(c)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)

	cyan.Print(banner)
	fmt.Println()
	fmt.Println("Usage: hearth-admin <command> [args]")
	fmt.Println()
	yellow.Println("Commands:")
	fmt.Println("  status                       Show gateway health and token status")
	fmt.Println("  sessions                     List pending install sessions")
	fmt.Println("  sessions approve <token>     Approve a pending install")
	fmt.Println("  sessions deny <token>        Deny a pending install")
	fmt.Println("  apps                         List registered apps")
	fmt.Println("  apps grants <app-id>         List an app's permissions")
	fmt.Println("  apps revoke <app-id>         Revoke an app (keeps the record)")
	fmt.Println("  apps delete <app-id>         Delete an app and its permissions")
	fmt.Println("  secrets                      List vaulted credentials (masked)")
	fmt.Println("  secrets seed                 Vault a provider credential")
	fmt.Println("  secrets rotate               Replace a vaulted credential")
	fmt.Println("  secrets disable <secret-id>  Disable a credential")
	fmt.Println("  secrets enable <secret-id>   Re-enable a credential")
	fmt.Println("  grants add                   Grant a resource to an app")
	fmt.Println("  grants extend <grant-id>     Change a grant's expiry")
	fmt.Println("  grants revoke <grant-id>     Revoke a single grant")
	fmt.Println("  sweep                        Remove apps whose grants all expired")
	fmt.Println()
	yellow.Println("Environment:")
	fmt.Println("  HEARTH_GATEWAY_URL   Gateway base URL (default: http://localhost:8420)")
	fmt.Println("  HEARTH_TOKEN         Admin JWT (falls back to ~/.config/hearth/token)")
	fmt.Println()
	yellow.Println("Examples:")
	fmt.Println("  hearth-admin sessions")
	fmt.Println("  hearth-admin sessions approve 550e8400-...")
	fmt.Println("  hearth-admin secrets seed --scope llm:groq")
	fmt.Println("  hearth-admin grants add --app <app-id> --scope llm:groq --ttl 30")
	fmt.Println()
}

// getToken returns the admin JWT from HEARTH_TOKEN or ~/.config/hearth/token.
func getToken() string {
	if token := os.Getenv("HEARTH_TOKEN"); token != "" {
		return token
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	data, err := os.ReadFile(filepath.Join(configDir, "hearth", "token"))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// client wraps the gateway admin API with bearer auth.
type client struct {
	baseURL string
	token   string
}

// apiError is the gateway's JSON error envelope.
type apiError struct {
	Error string `json:"error"`
}

// do performs an authenticated request and decodes the JSON response
// into out (when non-nil). Non-2xx responses become errors carrying
// the gateway's error message.
func (c *client) do(method, path string, body, out any) error {
	if c.token == "" {
		return fmt.Errorf("no admin token: set HEARTH_TOKEN or run hearth-gateway bootstrap")
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	httpClient := &http.Client{Timeout: 15 * time.Second}
	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("calling gateway: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr apiError
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s (status %d)", apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("gateway returned status %d", resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}

func cmdStatus(c *client) error {
	cyan := color.New(color.FgCyan)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	cyan.Print(banner)
	fmt.Println()

	resp, err := http.Get(c.baseURL + "/health")
	if err != nil {
		yellow.Printf("  Gateway:  ")
		color.Red("UNREACHABLE (%v)\n", err)
		return nil
	}
	resp.Body.Close()

	green.Printf("  Gateway:  ")
	fmt.Printf("healthy at %s\n", c.baseURL)

	if c.token == "" {
		yellow.Printf("  Token:    ")
		fmt.Println("(none - set HEARTH_TOKEN or run hearth-gateway bootstrap)")
		fmt.Println()
		return nil
	}

	var appsResp struct {
		Apps []appSummary `json:"apps"`
	}
	if err := c.do(http.MethodGet, "/admin/apps", nil, &appsResp); err != nil {
		yellow.Printf("  Token:    ")
		color.Red("rejected (%v)\n", err)
	} else {
		green.Printf("  Token:    ")
		fmt.Println("valid")
		green.Printf("  Apps:     ")
		fmt.Printf("%d registered\n", len(appsResp.Apps))
	}

	fmt.Println()
	return nil
}

// sessionSummary mirrors the gateway's session list response.
type sessionSummary struct {
	Token         string `json:"token"`
	Status        string `json:"status"`
	RequestedName string `json:"requested_name"`
	CreatedAt     string `json:"created_at"`
	ExpiresAt     string `json:"expires_at"`
}

func cmdSessions(c *client, args []string) error {
	subcmd := "list"
	if len(args) > 0 {
		subcmd = args[0]
		args = args[1:]
	}

	switch subcmd {
	case "list", "ls":
		return cmdSessionsList(c)
	case "approve":
		return cmdSessionsApprove(c, args)
	case "deny":
		return cmdSessionsDeny(c, args)
	default:
		return fmt.Errorf("unknown sessions subcommand: %s (use list, approve, deny)", subcmd)
	}
}

func cmdSessionsList(c *client) error {
	var resp struct {
		Sessions []sessionSummary `json:"sessions"`
	}
	if err := c.do(http.MethodGet, "/admin/sessions", nil, &resp); err != nil {
		return err
	}
	sessions := resp.Sessions

	cyan := color.New(color.FgCyan)
	fmt.Println()
	cyan.Println("  Install Sessions")
	cyan.Println("  ----------------")

	if len(sessions) == 0 {
		fmt.Println("  (no pending sessions)")
		fmt.Println()
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  TOKEN\tNAME\tSTATUS\tEXPIRES")
	fmt.Fprintln(w, "  -----\t----\t------\t-------")

	for _, s := range sessions {
		expires := s.ExpiresAt
		if t, err := time.Parse(time.RFC3339, s.ExpiresAt); err == nil {
			expires = t.Format("Jan 02 15:04")
		}
		fmt.Fprintf(w, "  %s\t%s\t%s\t%s\n", truncate(s.Token, 20), truncate(s.RequestedName, 24), s.Status, expires)
	}
	w.Flush()
	fmt.Println()

	return nil
}

func cmdSessionsApprove(c *client, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: sessions approve <token>")
	}

	var resp struct {
		AppID   string `json:"app_id"`
		BaseURL string `json:"base_url"`
	}
	if err := c.do(http.MethodPost, "/admin/sessions/"+args[0]+"/approve", nil, &resp); err != nil {
		return err
	}

	green := color.New(color.FgGreen)
	green.Printf("✓ Approved install session\n")
	fmt.Printf("  App ID:   %s\n", resp.AppID)
	fmt.Printf("  Gateway:  %s\n", resp.BaseURL)
	return nil
}

func cmdSessionsDeny(c *client, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: sessions deny <token>")
	}

	if err := c.do(http.MethodPost, "/admin/sessions/"+args[0]+"/deny", nil, nil); err != nil {
		return err
	}

	green := color.New(color.FgGreen)
	green.Printf("✓ Denied install session: %s\n", args[0])
	return nil
}

// appSummary mirrors the gateway's app list response.
type appSummary struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

func cmdApps(c *client, args []string) error {
	subcmd := "list"
	if len(args) > 0 {
		subcmd = args[0]
		args = args[1:]
	}

	switch subcmd {
	case "list", "ls":
		return cmdAppsList(c)
	case "grants", "permissions":
		return cmdAppsGrants(c, args)
	case "revoke":
		return cmdAppsRevoke(c, args)
	case "delete", "rm", "remove":
		return cmdAppsDelete(c, args)
	default:
		return fmt.Errorf("unknown apps subcommand: %s (use list, grants, revoke, delete)", subcmd)
	}
}

func cmdAppsList(c *client) error {
	var resp struct {
		Apps []appSummary `json:"apps"`
	}
	if err := c.do(http.MethodGet, "/admin/apps", nil, &resp); err != nil {
		return err
	}
	apps := resp.Apps

	cyan := color.New(color.FgCyan)
	fmt.Println()
	cyan.Println("  Registered Apps")
	cyan.Println("  ---------------")

	if len(apps) == 0 {
		fmt.Println("  (no apps registered)")
		fmt.Println()
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  ID\tNAME\tSTATUS\tCREATED")
	fmt.Fprintln(w, "  --\t----\t------\t-------")

	for _, a := range apps {
		created := a.CreatedAt
		if t, err := time.Parse(time.RFC3339, a.CreatedAt); err == nil {
			created = t.Format("Jan 02 15:04")
		}
		fmt.Fprintf(w, "  %s\t%s\t%s\t%s\n", a.ID, truncate(a.Name, 24), a.Status, created)
	}
	w.Flush()
	fmt.Println()

	return nil
}

// permissionSummary mirrors the gateway's permission list response.
type permissionSummary struct {
	ID         string   `json:"id"`
	ResourceID string   `json:"resource_id"`
	Actions    []string `json:"actions,omitempty"`
	ExpiresAt  *string  `json:"expires_at,omitempty"`
}

func cmdAppsGrants(c *client, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: apps grants <app-id>")
	}

	var resp struct {
		Permissions []permissionSummary `json:"permissions"`
	}
	if err := c.do(http.MethodGet, "/admin/apps/"+args[0]+"/permissions", nil, &resp); err != nil {
		return err
	}
	perms := resp.Permissions

	cyan := color.New(color.FgCyan)
	fmt.Println()
	cyan.Println("  Grants")
	cyan.Println("  ------")

	if len(perms) == 0 {
		fmt.Println("  (no grants)")
		fmt.Println()
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  ID\tRESOURCE\tACTIONS\tEXPIRES")
	fmt.Fprintln(w, "  --\t--------\t-------\t-------")

	for _, p := range perms {
		actions := "(all)"
		if len(p.Actions) > 0 {
			actions = strings.Join(p.Actions, ",")
		}
		expires := "never"
		if p.ExpiresAt != nil {
			expires = *p.ExpiresAt
			if t, err := time.Parse(time.RFC3339, *p.ExpiresAt); err == nil {
				expires = t.Format("Jan 02 15:04")
			}
		}
		fmt.Fprintf(w, "  %s\t%s\t%s\t%s\n", truncate(p.ID, 12), p.ResourceID, truncate(actions, 32), expires)
	}
	w.Flush()
	fmt.Println()

	return nil
}

func cmdAppsRevoke(c *client, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: apps revoke <app-id>")
	}

	if err := c.do(http.MethodPost, "/admin/apps/"+args[0]+"/revoke", nil, nil); err != nil {
		return err
	}

	green := color.New(color.FgGreen)
	green.Printf("✓ Revoked app: %s\n", args[0])
	return nil
}

func cmdAppsDelete(c *client, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: apps delete <app-id>")
	}

	if err := c.do(http.MethodDelete, "/admin/apps/"+args[0], nil, nil); err != nil {
		return err
	}

	green := color.New(color.FgGreen)
	green.Printf("✓ Deleted app: %s\n", args[0])
	return nil
}

// secretSummary mirrors the gateway's secret list response. Only the
// masked preview ever leaves the gateway.
type secretSummary struct {
	ID         string  `json:"id"`
	ResourceID string  `json:"resource_id"`
	AppID      *string `json:"app_id,omitempty"`
	Name       string  `json:"name,omitempty"`
	Status     string  `json:"status"`
	Preview    string  `json:"preview"`
	UpdatedAt  string  `json:"updated_at"`
}

func cmdSecrets(c *client, args []string) error {
	subcmd := "list"
	if len(args) > 0 {
		subcmd = args[0]
		args = args[1:]
	}

	switch subcmd {
	case "list", "ls":
		return cmdSecretsList(c)
	case "seed", "add":
		return cmdSecretsSeed(c, args)
	case "rotate":
		return cmdSecretsRotate(c, args)
	case "disable":
		return cmdSecretsSetStatus(c, args, "disable")
	case "enable":
		return cmdSecretsSetStatus(c, args, "enable")
	default:
		return fmt.Errorf("unknown secrets subcommand: %s (use list, seed, rotate, disable, enable)", subcmd)
	}
}

func cmdSecretsList(c *client) error {
	var resp struct {
		Secrets []secretSummary `json:"secrets"`
	}
	if err := c.do(http.MethodGet, "/admin/secrets", nil, &resp); err != nil {
		return err
	}
	secrets := resp.Secrets

	cyan := color.New(color.FgCyan)
	fmt.Println()
	cyan.Println("  Vaulted Credentials")
	cyan.Println("  -------------------")

	if len(secrets) == 0 {
		fmt.Println("  (no credentials seeded)")
		fmt.Println()
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  ID\tRESOURCE\tSTATUS\tPREVIEW\tUPDATED")
	fmt.Fprintln(w, "  --\t--------\t------\t-------\t-------")

	for _, s := range secrets {
		updated := s.UpdatedAt
		if t, err := time.Parse(time.RFC3339, s.UpdatedAt); err == nil {
			updated = t.Format("Jan 02 15:04")
		}
		fmt.Fprintf(w, "  %s\t%s\t%s\t%s\t%s\n", truncate(s.ID, 12), s.ResourceID, s.Status, s.Preview, updated)
	}
	w.Flush()
	fmt.Println()

	return nil
}

// readKey returns the credential from --key, or prompts on stdin so
// the plaintext stays out of shell history.
func readKey(key string) (string, error) {
	if key != "" {
		return key, nil
	}

	fmt.Fprint(os.Stderr, "Credential: ")
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("reading credential: %w", err)
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return "", fmt.Errorf("credential must not be empty")
	}
	return line, nil
}

func cmdSecretsSeed(c *client, args []string) error {
	var scope, key, name, appID string

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--scope", "-s":
			if i+1 < len(args) {
				scope = args[i+1]
				i++
			}
		case "--key", "-k":
			if i+1 < len(args) {
				key = args[i+1]
				i++
			}
		case "--name", "-n":
			if i+1 < len(args) {
				name = args[i+1]
				i++
			}
		case "--app", "-a":
			if i+1 < len(args) {
				appID = args[i+1]
				i++
			}
		}
	}

	if scope == "" {
		return fmt.Errorf("usage: secrets seed --scope <resource-id> [--key <credential>] [--name <label>] [--app <app-id>]")
	}

	key, err := readKey(key)
	if err != nil {
		return err
	}

	body := map[string]any{
		"resource_id": scope,
		"key":         key,
	}
	if name != "" {
		body["name"] = name
	}
	if appID != "" {
		body["app_id"] = appID
	}

	var resp struct {
		ID string `json:"id"`
	}
	if err := c.do(http.MethodPost, "/admin/secrets", body, &resp); err != nil {
		return err
	}

	green := color.New(color.FgGreen)
	green.Printf("✓ Vaulted credential for %s\n", scope)
	fmt.Printf("  ID: %s\n", resp.ID)
	return nil
}

func cmdSecretsRotate(c *client, args []string) error {
	var scope, key, appID string

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--scope", "-s":
			if i+1 < len(args) {
				scope = args[i+1]
				i++
			}
		case "--key", "-k":
			if i+1 < len(args) {
				key = args[i+1]
				i++
			}
		case "--app", "-a":
			if i+1 < len(args) {
				appID = args[i+1]
				i++
			}
		}
	}

	if scope == "" {
		return fmt.Errorf("usage: secrets rotate --scope <resource-id> [--key <credential>] [--app <app-id>]")
	}

	key, err := readKey(key)
	if err != nil {
		return err
	}

	body := map[string]any{
		"resource_id": scope,
		"key":         key,
	}
	if appID != "" {
		body["app_id"] = appID
	}

	if err := c.do(http.MethodPut, "/admin/secrets", body, nil); err != nil {
		return err
	}

	green := color.New(color.FgGreen)
	green.Printf("✓ Rotated credential for %s\n", scope)
	return nil
}

func cmdSecretsSetStatus(c *client, args []string, action string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: secrets %s <secret-id>", action)
	}

	if err := c.do(http.MethodPost, "/admin/secrets/"+args[0]+"/"+action, nil, nil); err != nil {
		return err
	}

	green := color.New(color.FgGreen)
	green.Printf("✓ Credential %sd: %s\n", action, args[0])
	return nil
}

func cmdGrants(c *client, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: grants <add|extend|revoke> (use 'apps grants <app-id>' to list)")
	}
	subcmd := args[0]
	args = args[1:]

	switch subcmd {
	case "add", "grant", "create":
		return cmdGrantsAdd(c, args)
	case "extend":
		return cmdGrantsExtend(c, args)
	case "revoke", "rm", "remove":
		return cmdGrantsRevoke(c, args)
	default:
		return fmt.Errorf("unknown grants subcommand: %s (use add, extend, revoke)", subcmd)
	}
}

func cmdGrantsAdd(c *client, args []string) error {
	var appID, scope, actions string
	var ttlDays int64

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--app", "-a":
			if i+1 < len(args) {
				appID = args[i+1]
				i++
			}
		case "--scope", "-s":
			if i+1 < len(args) {
				scope = args[i+1]
				i++
			}
		case "--actions":
			if i+1 < len(args) {
				actions = args[i+1]
				i++
			}
		case "--ttl", "-t":
			if i+1 < len(args) {
				days, err := parseIntArg(args[i+1])
				if err != nil {
					return fmt.Errorf("invalid ttl: %w", err)
				}
				ttlDays = days
				i++
			}
		}
	}

	if appID == "" || scope == "" {
		return fmt.Errorf("usage: grants add --app <app-id> --scope <resource-id> [--actions a,b] [--ttl <days>]")
	}

	body := map[string]any{
		"app_id":      appID,
		"resource_id": scope,
	}
	if actions != "" {
		body["actions"] = strings.Split(actions, ",")
	}
	if ttlDays > 0 {
		body["ttl_seconds"] = ttlDays * 24 * 60 * 60
	}

	var resp struct {
		ID string `json:"id"`
	}
	if err := c.do(http.MethodPost, "/admin/permissions", body, &resp); err != nil {
		return err
	}

	green := color.New(color.FgGreen)
	green.Printf("✓ Granted %s to app %s\n", scope, appID)
	fmt.Printf("  Grant ID: %s\n", resp.ID)
	return nil
}

func cmdGrantsExtend(c *client, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: grants extend <grant-id> [--ttl <days>]")
	}
	grantID := args[0]
	args = args[1:]

	var ttlDays int64
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--ttl", "-t":
			if i+1 < len(args) {
				days, err := parseIntArg(args[i+1])
				if err != nil {
					return fmt.Errorf("invalid ttl: %w", err)
				}
				ttlDays = days
				i++
			}
		}
	}

	body := map[string]any{
		"ttl_seconds": ttlDays * 24 * 60 * 60,
	}

	if err := c.do(http.MethodPut, "/admin/permissions/"+grantID+"/expiry", body, nil); err != nil {
		return err
	}

	green := color.New(color.FgGreen)
	if ttlDays > 0 {
		green.Printf("✓ Extended grant %s by %d days\n", grantID, ttlDays)
	} else {
		green.Printf("✓ Cleared expiry on grant %s\n", grantID)
	}
	return nil
}

func cmdGrantsRevoke(c *client, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: grants revoke <grant-id>")
	}

	if err := c.do(http.MethodDelete, "/admin/permissions/"+args[0], nil, nil); err != nil {
		return err
	}

	green := color.New(color.FgGreen)
	green.Printf("✓ Revoked grant: %s\n", args[0])
	return nil
}

func cmdSweep(c *client) error {
	var resp struct {
		Removed int `json:"removed"`
	}
	if err := c.do(http.MethodPost, "/admin/sweep", nil, &resp); err != nil {
		return err
	}

	green := color.New(color.FgGreen)
	green.Printf("✓ Sweep complete: %d app(s) removed\n", resp.Removed)
	return nil
}

// parseIntArg parses a string to int64
func parseIntArg(s string) (int64, error) {
	var v int64
	_, err := fmt.Sscanf(s, "%d", &v)
	return v, err
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
