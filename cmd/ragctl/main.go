// Package main implements the ragctl CLI for manual operations against a
// running ragd daemon: chatting, managing tenant documents, and inspecting
// server state.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	v1 "github.com/fyrsmithlabs/ragd/pkg/api/v1"
)

var (
	// serverURL is the base URL for the ragd HTTP server
	serverURL string
	// version information
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "ragctl",
	Short: "CLI for ragd HTTP server operations",
	Long: `ragctl is a command-line interface for interacting with a ragd daemon.
It provides commands for asking questions, managing tenant documents, and
checking server health.`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "ragd server URL")
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(rmCmd)
	rootCmd.AddCommand(lsCmd)
	rootCmd.AddCommand(tenantsCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(reloadCmd)
	rootCmd.AddCommand(monitorCmd)
}

var (
	chatTenant string
	chatTopK   int
	chatNoRAG  bool
)

// chatCmd asks a question against a tenant's corpus
var chatCmd = &cobra.Command{
	Use:   "chat [question]",
	Short: "Ask a question against a tenant's documents",
	Long: `Ask a question against a tenant's documents.

Examples:
  # Ask a question
  ragctl chat --tenant acme "Wie sind die Öffnungszeiten?"

  # Read the question from stdin
  echo "Wie sind die Öffnungszeiten?" | ragctl chat --tenant acme -

  # Skip retrieval and ask the model directly
  ragctl chat --tenant acme --no-rag "Hallo"`,
	Args: cobra.ExactArgs(1),
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVar(&chatTenant, "tenant", "", "tenant id (required)")
	chatCmd.Flags().IntVar(&chatTopK, "top-k", 0, "retrieval depth override")
	chatCmd.Flags().BoolVar(&chatNoRAG, "no-rag", false, "answer without retrieval")
	_ = chatCmd.MarkFlagRequired("tenant")
}

// ingestCmd uploads documents to a tenant
var ingestCmd = &cobra.Command{
	Use:   "ingest <tenant> <file>...",
	Short: "Upload documents to a tenant",
	Long: `Upload one or more documents to a tenant. Re-uploading a filename
replaces the stored document atomically.

Examples:
  # Upload a single file
  ragctl ingest acme faq.txt

  # Upload several files
  ragctl ingest acme docs/*.md`,
	Args: cobra.MinimumNArgs(2),
	RunE: runIngest,
}

// rmCmd deletes a document
var rmCmd = &cobra.Command{
	Use:   "rm <tenant> <filename>",
	Short: "Delete a tenant document",
	Args:  cobra.ExactArgs(2),
	RunE:  runRm,
}

// lsCmd lists a tenant's documents
var lsCmd = &cobra.Command{
	Use:   "ls <tenant>",
	Short: "List a tenant's documents",
	Args:  cobra.ExactArgs(1),
	RunE:  runLs,
}

// tenantsCmd lists known tenants
var tenantsCmd = &cobra.Command{
	Use:   "tenants",
	Short: "List known tenants",
	RunE:  runTenants,
}

// statsCmd shows a tenant's corpus stats
var statsCmd = &cobra.Command{
	Use:   "stats <tenant>",
	Short: "Show a tenant's corpus statistics",
	Args:  cobra.ExactArgs(1),
	RunE:  runStats,
}

// healthCmd checks server health
var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check ragd server health",
	Long: `Check the health status of the ragd HTTP server.

Examples:
  # Check health
  ragctl health

  # Check health on a different server
  ragctl health --server http://localhost:9090`,
	RunE: runHealth,
}

// reloadCmd reloads the model-profile table
var reloadCmd = &cobra.Command{
	Use:   "reload",
	Short: "Reload the model routing profiles",
	RunE:  runReload,
}

// httpClient is shared across commands; uploads get their own longer
// timeout.
var httpClient = &http.Client{Timeout: 30 * time.Second}

// doJSON sends a request and decodes the JSON response into out. A non-2xx
// response becomes an error carrying the server's error message.
func doJSON(method, path string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequest(method, serverURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request to %s: %w", serverURL+path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var errResp v1.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil && errResp.Error != "" {
			return fmt.Errorf("server returned status %d: %s", resp.StatusCode, errResp.Error)
		}
		return fmt.Errorf("server returned status %d", resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// runChat handles the chat command
func runChat(cmd *cobra.Command, args []string) error {
	question := args[0]
	if question == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("failed to read from stdin: %w", err)
		}
		question = strings.TrimSpace(string(data))
	}
	if question == "" {
		return fmt.Errorf("no question to ask")
	}

	req := v1.ChatRequest{
		TenantID: chatTenant,
		Message:  question,
		TopK:     chatTopK,
	}
	if chatNoRAG {
		useRAG := false
		req.UseRAG = &useRAG
	}

	reqJSON, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	var chatResp v1.ChatResponse
	if err := doJSON("POST", "/api/v1/chat", bytes.NewReader(reqJSON), "application/json", &chatResp); err != nil {
		return err
	}

	fmt.Println(chatResp.Answer)

	if len(chatResp.Sources) > 0 {
		fmt.Fprintln(os.Stderr)
		for _, s := range chatResp.Sources {
			fmt.Fprintf(os.Stderr, "[ragctl] source %s (score %.3f)\n", s.ID, s.Score)
		}
	}
	fmt.Fprintf(os.Stderr, "[ragctl] mode=%s model=%s rsq=%.3f\n", chatResp.Mode, chatResp.Model, chatResp.RSQ)

	return nil
}

// runIngest handles the ingest command
func runIngest(cmd *cobra.Command, args []string) error {
	tenant := args[0]

	for _, path := range args[1:] {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read file %s: %w", path, err)
		}

		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		part, err := mw.CreateFormFile("file", filepath.Base(path))
		if err != nil {
			return fmt.Errorf("failed to build upload: %w", err)
		}
		if _, err := part.Write(data); err != nil {
			return fmt.Errorf("failed to build upload: %w", err)
		}
		if err := mw.Close(); err != nil {
			return fmt.Errorf("failed to build upload: %w", err)
		}

		var doc v1.Document
		endpoint := fmt.Sprintf("/api/v1/tenants/%s/documents", tenant)
		if err := doJSON("POST", endpoint, &buf, mw.FormDataContentType(), &doc); err != nil {
			return fmt.Errorf("upload %s: %w", path, err)
		}

		fmt.Printf("%s: %d chunk(s), version %d\n", doc.Filename, doc.ChunkCount, doc.Version)
	}

	return nil
}

// runRm handles the rm command
func runRm(cmd *cobra.Command, args []string) error {
	endpoint := fmt.Sprintf("/api/v1/tenants/%s/documents/%s", args[0], args[1])
	if err := doJSON("DELETE", endpoint, nil, "", nil); err != nil {
		return err
	}
	fmt.Printf("deleted %s\n", args[1])
	return nil
}

// runLs handles the ls command
func runLs(cmd *cobra.Command, args []string) error {
	var docs []v1.Document
	endpoint := fmt.Sprintf("/api/v1/tenants/%s/documents", args[0])
	if err := doJSON("GET", endpoint, nil, "", &docs); err != nil {
		return err
	}

	if len(docs) == 0 {
		fmt.Println("no documents")
		return nil
	}
	for _, d := range docs {
		fmt.Printf("%-40s v%-3d %4d chunk(s)  %s\n",
			d.Filename, d.Version, d.ChunkCount, d.UploadedAt.Format("2006-01-02 15:04"))
	}
	return nil
}

// runTenants handles the tenants command
func runTenants(cmd *cobra.Command, args []string) error {
	var resp v1.TenantsResponse
	if err := doJSON("GET", "/api/v1/tenants", nil, "", &resp); err != nil {
		return err
	}
	for _, t := range resp.Tenants {
		fmt.Println(t)
	}
	return nil
}

// runStats handles the stats command
func runStats(cmd *cobra.Command, args []string) error {
	var stats v1.StatsResponse
	endpoint := fmt.Sprintf("/api/v1/tenants/%s/stats", args[0])
	if err := doJSON("GET", endpoint, nil, "", &stats); err != nil {
		return err
	}

	fmt.Printf("Tenant:      %s\n", stats.Tenant)
	fmt.Printf("Documents:   %d\n", stats.Documents)
	fmt.Printf("Chunks:      %d\n", stats.Chunks)
	if !stats.LastUpload.IsZero() {
		fmt.Printf("Last upload: %s\n", stats.LastUpload.Format(time.RFC3339))
	}
	return nil
}

// runHealth handles the health command
func runHealth(cmd *cobra.Command, args []string) error {
	var health v1.HealthResponse
	if err := doJSON("GET", "/health", nil, "", &health); err != nil {
		return err
	}

	fmt.Printf("Server Status: %s\n", health.Status)
	fmt.Printf("Server URL: %s\n", serverURL)
	for name, state := range health.Services {
		fmt.Printf("  %s: %s\n", name, state)
	}
	return nil
}

// runReload handles the reload command
func runReload(cmd *cobra.Command, args []string) error {
	var resp v1.ReloadResponse
	if err := doJSON("POST", "/api/v1/reload", nil, "", &resp); err != nil {
		return err
	}
	fmt.Printf("Reload: %s\n", resp.Status)
	return nil
}
