package cli

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Qingzhee/rag-engine/internal/adapters/driven/httpapi"
	"github.com/Qingzhee/rag-engine/internal/adapters/driving/api"
)

var (
	memoryServer  string
	memorySession string
	memoryToken   string
	memoryReset   bool
	memoryHistory bool
)

var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Inspect a session's conversation memory on a running server",
	Long: `Show the summary and memory usage of a conversation session held by
'ragengine serve'. Use --reset to clear it.

When server.jwt_secret is set, a token for the session is minted
automatically unless --token is given.`,
	Args:        cobra.NoArgs,
	Annotations: map[string]string{annotationBootstrap: bootstrapSettings},
	RunE:        runMemory,
}

func init() {
	memoryCmd.Flags().StringVar(&memoryServer, "server", "", "server URL (default: http://server.addr)")
	memoryCmd.Flags().StringVarP(&memorySession, "session", "s", api.DefaultSession, "session id")
	memoryCmd.Flags().StringVar(&memoryToken, "token", "", "bearer token")
	memoryCmd.Flags().BoolVar(&memoryReset, "reset", false, "clear the session's memory")
	memoryCmd.Flags().BoolVar(&memoryHistory, "history", false, "also print the messages held in memory")
	rootCmd.AddCommand(memoryCmd)
}

func runMemory(cmd *cobra.Command, _ []string) error {
	server := memoryServer
	if server == "" {
		server = "http://" + appConfig.Server.Addr
	}

	headers := map[string]string{}
	token := memoryToken
	if token == "" && appConfig.Server.JWTSecret != "" {
		var err error
		token, err = api.GenerateToken(memorySession, []byte(appConfig.Server.JWTSecret), 5*time.Minute)
		if err != nil {
			return fmt.Errorf("failed to mint token: %w", err)
		}
	}
	if token != "" {
		headers["Authorization"] = "Bearer " + token
	}

	client := httpapi.New(httpapi.Config{
		Provider:   "ragengine",
		BaseURL:    strings.TrimRight(server, "/"),
		Headers:    headers,
		MaxRetries: -1,
	})

	method := http.MethodGet
	if memoryReset {
		method = http.MethodDelete
	}
	path := "/v1/memory?session_id=" + url.QueryEscape(memorySession)

	var resp api.MemoryResponse
	if err := client.Do(cmd.Context(), "memory", method, path, nil, &resp); err != nil {
		return fmt.Errorf("memory request failed: %w", err)
	}

	if memoryReset {
		cmd.Printf("Cleared memory of session %s.\n", resp.SessionID)
		return nil
	}
	cmd.Printf("Session:  %s\n", resp.SessionID)
	printMemoryStats(cmd, resp.Stats)
	cmd.Println()
	cmd.Println(resp.Summary)
	if memoryHistory {
		cmd.Println()
		printHistory(cmd, resp.History)
	}
	return nil
}
