package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Qingzhee/rag-engine/internal/adapters/driving/api"
)

var (
	tokenSubject string
	tokenTTL     time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a bearer token for the HTTP API",
	Long: `Mint an HS256 bearer token signed with server.jwt_secret. The subject is
the conversation session the token grants access to.`,
	Args:        cobra.NoArgs,
	Annotations: map[string]string{annotationBootstrap: bootstrapSettings},
	RunE:        runToken,
}

func init() {
	tokenCmd.Flags().StringVarP(&tokenSubject, "subject", "s", "", "session id (required)")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", api.DefaultTokenTTL, "token lifetime")
	rootCmd.AddCommand(tokenCmd)
}

func runToken(cmd *cobra.Command, _ []string) error {
	if tokenSubject == "" {
		return errors.New("--subject is required")
	}
	secret := appConfig.Server.JWTSecret
	if secret == "" {
		return errors.New("server.jwt_secret is not set (set it with 'ragengine config set server.jwt_secret <secret>' or RAG_JWT_SECRET)")
	}

	token, err := api.GenerateToken(tokenSubject, []byte(secret), tokenTTL)
	if err != nil {
		return fmt.Errorf("failed to mint token: %w", err)
	}
	cmd.Println(token)
	return nil
}
