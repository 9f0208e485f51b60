package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var askJSON bool

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a single question from the indexed documents",
	Long: `Answer a question from the indexed documents and list the sources used.

Each invocation starts with empty conversation memory. Use 'chat' for
follow-up questions.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output the full result as JSON")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	if conversationFactory == nil {
		return errNoConversation
	}
	question := strings.TrimSpace(strings.Join(args, " "))
	if question == "" {
		return errors.New("question is empty")
	}

	result := conversationFactory.NewConversation().Query(cmd.Context(), question)

	if askJSON {
		if err := printJSON(cmd, result); err != nil {
			return err
		}
	} else {
		printQueryResult(cmd, result, appConfig.Conversation.TrackCosts)
	}

	if result.Failed() {
		return fmt.Errorf("query failed (%s): %s", result.Metadata.ErrorKind, result.Metadata.Error)
	}
	return nil
}
