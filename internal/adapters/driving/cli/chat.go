package cli

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Qingzhee/rag-engine/internal/core/ports/driving"
)

const chatHelp = `Commands:
  /summary   show the conversation summary
  /stats     show memory usage
  /history   show the messages held in memory
  /reset     forget the conversation
  /help      show this help
  /exit      leave the chat`

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat about the indexed documents",
	Long: `Start an interactive conversation about the indexed documents.

Follow-up questions are rewritten into standalone questions using the
conversation so far. Type /help for the available commands.`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, _ []string) error {
	if conversationFactory == nil {
		return errNoConversation
	}
	conv := conversationFactory.NewConversation()

	in := cmd.InOrStdin()
	interactive := isTerminal(in)
	if interactive {
		cmd.Println("Ask a question about your documents. Type /help for commands.")
	}

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		if interactive {
			cmd.Print("\nYou: ")
		}
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") || line == "exit" || line == "quit" {
			if !chatCommand(cmd, conv, line) {
				return nil
			}
			continue
		}

		result := conv.Query(cmd.Context(), line)
		cmd.Print("\nAssistant: ")
		printQueryResult(cmd, result, appConfig.Conversation.TrackCosts)

		if cmd.Context().Err() != nil {
			return nil
		}
	}
	return scanner.Err()
}

// chatCommand runs a slash command. It returns false to leave the chat.
func chatCommand(cmd *cobra.Command, conv driving.ConversationService, line string) bool {
	switch strings.ToLower(strings.TrimPrefix(line, "/")) {
	case "exit", "quit":
		return false
	case "summary":
		cmd.Println(conv.Summary())
	case "stats":
		printMemoryStats(cmd, conv.MemoryStats())
	case "history":
		printHistory(cmd, conv.History())
	case "reset":
		conv.Reset()
		cmd.Println("Conversation memory cleared.")
	case "help":
		cmd.Println(chatHelp)
	default:
		cmd.Printf("Unknown command %q. Type /help for commands.\n", line)
	}
	return true
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
