package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/nikhildhole/mermaid-visualizer/internal/chat"
	"github.com/nikhildhole/mermaid-visualizer/internal/stream"
	apiTypes "github.com/nikhildhole/mermaid-visualizer/pkg/api"
)

func askCmd() *cobra.Command {
	var url, session string
	var perChunk bool

	cmd := &cobra.Command{
		Use:   "ask <query...>",
		Short: "Stream one assistant query and print its events and answer",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if url == "" {
				url = cfg.AskURL
			}
			provider, err := sessionProvider(session)
			if err != nil {
				return err
			}
			userID, err := provider.SessionID()
			if err != nil {
				return err
			}

			framing := stream.FramingCarryOver
			if perChunk {
				framing = stream.FramingPerChunk
			}
			client := stream.NewClient(stream.ClientConfig{URL: url, Framing: framing, Logger: logger})

			out := cmd.OutOrStdout()
			transcript := chat.NewTranscript(client, userID)
			printed := 0
			transcript.OnChange = func(turn chat.Turn) {
				if turn.Role != chat.RoleBot {
					return
				}
				for _, ev := range turn.Events[min(printed, len(turn.Events)):] {
					printEvent(out, ev)
				}
				printed = max(printed, len(turn.Events))
				if !turn.Pending {
					fmt.Fprintf(out, "\n%s\n", turn.Text)
				}
			}

			return transcript.Send(cmd.Context(), strings.Join(args, " "))
		},
	}

	cmd.Flags().StringVar(&url, "url", "", "assistant endpoint (default $MERMAID_ASK_URL)")
	cmd.Flags().StringVar(&session, "session", "", "session id to send as user_id (default: generate one)")
	cmd.Flags().BoolVar(&perChunk, "per-chunk-framing", false, "split each read on its own, dropping frames cut by a read boundary")
	return cmd
}

func printEvent(w io.Writer, ev stream.Event) {
	switch ev.Type {
	case apiTypes.EventTypeStart, apiTypes.EventTypeComplete:
		fmt.Fprintf(w, "%s %s\n", color.CyanString("%s", ev.Type), ev.Message())
	case apiTypes.EventTypeAgentComplete:
		fmt.Fprintf(w, "%s %s\n", color.GreenString("agent_complete"), color.New(color.Bold).Sprint(ev.Agent()))
	default:
		fmt.Fprintf(w, "%s %s\n", color.YellowString("%s", ev.Type), ev.Raw())
	}
}
