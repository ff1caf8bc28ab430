package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/nikhildhole/mermaid-visualizer/internal/orchestrator"
	"github.com/nikhildhole/mermaid-visualizer/internal/syncclient"
)

func watchCmd() *cobra.Command {
	var url, session string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow a live document; stdin lines replace it",
		Long: `Connects to the document authority and prints every content change and
connection flip. Each line read from stdin replaces the document; a literal
\n in the line becomes a newline.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if url == "" {
				url = cfg.WSURL
			}
			provider, err := sessionProvider(session)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			client := syncclient.New(syncclient.Config{
				URL:            url,
				ReconnectDelay: cfg.ReconnectDelay,
				Logger:         logger,
			})
			o := orchestrator.New(orchestrator.Config{
				Syncer:       client,
				Identity:     provider,
				OnChange:     func(s orchestrator.DocumentState) { printDocument(out, s) },
				OnConnection: func(connected bool) { printConnection(out, connected) },
				Logger:       logger,
			})
			if err := o.Start(); err != nil {
				return err
			}
			defer o.Stop()

			fmt.Fprintf(out, "session %s\n", color.CyanString(o.SessionID()))
			printDocument(out, o.State())

			go readEdits(cmd.InOrStdin(), o)

			<-ctx.Done()
			return nil
		},
	}

	cmd.Flags().StringVar(&url, "url", "", "authority WebSocket URL (default $MERMAID_WS_URL)")
	cmd.Flags().StringVar(&session, "session", "", "session id to join (default: generate one)")
	return cmd
}

func readEdits(r io.Reader, o *orchestrator.Orchestrator) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		o.Edit(strings.ReplaceAll(scanner.Text(), `\n`, "\n"))
	}
}

func printDocument(w io.Writer, s orchestrator.DocumentState) {
	label := color.BlueString("[%s]", s.Origin)
	if s.Origin == orchestrator.OriginLocal {
		label = color.YellowString("[%s]", s.Origin)
	}
	fmt.Fprintf(w, "%s\n%s\n", label, s.Content)
}

func printConnection(w io.Writer, connected bool) {
	if connected {
		fmt.Fprintln(w, color.GreenString("● connected"))
		return
	}
	fmt.Fprintln(w, color.RedString("○ disconnected"))
}
