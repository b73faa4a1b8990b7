package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"github.com/cloudchase/chatstream/engine"
	"github.com/cloudchase/chatstream/prompt"
	"github.com/cloudchase/chatstream/stream"
	"github.com/spf13/cobra"
)

var runSystem string

var runCmd = &cobra.Command{
	Use:   "run [message]",
	Short: "Generate a reply in the terminal",
	Long: `Generate a reply with the configured model. If a message is provided as an
argument, stream the reply and exit. Otherwise, start an interactive REPL.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVarP(&runSystem, "system", "s", "", "system prompt")
}

func runRun(cmd *cobra.Command, args []string) error {
	settings, log, err := setup()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	eng, err := loadEngine(ctx, settings, log)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Model loaded: %s (%s)\n", eng.Info().ModelID, eng.Info().Backend)

	bridge := stream.NewBridge(eng, settings.MaxConcurrentGenerations, log)
	params := engine.Resolve(engine.DefaultsFrom(settings), engine.Overrides{}, eng.Info())

	out := cmd.OutOrStdout()
	if len(args) > 0 {
		if err := generateAndPrint(ctx, out, bridge, prompt.Build(strings.Join(args, " "), runSystem), params); err != nil {
			return err
		}
		fmt.Fprintln(out)
		return nil
	}
	return repl(ctx, cmd.InOrStdin(), out, cmd.ErrOrStderr(), bridge, params)
}

func generateAndPrint(ctx context.Context, w io.Writer, bridge *stream.Bridge, p string, params engine.Params) error {
	st, err := bridge.Start(ctx, p, params)
	if err != nil {
		return err
	}
	defer st.Close()

	for {
		fragment, ok := st.Next(ctx)
		if !ok {
			break
		}
		fmt.Fprint(w, fragment)
	}
	if st.Truncated() {
		return fmt.Errorf("generation stopped early: %w", st.Err())
	}
	return ctx.Err()
}

func repl(ctx context.Context, in io.Reader, out, errOut io.Writer, bridge *stream.Bridge, params engine.Params) error {
	system := runSystem
	scanner := bufio.NewScanner(in)
	fmt.Fprint(out, ">>> ")

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			fmt.Fprint(out, ">>> ")
			continue
		}

		switch cmdName, rest, _ := strings.Cut(line, " "); strings.ToLower(cmdName) {
		case "/exit", "/quit", "/bye":
			fmt.Fprintln(out, "Goodbye.")
			return nil
		case "/system":
			system = strings.TrimSpace(rest)
			if system == "" {
				fmt.Fprintln(errOut, "System prompt cleared.")
			} else {
				fmt.Fprintln(errOut, "System prompt set.")
			}
			fmt.Fprint(out, ">>> ")
			continue
		case "/help":
			fmt.Fprintln(out, "Commands:")
			fmt.Fprintln(out, "  /exit, /quit, /bye  - Exit the REPL")
			fmt.Fprintln(out, "  /system <text>      - Set the system prompt (empty clears it)")
			fmt.Fprintln(out, "  /help               - Show this help")
			fmt.Fprintln(out, "  <text>              - Generate a response")
			fmt.Fprint(out, ">>> ")
			continue
		}

		if err := generateAndPrint(ctx, out, bridge, prompt.Build(line, system), params); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			fmt.Fprintf(errOut, "\nGeneration error: %v\n", err)
		}
		fmt.Fprintln(out)
		fmt.Fprint(out, ">>> ")
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading stdin: %w", err)
	}
	return nil
}
