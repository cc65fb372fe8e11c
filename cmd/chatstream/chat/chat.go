// Package chatcmder provides the chat command for an interactive,
// streamed chat session against a chatstream server.
package chatcmder

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/papercomputeco/chatstream/client"
	"github.com/papercomputeco/chatstream/pkg/cliui"
	"github.com/papercomputeco/chatstream/pkg/config"
	"github.com/papercomputeco/chatstream/pkg/llm"
	"github.com/papercomputeco/chatstream/pkg/logger"
	"github.com/papercomputeco/chatstream/pkg/sse"
)

type chatCommander struct {
	target   string
	system   string
	markdown bool
	style    string
	raw      bool
	debug    bool

	in     io.Reader
	out    io.Writer
	errOut io.Writer

	logger *slog.Logger
}

const chatLongDesc string = `Start an interactive chat session against a chatstream server.

Each message you send is submitted together with the conversation so far,
and the reply is printed token by token as it streams in. A reply that fails
part way is discarded along with the message that prompted it, so you can
simply send it again.

Type /exit or press Ctrl+D to quit.

Examples:
  chatstream chat
  chatstream chat --target http://localhost:9000
  chatstream chat --system "Answer in one sentence." --markdown
  chatstream chat --markdown --style light`

const chatShortDesc string = "Interactive chat against a chatstream server"

func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			config.BindRegisteredFlags(v, cmd, config.Flags, []string{config.FlagTarget})

			cfg, err := config.FromViper(v)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			cmder.target = cfg.Client.Target
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			cmder.in = cmd.InOrStdin()
			cmder.out = cmd.OutOrStdout()
			cmder.errOut = cmd.ErrOrStderr()
			return cmder.run(cmd.Context())
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagTarget, &cmder.target)
	cmd.Flags().StringVar(&cmder.system, "system", "", "System message that opens the conversation")
	cmd.Flags().BoolVar(&cmder.markdown, "markdown", false, "Render each reply as markdown once it completes")
	cmd.Flags().StringVar(&cmder.style, "style", cliui.AutoStyle, "Markdown style (auto, dark, light, notty, ...)")
	cmd.Flags().BoolVar(&cmder.raw, "raw", false, "Mirror the raw event stream to stderr")

	return cmd
}

func (c *chatCommander) run(ctx context.Context) error {
	c.logger = logger.New(
		logger.WithDebug(c.debug),
		logger.WithFormat(logger.FormatPretty),
		logger.WithWriter(c.errOut),
	)

	opts := []client.Option{client.WithLogger(c.logger)}
	if c.raw {
		opts = append(opts, client.WithRawWriter(c.errOut))
	}
	cl := client.New(c.target, opts...)

	fmt.Fprintln(c.out)
	err := cliui.Step(c.out, "Connecting to "+c.target, func() error {
		return cl.Health(ctx)
	})
	if err != nil {
		return err
	}

	var conv llm.Conversation
	if c.system != "" {
		conv = append(conv, llm.NewTextMessage(llm.RoleSystem, c.system))
		fmt.Fprintf(c.out, "  %s %s\n", cliui.KeyStyle.Render("System:"), cliui.DimStyle.Render(c.system))
	}

	interactive := isTerminal(c.in)
	if interactive {
		fmt.Fprintf(c.out, "\n  %s\n\n", cliui.DimStyle.Render("Type your message and press Enter. /exit or Ctrl+D to quit."))
	}

	scanner := bufio.NewScanner(c.in)

	for {
		if interactive {
			fmt.Fprint(c.out, cliui.UserPrompt)
		}
		if !scanner.Scan() {
			// EOF or error
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "/exit" {
			break
		}

		turn := append(slices.Clone(conv), llm.NewTextMessage(llm.RoleUser, input))

		reply, err := c.exchange(ctx, cl, turn)
		if err != nil {
			// Drop the failed turn so the message can be resent.
			fmt.Fprintf(c.errOut, "\n  %s %v\n\n", cliui.FailMark, err)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			continue
		}
		conv = reply

		fmt.Fprintln(c.out)
		fmt.Fprintln(c.out)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	fmt.Fprintln(c.out)
	return nil
}

// exchange submits turn and streams the reply. It returns the conversation
// extended with the reply, or an error if the stream did not complete.
func (c *chatCommander) exchange(ctx context.Context, cl *client.Client, turn llm.Conversation) (llm.Conversation, error) {
	sink := client.NewConversationSink(turn.WithPlaceholder())

	c.logger.Debug("sending chat request",
		"target", c.target,
		"message_count", len(turn),
	)

	if c.markdown {
		err := cliui.Step(c.out, "Generating reply", func() error {
			return cl.ChatStream(ctx, turn, sink)
		})
		if err != nil {
			return nil, err
		}

		reply := sink.Conversation()
		last, _ := reply.Last()
		rendered, err := cliui.RenderMarkdownStyle(last.Content, c.style)
		if err != nil {
			c.logger.Debug("rendering markdown failed", "error", err)
		}
		fmt.Fprint(c.out, strings.TrimRight(rendered, "\n"))
		return reply, nil
	}

	fmt.Fprint(c.out, cliui.AssistantPrompt)
	sink.Forward = sse.SinkFuncs{
		OnToken: func(token string) {
			fmt.Fprint(c.out, token)
		},
	}

	if err := cl.ChatStream(ctx, turn, sink); err != nil {
		return nil, err
	}
	return sink.Conversation(), nil
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
