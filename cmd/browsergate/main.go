// Command browsergate is the foundation CLI entrypoint: it wires the
// bridge and registry's HTTP surface on the configured port and runs
// the MCP protocol over stdio (spec.md §6).
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/brennhill/browsergate/internal/bridge"
	"github.com/brennhill/browsergate/internal/foundation"
	"github.com/brennhill/browsergate/internal/tools/examples"
	"github.com/brennhill/browsergate/internal/util"
)

// defaultHTTPPort is spec.md §6's default HTTP surface port.
const defaultHTTPPort = 3024

// maxStdioBodyBytes caps a single Content-Length-framed MCP message,
// mirroring the HTTP bridge's own 10 MiB request cap.
const maxStdioBodyBytes = 10 * 1024 * 1024

// stopGracePeriod bounds how long Stop waits for in-flight HTTP
// handlers before giving up (spec.md §5: "waits for in-flight
// handlers, no forced drop" — bounded here so an unrecoverable runtime
// situation can't hang the process indefinitely).
const stopGracePeriod = 10 * time.Second

func main() {
	os.Exit(run(os.Args[1:]))
}

// run builds the cobra/viper command tree and executes it against
// args, returning the process exit code (spec.md §6: 0 clean
// shutdown, 1 startup failure, 2 unrecoverable runtime error).
func run(args []string) int {
	v := viper.New()
	v.SetEnvPrefix("BROWSERGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	v.SetDefault("http-port", defaultHTTPPort)
	v.SetDefault("log-level", "info")
	v.SetDefault("server-name", "browsergate")
	v.SetDefault("server-version", "0.1.0")

	var exitCode int
	root := &cobra.Command{
		Use:           "browsergate",
		Short:         "MCP↔HTTP bridge for a browser-automation tool catalog",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := serve(v)
			exitCode = code
			return err
		},
	}
	root.SetArgs(args)

	flags := root.Flags()
	flags.Int("http-port", defaultHTTPPort, "HTTP bridge port (0 disables the HTTP surface)")
	flags.String("log-level", "info", "one of debug, info, warn, error")
	flags.String("server-name", "browsergate", "server identity surfaced via MCP initialize")
	flags.String("server-version", "0.1.0", "server version surfaced via MCP initialize")

	if err := v.BindPFlag("http-port", flags.Lookup("http-port")); err != nil {
		fmt.Fprintln(os.Stderr, "browsergate: failed to bind flags:", err)
		return 1
	}
	_ = v.BindPFlag("log-level", flags.Lookup("log-level"))
	_ = v.BindPFlag("server-name", flags.Lookup("server-name"))
	_ = v.BindPFlag("server-version", flags.Lookup("server-version"))

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "browsergate:", err)
		if exitCode == 0 {
			exitCode = 1
		}
	}
	return exitCode
}

// serve builds the Foundation from resolved configuration (CLI > env >
// defaults, per spec.md §6), starts it, runs the stdio MCP loop to
// completion, and returns the process exit code alongside any error to
// print.
func serve(v *viper.Viper) (int, error) {
	cfg := foundation.Config{
		LogLevel:      v.GetString("log-level"),
		ServerName:    v.GetString("server-name"),
		ServerVersion: v.GetString("server-version"),
		HTTPPort:      v.GetInt("http-port"),
		EnableMetrics: true,
	}

	f, err := foundation.New(cfg)
	if err != nil {
		return 1, fmt.Errorf("failed to construct foundation: %w", err)
	}

	if err := registerExampleTools(f); err != nil {
		return 1, fmt.Errorf("failed to register example tools: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := f.Start(ctx); err != nil {
		return 1, fmt.Errorf("failed to start: %w", err)
	}

	if cfg.HTTPPort != 0 && !bridge.WaitForServer(cfg.HTTPPort, 3*time.Second) {
		f.Logger.Sugar().Warnf("browsergate: http bridge did not answer /health on port %d within 3s", cfg.HTTPPort)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	util.SafeGo(func() {
		<-sigCh
		cancel()
	})

	stdioErr := runStdioLoop(ctx, f)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), stopGracePeriod)
	defer stopCancel()
	if err := f.Stop(stopCtx); err != nil {
		f.Logger.Sugar().Warnf("browsergate: error during shutdown: %v", err)
	}

	if stdioErr != nil && !errors.Is(stdioErr, io.EOF) && !errors.Is(stdioErr, context.Canceled) {
		return 2, fmt.Errorf("mcp stdio loop failed: %w", stdioErr)
	}
	return 0, nil
}

func registerExampleTools(f *foundation.Foundation) error {
	if err := f.RegisterTool(examples.NewNavigate()); err != nil {
		return err
	}
	if err := f.RegisterTool(examples.NewScreenshot()); err != nil {
		return err
	}
	if err := f.RegisterTool(examples.NewEvaluate()); err != nil {
		return err
	}
	return nil
}

// requestTimeout peeks msg's method/params (a malformed message just
// yields bridge.FastTimeout; HandleRaw below does the real parsing and
// reports the protocol error) and derives the per-request deadline via
// bridge.ToolCallTimeout, so a slow tool can't starve the stdio loop
// but a tool's own declared capabilities.timeout_ms is still honored.
func requestTimeout(f *foundation.Foundation, msg []byte) time.Duration {
	var envelope struct {
		Method string          `json:"method"`
		Params json.RawMessage `json:"params"`
	}
	if json.Unmarshal(msg, &envelope) != nil {
		return bridge.FastTimeout
	}
	return bridge.ToolCallTimeout(f.Registry, envelope.Method, envelope.Params)
}

// runStdioLoop reads framed JSON-RPC messages from stdin and writes
// responses to stdout until EOF, a read error, or ctx is cancelled.
func runStdioLoop(ctx context.Context, f *foundation.Foundation) error {
	reader := bufio.NewReader(os.Stdin)
	writer := bufio.NewWriter(os.Stdout)
	defer writer.Flush()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		msg, err := bridge.ReadStdioMessage(reader, maxStdioBodyBytes)
		if err != nil {
			return err
		}
		if msg == nil {
			continue
		}

		callCtx, cancel := context.WithTimeout(ctx, requestTimeout(f, msg))
		resp := f.Handler.HandleRaw(callCtx, msg)
		cancel()
		if resp == nil {
			continue // notification: no reply
		}
		if _, err := writer.Write(resp); err != nil {
			return err
		}
		if err := writer.WriteByte('\n'); err != nil {
			return err
		}
		if err := writer.Flush(); err != nil {
			return err
		}
	}
}
