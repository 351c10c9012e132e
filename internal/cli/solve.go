package cli

import (
	"bufio"
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/bufbuild/connect-go"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/net/http2"

	"github.com/trisolve/trisolve/internal/config"
	"github.com/trisolve/trisolve/internal/rpc"
	"github.com/trisolve/trisolve/internal/rpc/connectjson"
	solverpc "github.com/trisolve/trisolve/internal/rpc/solve"
)

var (
	stageStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	toolStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
	errorStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	answerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	faintStyle  = lipgloss.NewStyle().Faint(true)
)

// NewSolveCmd streams a solve run from the daemon. With a problem argument it
// runs once and exits; without one it opens the interactive menu.
func NewSolveCmd(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "solve [\"<problem>\"]",
		Short: "Send a problem to the daemon and stream the solve run",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}

			if len(args) == 1 {
				problem := strings.TrimSpace(args[0])
				if problem == "" {
					return fmt.Errorf("problem cannot be empty")
				}
				return streamSolve(cmd.Context(), cmd, cfg, problem)
			}

			return runMenu(cmd, cfg)
		},
	}
	return cmd
}

// streamSolve sends one problem to the daemon over the configured transport
// and renders events as they arrive.
func streamSolve(ctx context.Context, cmd *cobra.Command, cfg *config.Config, problem string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sessionID := "cli-" + uuid.NewString()
	req := rpc.SolveRequest{
		SessionID:     sessionID,
		CorrelationID: sessionID + "-corr",
		Problem:       problem,
	}

	baseURL := daemonURL(cfg.Server.Addr)
	switch strings.ToLower(strings.TrimSpace(cfg.Server.Transport)) {
	case "ndjson":
		return solveNDJSON(ctx, cmd, baseURL+"/solve", req)
	default:
		return solveConnect(ctx, cmd, baseURL+solverpc.ConnectSolveProcedure, req)
	}
}

func daemonURL(addr string) string {
	if strings.HasPrefix(addr, "http://") || strings.HasPrefix(addr, "https://") {
		return addr
	}
	if strings.HasPrefix(addr, ":") {
		return "http://localhost" + addr
	}
	return "http://" + addr
}

func solveNDJSON(ctx context.Context, cmd *cobra.Command, url string, reqBody rpc.SolveRequest) error {
	data, err := json.Marshal(reqBody)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("daemon returned status %d", resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var evt rpc.SolveEvent
		if err := json.Unmarshal(scanner.Bytes(), &evt); err != nil {
			return fmt.Errorf("decode event: %w", err)
		}
		if err := renderEvent(cmd, evt); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func solveConnect(ctx context.Context, cmd *cobra.Command, url string, reqBody rpc.SolveRequest) error {
	client := connect.NewClient[rpc.SolveStreamRequest, rpc.SolveEvent](buildH2CClient(), url, connect.WithCodec(connectjson.Codec{}))
	stream := client.CallBidiStream(ctx)

	if err := stream.Send(&rpc.SolveStreamRequest{Solve: &reqBody}); err != nil {
		return err
	}

	// propagate cancellation to the daemon.
	go func() {
		<-ctx.Done()
		_ = stream.Send(&rpc.SolveStreamRequest{Cancel: true, SessionID: reqBody.SessionID, CorrelationID: reqBody.CorrelationID})
		_ = stream.CloseRequest()
	}()

	for {
		evt, err := stream.Receive()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		if err := renderEvent(cmd, *evt); err != nil {
			return err
		}
	}
	_ = stream.CloseRequest()
	return stream.CloseResponse()
}

func renderEvent(cmd *cobra.Command, evt rpc.SolveEvent) error {
	out := cmd.OutOrStdout()
	switch evt.Type {
	case "stage":
		fmt.Fprintln(out, stageStyle.Render("== "+strings.ToUpper(evt.Stage)+" =="))
	case "plan":
		fmt.Fprintln(out, faintStyle.Render(evt.Message))
	case "tool":
		line := fmt.Sprintf("[%s] %s", evt.ToolName, evt.ToolInput)
		if evt.ToolError != "" {
			line += " -> " + evt.ToolError
		} else if evt.ToolOutput != "" {
			line += " -> " + evt.ToolOutput
		}
		fmt.Fprintln(out, toolStyle.Render(line))
	case "report":
		fmt.Fprintln(out, faintStyle.Render(evt.Message))
	case "answer":
		fmt.Fprintln(out, answerStyle.Render("Final answer:"))
		fmt.Fprintln(out, evt.Message)
	case "done":
		if evt.Truncated {
			fmt.Fprintln(out, faintStyle.Render("(report was truncated at the hand-off cap)"))
		}
		if evt.PlanFallback {
			fmt.Fprintln(out, faintStyle.Render("(analyst plan was malformed; solved via reasoning)"))
		}
	case "error":
		return fmt.Errorf("%s", errorStyle.Render("daemon error: "+evt.Error))
	}
	return nil
}

func buildH2CClient() *http.Client {
	return &http.Client{
		Transport: &http2.Transport{
			AllowHTTP: true,
			DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
				var d net.Dialer
				return d.DialContext(ctx, network, addr)
			},
		},
	}
}
