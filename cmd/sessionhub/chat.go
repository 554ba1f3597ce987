package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"sessionhub/internal/format"
	"sessionhub/internal/gateway"
	"sessionhub/internal/model"
	"sessionhub/internal/registry"
)

type chatOptions struct {
	project        string
	sessionID      string
	requestID      string
	model          string
	permissionMode string
	allowedTools   []string
	resume         string
	serverURL      string
}

func newChatCmd(root *rootOptions) *cobra.Command {
	opts := &chatOptions{}

	cmd := &cobra.Command{
		Use:   "chat [prompt...]",
		Short: "Send a prompt to an AI CLI and stream the reply",
		Long: "Send a prompt to an AI CLI and stream the reply. The prompt is read from\n" +
			"stdin when no arguments are given. With --server the request goes through\n" +
			"a running sessionhub server; otherwise the CLI is spawned locally.",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := root.load(cmd)
			if err != nil {
				return err
			}
			tool, err := root.toolChoice()
			if err != nil {
				return err
			}
			req, err := opts.request(tool, args, cmd.InOrStdin())
			if err != nil {
				return err
			}

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			var last model.StreamChunk
			emit := func(chunk model.StreamChunk) {
				if chunk.Type == model.ChunkError {
					fmt.Fprint(cmd.ErrOrStderr(), format.RenderChunk(chunk)) //nolint:errcheck
				} else {
					fmt.Fprint(cmd.OutOrStdout(), format.RenderChunk(chunk)) //nolint:errcheck
				}
				last = chunk
			}

			if opts.serverURL != "" {
				err = streamRemote(ctx, opts.serverURL, req, emit)
			} else {
				err = streamLocal(ctx, a, req, emit)
			}
			if err != nil {
				return err
			}
			if last.Type == model.ChunkError {
				return fmt.Errorf("request %s failed: %s", req.RequestID, last.Message)
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.project, "project", "", "project directory the CLI runs in (default: current directory)")
	flags.StringVar(&opts.sessionID, "session", "", "session id used to reject concurrent requests")
	flags.StringVar(&opts.requestID, "request-id", "", "request id (default: random UUID)")
	flags.StringVar(&opts.model, "model", "", "model passed to the CLI")
	flags.StringVar(&opts.permissionMode, "permission-mode", "", "permission, sandbox or approval mode passed to the CLI")
	flags.StringSliceVar(&opts.allowedTools, "allowed-tools", nil, "tools the CLI may use without asking")
	flags.StringVar(&opts.resume, "resume", "", "resume the given CLI session id")
	flags.StringVar(&opts.serverURL, "server", "", "sessionhub server URL, e.g. http://127.0.0.1:8787")
	return cmd
}

func (o *chatOptions) request(tool model.AiTool, args []string, stdin io.Reader) (model.ChatRequest, error) {
	prompt := strings.Join(args, " ")
	if len(args) == 0 || prompt == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return model.ChatRequest{}, fmt.Errorf("read prompt: %w", err)
		}
		prompt = string(data)
	}
	if strings.TrimSpace(prompt) == "" {
		return model.ChatRequest{}, errors.New("prompt is empty")
	}

	project := o.project
	if project == "" {
		wd, err := os.Getwd()
		if err != nil {
			return model.ChatRequest{}, fmt.Errorf("determine current directory: %w", err)
		}
		project = wd
	}
	requestID := o.requestID
	if requestID == "" {
		requestID = uuid.NewString()
	}

	req := model.ChatRequest{
		RequestID:   requestID,
		SessionID:   o.sessionID,
		Tool:        tool,
		ProjectPath: project,
		Prompt:      prompt,
	}
	if o.model != "" || o.permissionMode != "" || len(o.allowedTools) > 0 || o.resume != "" {
		req.Config = &model.ToolConfig{
			Model:           o.model,
			PermissionMode:  o.permissionMode,
			AllowedTools:    o.allowedTools,
			ResumeSessionID: o.resume,
		}
	}
	return req, req.Validate()
}

func streamLocal(ctx context.Context, a *app, req model.ChatRequest, fn func(model.StreamChunk)) error {
	stream, err := a.newBridge().Start(ctx, req)
	if err != nil {
		return err
	}
	for chunk := range stream.Chunks() {
		fn(chunk)
	}
	return nil
}

func streamRemote(ctx context.Context, base string, req model.ChatRequest, fn func(model.StreamChunk)) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(base, "/")+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("post chat: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return responseError(resp)
	}

	terminal := false
	err = gateway.ReadEvents(resp.Body, func(ev gateway.Event) error {
		var chunk model.StreamChunk
		if err := json.Unmarshal([]byte(ev.Data), &chunk); err != nil {
			return fmt.Errorf("decode %s event: %w", ev.Name, err)
		}
		fn(chunk)
		terminal = chunk.IsTerminal()
		return nil
	})
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("read stream: %w", err)
	}
	if !terminal && ctx.Err() == nil {
		fn(model.ErrorChunk(gateway.ClosedWithoutTerminal))
	}
	return nil
}

func responseError(resp *http.Response) error {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil || payload.Error == "" {
		return fmt.Errorf("server returned %s", resp.Status)
	}
	return fmt.Errorf("server returned %s: %s", resp.Status, payload.Error)
}

func callJSON(ctx context.Context, method, target string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, target, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return responseError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func newActiveCmd(root *rootOptions) *cobra.Command {
	var (
		serverURL  string
		formatFlag string
		noHeader   bool
	)

	cmd := &cobra.Command{
		Use:   "active",
		Short: "List requests running on a sessionhub server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := root.load(cmd)
			if err != nil {
				return err
			}
			var active []registry.ActiveProcess
			target := strings.TrimRight(a.serverURL(serverURL), "/") + "/api/chat/active"
			if err := callJSON(cmd.Context(), http.MethodGet, target, &active); err != nil {
				return err
			}
			return format.WriteActive(cmd.OutOrStdout(), active, !noHeader, formatFlag, time.Now())
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&serverURL, "server", "", "sessionhub server URL (default: http://<config addr>)")
	flags.StringVar(&formatFlag, "format", "table", "output format: table, plain, json, or jsonl")
	flags.BoolVar(&noHeader, "no-header", false, "omit header row")
	return cmd
}

func newAbortCmd(root *rootOptions) *cobra.Command {
	var serverURL string

	cmd := &cobra.Command{
		Use:   "abort <request-id>",
		Short: "Abort a request running on a sessionhub server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := root.load(cmd)
			if err != nil {
				return err
			}
			var result struct {
				Success bool `json:"success"`
			}
			target := strings.TrimRight(a.serverURL(serverURL), "/") + "/api/chat/" + url.PathEscape(args[0]) + "/abort"
			if err := callJSON(cmd.Context(), http.MethodPost, target, &result); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "abort requested for %s\n", args[0]) //nolint:errcheck
			return nil
		},
	}

	cmd.Flags().StringVar(&serverURL, "server", "", "sessionhub server URL (default: http://<config addr>)")
	return cmd
}

func newToolsCmd(root *rootOptions) *cobra.Command {
	var (
		formatFlag string
		noHeader   bool
	)

	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Show which AI CLIs are installed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := root.load(cmd)
			if err != nil {
				return err
			}
			return format.WriteTools(cmd.OutOrStdout(), a.newBridge().ProbeAll(), !noHeader, formatFlag)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&formatFlag, "format", "table", "output format: table, plain, json, or jsonl")
	flags.BoolVar(&noHeader, "no-header", false, "omit header row")
	return cmd
}
