package repl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"alchemy/internal/cli/command"
	"alchemy/internal/cli/config"
	httpclient "alchemy/internal/cli/http"
	"alchemy/internal/cli/state"
	"alchemy/internal/common/http/middleware"
	pkgerrors "alchemy/pkg/errors"

	"github.com/chzyer/readline"
	"github.com/google/shlex"
)

const prompt = "alchemy> "

var errExit = errors.New("exit")

// Session holds REPL state.
type Session struct {
	client     *httpclient.Client
	commands   map[string]command.Command
	tokenState *state.TokenState
	statePath  string
	auth       config.AuthConfig
	prettyJSON bool
	out        io.Writer
	// prompt reads one value for a missing required field.
	prompt func(label string) (string, error)
	now    func() time.Time
}

func New(client *httpclient.Client, commands map[string]command.Command, tokenState *state.TokenState, cfg config.Config) *Session {
	return &Session{
		client:     client,
		commands:   commands,
		tokenState: tokenState,
		statePath:  cfg.TokenStatePath,
		auth:       cfg.Auth,
		prettyJSON: cfg.PrettyJSON != nil && *cfg.PrettyJSON,
		out:        os.Stdout,
		now:        time.Now,
	}
}

// Run reads commands until exit or end of input.
func (s *Session) Run(ctx context.Context, historyFile string) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          prompt,
		HistoryFile:     historyFile,
		AutoComplete:    s.completer(),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("init readline failed: %w", err)
	}
	defer func() { _ = rl.Close() }()

	s.out = rl.Stdout()
	s.prompt = func(label string) (string, error) {
		rl.SetPrompt(label + ": ")
		defer rl.SetPrompt(prompt)
		line, err := rl.Readline()
		if err != nil {
			return "", fmt.Errorf("read input failed: %w", err)
		}
		return strings.TrimSpace(line), nil
	}

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if line == "" {
				return nil
			}
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read input failed: %w", err)
		}
		if err := s.Execute(ctx, line); err != nil {
			if errors.Is(err, errExit) {
				s.printLine("bye")
				return nil
			}
			s.printLine("error: %v", err)
		}
	}
}

// Execute runs one input line.
func (s *Session) Execute(ctx context.Context, line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	if handled, err := s.handleSystemCommand(line); handled {
		return err
	}
	return s.handleCommand(ctx, line)
}

func (s *Session) completer() readline.AutoCompleter {
	byService := map[string][]readline.PrefixCompleterInterface{}
	var services []string
	for _, key := range command.Keys(s.commands) {
		cmd := s.commands[key]
		if _, ok := byService[cmd.Service]; !ok {
			services = append(services, cmd.Service)
		}
		byService[cmd.Service] = append(byService[cmd.Service], readline.PcItem(cmd.Action))
	}
	items := []readline.PrefixCompleterInterface{
		readline.PcItem("help"),
		readline.PcItem("exit"),
		readline.PcItem("set", readline.PcItem("base"), readline.PcItem("timeout"), readline.PcItem("token")),
		readline.PcItem("show", readline.PcItem("token"), readline.PcItem("config")),
		readline.PcItem("token", readline.PcItem("issue"), readline.PcItem("clear")),
	}
	for _, svc := range services {
		items = append(items, readline.PcItem(svc, byService[svc]...))
	}
	return readline.NewPrefixCompleter(items...)
}

func (s *Session) handleSystemCommand(line string) (bool, error) {
	switch line {
	case "exit", "quit":
		return true, errExit
	case "help":
		s.printHelp()
		return true, nil
	}
	if strings.HasPrefix(line, "set ") {
		s.handleSet(strings.TrimSpace(strings.TrimPrefix(line, "set ")))
		return true, nil
	}
	if strings.HasPrefix(line, "show ") {
		s.handleShow(strings.TrimSpace(strings.TrimPrefix(line, "show ")))
		return true, nil
	}
	if strings.HasPrefix(line, "token ") {
		return true, s.handleToken(strings.TrimSpace(strings.TrimPrefix(line, "token ")))
	}
	return false, nil
}

func (s *Session) handleSet(args string) {
	parts := strings.Fields(args)
	if len(parts) == 0 {
		s.printLine("usage: set base|token|timeout")
		return
	}
	switch parts[0] {
	case "base":
		if len(parts) < 2 {
			s.printLine("usage: set base http://127.0.0.1:8090")
			return
		}
		s.client.SetBaseURL(parts[1])
		s.printLine("base set to %s", parts[1])
	case "timeout":
		if len(parts) < 2 {
			s.printLine("usage: set timeout 10s")
			return
		}
		dur, err := time.ParseDuration(parts[1])
		if err != nil {
			s.printLine("invalid duration: %v", err)
			return
		}
		s.client.SetTimeout(dur)
		s.printLine("timeout set to %s", dur)
	case "token":
		if len(parts) < 2 {
			s.printLine("usage: set token <access_token>")
			return
		}
		*s.tokenState = state.TokenState{AccessToken: parts[1]}
		if err := state.Save(s.statePath, *s.tokenState); err != nil {
			s.printLine("save token failed: %v", err)
			return
		}
		s.printLine("token updated")
	default:
		s.printLine("unknown set command")
	}
}

func (s *Session) handleShow(args string) {
	switch args {
	case "token":
		if s.tokenState.AccessToken == "" {
			s.printLine("token: <empty>")
			return
		}
		token := s.tokenState.AccessToken
		if len(token) > 12 {
			token = token[:6] + "..." + token[len(token)-4:]
		}
		if s.tokenState.Expired(s.now()) {
			s.printLine("token: %s (expired)", token)
			return
		}
		s.printLine("token: %s", token)
	case "config":
		s.printLine("base: %s", s.client.BaseURL())
		s.printLine("tokenStatePath: %s", s.statePath)
	default:
		s.printLine("usage: show token|config")
	}
}

func (s *Session) handleToken(args string) error {
	switch args {
	case "issue":
		if s.auth.Secret == "" {
			return fmt.Errorf("auth.secret is not configured")
		}
		auth := middleware.NewAuthenticator(middleware.AuthConfig{Secret: s.auth.Secret, Issuer: s.auth.Issuer})
		token, err := auth.Sign(s.auth.Subject, s.auth.Role, s.auth.TTL)
		if err != nil {
			return fmt.Errorf("sign token failed: %w", err)
		}
		*s.tokenState = state.TokenState{
			AccessToken: token,
			Subject:     s.auth.Subject,
			ExpiresAt:   s.now().Add(s.auth.TTL).UTC(),
		}
		if err := state.Save(s.statePath, *s.tokenState); err != nil {
			return err
		}
		s.printLine("token issued for %s, expires %s", s.auth.Subject, s.tokenState.ExpiresAt.Format(time.RFC3339))
		return nil
	case "clear":
		*s.tokenState = state.TokenState{}
		return state.Clear(s.statePath)
	default:
		s.printLine("usage: token issue|clear")
		return nil
	}
}

func (s *Session) handleCommand(ctx context.Context, line string) error {
	tokens, err := shlex.Split(line)
	if err != nil {
		return fmt.Errorf("parse command failed: %w", err)
	}
	if len(tokens) < 2 {
		return fmt.Errorf("invalid command, use: <service> <action> key=value ...")
	}
	cmd, ok := s.commands[tokens[0]+" "+tokens[1]]
	if !ok {
		return fmt.Errorf("unknown command: %s %s", tokens[0], tokens[1])
	}
	params, err := command.ParseParams(tokens[2:])
	if err != nil {
		return err
	}
	params.Canonicalize(cmd.Fields)
	if err := s.promptMissing(cmd, params); err != nil {
		return err
	}
	if cmd.RequiresAuth && s.tokenState.AccessToken == "" {
		s.printLine("warning: no token set, use 'token issue' or 'set token'")
	}

	req, err := command.BuildRequest(cmd, params)
	if err != nil {
		return err
	}
	if cmd.Stream {
		return s.watch(ctx, req.Path, params.Get("count"))
	}
	resp, err := s.client.Do(ctx, req.Method, req.Path, req.Headers, req.Body)
	if err != nil {
		return err
	}
	s.renderResponse(resp)
	return nil
}

func (s *Session) promptMissing(cmd command.Command, params command.Params) error {
	fromFile := cmd.FileField != "" && params.Get(cmd.FileField) != ""
	for _, field := range cmd.Fields {
		if !field.Required || params.Get(field.Name) != "" {
			continue
		}
		if fromFile && field.Name != "id" {
			continue
		}
		if s.prompt == nil {
			return fmt.Errorf("%s is required", field.Name)
		}
		value, err := s.prompt(field.Prompt)
		if err != nil {
			return err
		}
		params.Set(field.Name, value)
	}
	return nil
}

func (s *Session) watch(ctx context.Context, path, rawCount string) error {
	limit := 0
	if rawCount != "" {
		n, err := command.ParseInt(rawCount)
		if err != nil {
			return fmt.Errorf("invalid count: %w", err)
		}
		limit = n
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	s.printLine("watching %s (Ctrl-C to stop)", path)
	seen := 0
	return s.client.Watch(ctx, path, func(data []byte) bool {
		s.printBody(data)
		seen++
		return limit <= 0 || seen < limit
	})
}

func (s *Session) renderResponse(resp httpclient.ResponseInfo) {
	s.printLine("HTTP %d (%s)", resp.StatusCode, resp.Duration)
	if len(resp.Body) == 0 {
		return
	}
	var env struct {
		Code    pkgerrors.ErrorCode `json:"code"`
		Message string              `json:"message"`
	}
	if err := json.Unmarshal(resp.Body, &env); err == nil && env.Code != pkgerrors.Success {
		s.printLine("code %d: %s", env.Code, env.Message)
	}
	s.printBody(resp.Body)
}

func (s *Session) printBody(body []byte) {
	if s.prettyJSON {
		var raw interface{}
		if err := json.Unmarshal(body, &raw); err == nil {
			formatted, _ := json.MarshalIndent(raw, "", "  ")
			s.printLine("%s", string(formatted))
			return
		}
	}
	s.printLine("%s", string(body))
}

func (s *Session) printHelp() {
	s.printLine("usage: <service> <action> key=value ...")
	s.printLine("system: help | exit | set base|timeout|token | show token|config | token issue|clear")
	s.printLine("commands:")
	for _, key := range command.Keys(s.commands) {
		s.printLine("  %s", key)
	}
	s.printLine("examples:")
	s.printLine("  competition upsert id=c1 dao=dao-1 start=+1m suggestions_end=+5m voting_start=+10m end=+15m submissions=2")
	s.printLine("  competition list dao=dao-1 limit=20")
	s.printLine("  competition watch dao=dao-1 count=5")
}

func (s *Session) printLine(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(s.out, format+"\n", args...)
}
