// Package shell implements the interactive FTP client prompt.
package shell

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/gonzalop/ftplab/internal/config"
	"github.com/gonzalop/ftplab/internal/ftpclient"
)

const intro = `
    ================================================================
                    FTP CLIENT - CYBERSECURITY LAB
    ================================================================
    Type 'help' or '?' to list commands.
    Type 'help <command>' for detailed help on a specific command.
    ================================================================
`

const defaultPrompt = "FTP> "

type command struct {
	help string
	// run returns done=true to end the loop.
	run func(ctx context.Context, args []string) (done bool, err error)
}

// Shell reads commands line by line and runs them against an FTP client.
type Shell struct {
	cfg    config.Client
	in     io.Reader
	out    io.Writer
	logger *zap.Logger

	client   *ftpclient.Client
	prompt   string
	commands map[string]command
}

// New returns a shell that will connect with cfg once Run starts.
func New(cfg config.Client, in io.Reader, out io.Writer, logger *zap.Logger) *Shell {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Shell{
		cfg:    cfg,
		in:     in,
		out:    out,
		logger: logger,
		prompt: defaultPrompt,
	}
	s.commands = map[string]command{
		"connect":    {"Connect to FTP server: connect [host] [port] [username] [password]", s.connect},
		"disconnect": {"Disconnect from FTP server", s.disconnect},
		"upload":     {"Upload a file: upload <local_file> [remote_file]", s.upload},
		"download":   {"Download a file: download <remote_file> [local_file]", s.download},
		"ls":         {"List files: ls [directory]", s.list},
		"dir":        {"List files (alias for ls): dir [directory]", s.list},
		"pwd":        {"Show current directory: pwd", s.pwd},
		"cd":         {"Change directory: cd <directory>", s.cd},
		"stats":      {"Show connection statistics and server info", s.stats},
		"status":     {"Show connection status (alias for stats)", s.stats},
		"quit":       {"Quit the FTP client: quit", s.quit},
		"exit":       {"Exit the FTP client (alias for quit): exit", s.quit},
		"help":       {"List available commands with \"help\" or detailed help with \"help cmd\".", s.help},
	}
	return s
}

// Prompt returns the current prompt string.
func (s *Shell) Prompt() string { return s.prompt }

// Client returns the client the shell is currently driving.
func (s *Shell) Client() *ftpclient.Client { return s.client }

func (s *Shell) println(a ...any) {
	fmt.Fprintln(s.out, a...)
}

// Run prints the banner, connects, and processes commands until quit, end of
// input or ctx cancellation. The session is always closed on return.
func (s *Shell) Run(ctx context.Context) error {
	fmt.Fprint(s.out, intro)
	s.open(ctx)

	lines := make(chan string)
	readErr := make(chan error, 1)
	stop := make(chan struct{})
	defer close(stop)

	go func() {
		scanner := bufio.NewScanner(s.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-stop:
				return
			}
		}
		readErr <- scanner.Err()
	}()

	for {
		fmt.Fprint(s.out, s.prompt)

		select {
		case <-ctx.Done():
			s.println()
			s.println("Goodbye!")
			s.client.Disconnect()
			return nil
		case err := <-readErr:
			s.println()
			s.println("Goodbye!")
			s.client.Disconnect()
			if err != nil {
				return fmt.Errorf("read command: %w", err)
			}
			return nil
		case line := <-lines:
			if s.Execute(ctx, line) {
				return nil
			}
		}
	}
}

// Execute runs a single command line and reports whether the shell should
// stop.
func (s *Shell) Execute(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	if strings.HasPrefix(line, "?") {
		line = "help " + line[1:]
	}

	fields := strings.Fields(line)
	name, args := strings.ToLower(fields[0]), fields[1:]

	cmd, ok := s.commands[name]
	if !ok {
		s.println("*** Unknown syntax: " + line)
		return false
	}

	done, err := cmd.run(ctx, args)
	if err != nil {
		s.logger.Debug("command failed", zap.String("command", name), zap.Error(err))
		s.println("Error executing command: " + err.Error())
		return false
	}
	return done
}

// open replaces the client with one built from the current settings and
// connects it. Connection failures have already been reported by the client.
func (s *Shell) open(ctx context.Context) {
	s.client = ftpclient.New(s.cfg, s.out, s.logger)
	if err := s.client.Connect(ctx); err != nil {
		s.prompt = defaultPrompt
		return
	}
	s.prompt = fmt.Sprintf("FTP(%s)> ", s.cfg.Host)
}

func (s *Shell) connect(ctx context.Context, args []string) (bool, error) {
	cfg := s.cfg
	if len(args) >= 1 {
		cfg.Host = args[0]
	}
	if len(args) >= 2 {
		port, err := strconv.Atoi(args[1])
		if err != nil {
			return false, fmt.Errorf("invalid port %q", args[1])
		}
		cfg.Port = port
	}
	if len(args) >= 3 {
		cfg.User = args[2]
	}
	if len(args) >= 4 {
		cfg.Password = args[3]
	}

	s.client.Disconnect()
	s.cfg = cfg
	s.open(ctx)
	return false, nil
}

func (s *Shell) disconnect(context.Context, []string) (bool, error) {
	s.client.Disconnect()
	s.prompt = defaultPrompt
	return false, nil
}

func (s *Shell) upload(ctx context.Context, args []string) (bool, error) {
	if len(args) < 1 {
		s.println("Usage: upload <local_file> [remote_file]")
		return false, nil
	}
	_ = s.client.Upload(ctx, args[0], optional(args, 1))
	return false, nil
}

func (s *Shell) download(ctx context.Context, args []string) (bool, error) {
	if len(args) < 1 {
		s.println("Usage: download <remote_file> [local_file]")
		return false, nil
	}
	_ = s.client.Download(ctx, args[0], optional(args, 1))
	return false, nil
}

func (s *Shell) list(_ context.Context, args []string) (bool, error) {
	_ = s.client.List(strings.Join(args, " "))
	return false, nil
}

func (s *Shell) pwd(context.Context, []string) (bool, error) {
	if dir, err := s.client.CurrentDir(); err == nil {
		s.println("Current directory: " + dir)
	}
	return false, nil
}

func (s *Shell) cd(_ context.Context, args []string) (bool, error) {
	if len(args) == 0 {
		s.println("Usage: cd <directory>")
		return false, nil
	}
	_ = s.client.ChangeDir(strings.Join(args, " "))
	return false, nil
}

func (s *Shell) stats(context.Context, []string) (bool, error) {
	c := s.client
	if !c.Connected() {
		s.println("Not connected to server")
		return false, nil
	}

	s.println("Connection Status: Connected")
	s.println(fmt.Sprintf("Server: %s:%d", c.Host(), c.Port()))
	s.println("Username: " + c.Username())

	dir, err := c.CurrentDir()
	if err != nil {
		dir = "unknown"
	}
	s.println("Current Directory: " + dir)

	status, err := c.Status()
	if err != nil {
		s.logger.Debug("STAT failed", zap.Error(err))
		s.println("Server Status: Not available")
		return false, nil
	}
	s.println("Server Status: " + status)
	return false, nil
}

func (s *Shell) quit(context.Context, []string) (bool, error) {
	s.println("Goodbye!")
	s.client.Disconnect()
	return true, nil
}

func (s *Shell) help(_ context.Context, args []string) (bool, error) {
	if len(args) > 0 {
		name := strings.ToLower(args[0])
		if cmd, ok := s.commands[name]; ok {
			s.println(cmd.help)
		} else {
			s.println("*** No help on " + args[0])
		}
		return false, nil
	}

	names := make([]string, 0, len(s.commands))
	for name := range s.commands {
		names = append(names, name)
	}
	slices.Sort(names)

	s.println()
	s.println("Documented commands (type help <topic>):")
	s.println(strings.Repeat("=", 40))
	s.println(strings.Join(names, "  "))
	s.println()
	return false, nil
}

func optional(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}
