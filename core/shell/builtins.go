package shell

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	_ "embed"

	"github.com/fatih/color"
	"github.com/josephlewis42/libterm/core/config"
	"github.com/josephlewis42/libterm/core/logger"
	"github.com/josephlewis42/libterm/core/settings"
	"github.com/josephlewis42/libterm/core/ui"
	"github.com/juju/ratelimit"
	"github.com/muesli/termenv"
	"github.com/pborman/getopt/v2"
)

var (
	//go:embed text/credits.txt
	creditsText string
	//go:embed text/compiling.txt
	compilingText string
)

// TimeLayout formats dates shown to the user.
const TimeLayout = "Jan 2, 2006 at 3:04 PM"

// AllBuiltins holds a list of all registered shell builtins
var AllBuiltins = make(map[string]ShellBuiltin)

// interactiveOnly built-ins need a front end that embedded shells lack.
var interactiveOnly = map[string]bool{
	"edit": true,
}

type ShellBuiltin interface {
	Main(ctx context.Context, s *Shell, args []string) int
}

type ShellBuiltinFunc func(ctx context.Context, s *Shell, args []string) int

func (f ShellBuiltinFunc) Main(ctx context.Context, s *Shell, args []string) int {
	return f(ctx, s, args)
}

var _ ShellBuiltin = (ShellBuiltinFunc)(nil)

func builtinsFor(cfg *config.Configuration) map[string]ShellBuiltin {
	out := make(map[string]ShellBuiltin)
	for name, builtin := range AllBuiltins {
		if cfg.Embedded && interactiveOnly[name] {
			continue
		}
		out[name] = builtin
	}
	return out
}

// uiDo sends req to the front end and logs the outcome.
func (s *Shell) uiDo(ctx context.Context, req ui.Request) ui.Response {
	resp := s.UI.Do(ctx, req)
	if resp.Err != nil {
		s.log.Debug("ui request failed", "request", req.Kind(), "error", resp.Err)
	}
	s.recordEvent(logger.UIRequest(req.Kind(), resp.Err))
	return resp
}

// terminalLines returns $LINES or 0 if it isn't a number.
func (s *Shell) terminalLines() int {
	value, _ := s.Vars.Get(VarLines)
	lines, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return lines
}

// page writes text a screen at a time, pausing PageDelay between screens so
// the reader sees the start before it scrolls away.
func (s *Shell) page(w io.Writer, text string) {
	lines := strings.Split(strings.TrimSuffix(text, "\n"), "\n")
	pageSize := s.terminalLines() - 6

	if pageSize <= 0 || s.PageDelay <= 0 {
		fmt.Fprintln(w, strings.Join(lines, "\n"))
		return
	}

	bucket := ratelimit.NewBucketWithQuantum(s.PageDelay, int64(pageSize), int64(pageSize))
	for _, line := range lines {
		bucket.Wait(1)
		fmt.Fprintln(w, line)
	}
}

func (s *Shell) versionText() string {
	version := s.Version
	if version == "" {
		version = "(devel)"
	}
	return fmt.Sprintf("libterm version %s\n\n", version)
}

// Clear clears the screen.
func Clear(ctx context.Context, s *Shell, args []string) int {
	if resp := s.uiDo(ctx, ui.Clear{}); resp.Err != nil {
		termenv.NewOutput(s.Stdout()).ClearScreen()
	}
	return 0
}

// Help lists the commands or prints one of the help topics.
func Help(ctx context.Context, s *Shell, args []string) int {
	opts := getopt.New()
	version := opts.BoolLong("version", 0, "print the version and exit")
	startup := opts.BoolLong("startup", 's', "print the startup banner and record the login")
	compiling := opts.BoolLong("compiling", 0, "explain how to compile and run programs")
	restored := opts.BoolLong("restored", 'r', "print the restoration banner")
	helpOpt := opts.BoolLong("help", 'h', "show help and exit")

	if err := opts.Getopt(args, nil); err != nil || *helpOpt {
		w := s.Stderr()
		if err != nil {
			fmt.Fprintln(w, err)
		}
		fmt.Fprintln(w, "usage: help [--version|--startup|--restored|compiling]")
		fmt.Fprintln(w, "Display information about the shell.")
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Options:")
		opts.PrintOptions(w)
		if err != nil {
			return 1
		}
		return 0
	}

	w := s.Stdout()
	for _, topic := range opts.Args() {
		if topic == "compiling" {
			*compiling = true
		}
	}

	switch {
	case *compiling:
		s.page(w, compilingText)
	case *restored:
		fmt.Fprintf(w, "\n\nRestored on %s\n\n", s.Now().Format(TimeLayout))
	case *version:
		fmt.Fprint(w, s.versionText())
	case *startup:
		banner := s.versionText()
		if lastLogin, ok := s.lastLogin(); ok {
			banner = strings.TrimRight(banner, "\n") + fmt.Sprintf("\nLast login: %s\n", lastLogin.Format(TimeLayout))
		}
		fmt.Fprint(w, banner)
		s.recordLogin()
	default:
		bold := color.New(color.Bold)
		fmt.Fprint(w, s.versionText())
		bold.Fprintln(w, "Built-in commands:")
		fmt.Fprintln(w, strings.Join(s.BuiltinNames(), ", "))
		if len(s.Commands) > 0 {
			fmt.Fprintln(w)
			bold.Fprintln(w, "Commands:")
			fmt.Fprintln(w, strings.Join(s.Commands, ", "))
		}
		if programs := s.ProgramNames(); len(programs) > 0 {
			fmt.Fprintln(w)
			bold.Fprintln(w, "Programs:")
			fmt.Fprintln(w, strings.Join(programs, ", "))
		}
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Type 'help compiling' to learn how to compile and run C programs.")
	}
	return 0
}

func (s *Shell) lastLogin() (time.Time, bool) {
	if s.Settings == nil {
		return time.Time{}, false
	}
	var last time.Time
	ok, err := s.Settings.Get(settings.KeyLastLogin, &last)
	if err != nil {
		s.log.Warn("reading last login", "error", err)
		return time.Time{}, false
	}
	return last, ok
}

func (s *Shell) recordLogin() {
	if s.Settings == nil {
		return
	}
	if err := s.Settings.Put(settings.KeyLastLogin, s.Now()); err != nil {
		s.log.Warn("recording login", "error", err)
	}
}

// Exit closes the terminal.
func Exit(ctx context.Context, s *Shell, args []string) int {
	code := 0
	switch len(args) {
	case 1:
	case 2:
		var err error
		if code, err = strconv.Atoi(args[1]); err != nil {
			fmt.Fprintf(s.Stderr(), "%s: %s: numeric argument required\n", args[0], args[1])
			return 1
		}
	default:
		fmt.Fprintf(s.Stderr(), "%s: too many arguments\n", args[0])
		return 1
	}

	s.uiDo(ctx, ui.CloseTab{Code: code})
	return code
}

// Open opens URLs and shares files or text through the front end.
func Open(ctx context.Context, s *Shell, args []string) int {
	if len(args) == 1 {
		fmt.Fprintf(s.Stdout(), "Usage:\n%s [Items to share ...]\n", args[0])
		return 1
	}

	var items []string
	for _, arg := range args[1:] {
		if path, err := s.ResolvePath(arg); err == nil {
			if _, err := s.Fs.Stat(path); err == nil {
				items = append(items, path)
				continue
			}
		}

		if isURL(arg) {
			if resp := s.uiDo(ctx, ui.OpenURL{URL: arg}); resp.Err != nil {
				fmt.Fprintf(s.Stderr(), "%s: %v\n", args[0], resp.Err)
				return 1
			}
			return 0
		}

		items = append(items, arg)
	}

	if resp := s.uiDo(ctx, ui.Share{Items: items}); resp.Err != nil {
		fmt.Fprintf(s.Stderr(), "%s: %v\n", args[0], resp.Err)
		return 1
	}
	return 0
}

func isURL(arg string) bool {
	u, err := url.Parse(arg)
	if err != nil || u.Scheme == "" || u.Scheme == "file" {
		return false
	}
	return u.Host != "" || u.Opaque != ""
}

// Credits prints the version and the projects libterm is built on.
func Credits(ctx context.Context, s *Shell, args []string) int {
	w := s.Stdout()
	fmt.Fprint(w, s.versionText())

	text := strings.NewReplacer(
		"BOLD", "\x1b[1m",
		"PLAIN", "\x1b[0m",
	).Replace(creditsText)
	s.page(w, text)
	return 0
}

// Edit opens files in the front end's editor and waits for it to close.
func Edit(ctx context.Context, s *Shell, args []string) int {
	if len(args) == 1 {
		fmt.Fprintf(s.Stderr(), "Usage:\n\n  %s [FILE]...\n", args[0])
		return 1
	}

	for _, arg := range args[1:] {
		path, err := s.ResolvePath(arg)
		if err != nil {
			fmt.Fprintf(s.Stderr(), "%s: %v\n", args[0], err)
			return 1
		}
		if resp := s.uiDo(ctx, ui.Edit{Path: path}); resp.Err != nil {
			fmt.Fprintf(s.Stderr(), "%s: %s: %v\n", args[0], arg, resp.Err)
			return 1
		}
	}
	return 0
}

// SSH hands a connection to user@host off to the front end's client.
func SSH(ctx context.Context, s *Shell, args []string) int {
	usage := func() int {
		fmt.Fprintf(s.Stdout(), "usage: %s [-p port] user@hostname\n", args[0])
		return 1
	}

	opts := getopt.New()
	port := opts.Int('p', 22, "port to connect to")
	if err := opts.Getopt(args, nil); err != nil || opts.NArgs() != 1 {
		return usage()
	}

	address := opts.Arg(0)
	if strings.Count(address, "@") != 1 || *port <= 0 || *port > 65535 {
		return usage()
	}

	link := fmt.Sprintf("%s://%s:%d", args[0], address, *port)
	if resp := s.uiDo(ctx, ui.OpenURL{URL: link}); resp.Err != nil {
		fmt.Fprintf(s.Stderr(), "%s: %v\n", args[0], resp.Err)
		return 1
	}
	return 0
}

// Pbcopy copies its input to the clipboard.
func Pbcopy(ctx context.Context, s *Shell, args []string) int {
	data, err := io.ReadAll(s.Stdin())
	if err != nil {
		fmt.Fprintf(s.Stderr(), "%s: %v\n", args[0], err)
		return 1
	}
	if len(data) == 0 || !utf8.Valid(data) {
		return 1
	}

	if resp := s.uiDo(ctx, ui.SetClipboard{Text: string(data)}); resp.Err != nil {
		fmt.Fprintf(s.Stderr(), "%s: %v\n", args[0], resp.Err)
		return 1
	}
	return 0
}

// Pbpaste writes the clipboard to the output.
func Pbpaste(ctx context.Context, s *Shell, args []string) int {
	resp := s.uiDo(ctx, ui.GetClipboard{})
	if resp.Err != nil {
		fmt.Fprintf(s.Stderr(), "%s: %v\n", args[0], resp.Err)
		return 1
	}
	fmt.Fprint(s.Stdout(), resp.Text)
	return 0
}

// ShowHistory lists or clears the history.
func ShowHistory(ctx context.Context, s *Shell, args []string) int {
	opts := getopt.New()
	clear := opts.Bool('c', "clear the history by deleting all entries")
	helpOpt := opts.BoolLong("help", 'h', "show help and exit")

	if err := opts.Getopt(args, nil); err != nil || *helpOpt {
		w := s.Stderr()
		if err != nil {
			fmt.Fprintln(w, err)
		}
		fmt.Fprintln(w, "Display or manipulate the history list")
		fmt.Fprintln(w, "Display the history list with line numbers.")
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Options:")
		opts.PrintOptions(w)
		return 1
	}

	if *clear {
		if err := s.History.Clear(); err != nil {
			fmt.Fprintf(s.Stderr(), "%s: %v\n", args[0], err)
			return 1
		}
		return 0
	}

	lines, err := s.History.All()
	if err != nil {
		fmt.Fprintf(s.Stderr(), "%s: %v\n", args[0], err)
		return 1
	}
	for i, line := range lines {
		fmt.Fprintf(s.Stdout(), "%5d  %s\n", i+1, line)
	}
	return 0
}

func init() {
	AllBuiltins["clear"] = ShellBuiltinFunc(Clear)
	AllBuiltins["help"] = ShellBuiltinFunc(Help)
	AllBuiltins["exit"] = ShellBuiltinFunc(Exit)
	AllBuiltins["sh"] = ShellBuiltinFunc(Source)
	AllBuiltins["source"] = ShellBuiltinFunc(Source)
	AllBuiltins["open"] = ShellBuiltinFunc(Open)
	AllBuiltins["credits"] = ShellBuiltinFunc(Credits)
	AllBuiltins["edit"] = ShellBuiltinFunc(Edit)
	AllBuiltins["ssh"] = ShellBuiltinFunc(SSH)
	AllBuiltins["sftp"] = ShellBuiltinFunc(SSH)
	AllBuiltins["pbcopy"] = ShellBuiltinFunc(Pbcopy)
	AllBuiltins["pbpaste"] = ShellBuiltinFunc(Pbpaste)
	AllBuiltins["history"] = ShellBuiltinFunc(ShowHistory)
}
