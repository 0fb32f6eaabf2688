package shell

import (
	"strconv"
	"strings"

	"github.com/josephlewis42/libterm/core/vos"
)

const (
	// VarLastExitCode holds the status of the last command run by the
	// executor.
	VarLastExitCode = "?"
	// VarAllArgs holds the script arguments joined by spaces.
	VarAllArgs = "@"
)

// Variables is the shell's variable store. Unlike environment variables they
// are substituted into the line as text before it's tokenized.
type Variables struct {
	env *vos.MapEnv
}

// NewVariables creates a store seeded with NAME=value pairs.
func NewVariables(initial []string) *Variables {
	return &Variables{env: vos.NewMapEnvFromEnvList(initial)}
}

// Get returns the value of name.
func (v *Variables) Get(name string) (string, bool) {
	return v.env.LookupEnv(name)
}

// Set sets name to value. A new name is substituted after existing ones.
func (v *Variables) Set(name, value string) {
	_ = v.env.Setenv(name, value)
}

// Unset removes name.
func (v *Variables) Unset(name string) {
	_ = v.env.Unsetenv(name)
}

// Environ returns NAME=value pairs in substitution order.
func (v *Variables) Environ() []string {
	return v.env.Environ()
}

// Substitute replaces every $NAME in line with its value. Substituted text
// isn't expanded again.
func (v *Variables) Substitute(line string) string {
	if !strings.Contains(line, "$") {
		return line
	}

	var pairs []string
	v.env.Each(func(key, value string) bool {
		if key != "" {
			pairs = append(pairs, "$"+key, value)
		}
		return true
	})
	if len(pairs) == 0 {
		return line
	}

	return strings.NewReplacer(pairs...).Replace(line)
}

// TrySetFromAssignment stores NAME=value if line is an assignment. The name
// is everything before the first "=" and can't be empty or contain
// whitespace.
func (v *Variables) TrySetFromAssignment(line string) (code int, ok bool) {
	name, value, found := strings.Cut(line, "=")
	if !found || name == "" || strings.IndexFunc(name, isBlank) >= 0 {
		return 0, false
	}

	v.Set(name, value)
	return 0, true
}

// BindPositionals sets $@ and $0..$N-1 for a script run. Higher positions
// are bound first so $10 is substituted before $1.
func (v *Variables) BindPositionals(args []string) {
	v.Set(VarAllArgs, strings.Join(args, " "))
	for i := len(args) - 1; i >= 0; i-- {
		v.Set(strconv.Itoa(i), args[i])
	}
}

// UnbindPositionals removes the keys BindPositionals set for args.
func (v *Variables) UnbindPositionals(args []string) {
	v.Unset(VarAllArgs)
	for i := range args {
		v.Unset(strconv.Itoa(i))
	}
}
