// Package flagx lets several parsers share os.Args: each one keeps only
// the flags it defines and ignores the rest.
package flagx

import (
	"flag"
	"os"
	"strings"
)

type valueMode int

const (
	// valueIfPlain takes the next argument unless it starts with '-'.
	valueIfPlain valueMode = iota
	// valueAlways takes the next argument, so "-offset -15m" works.
	valueAlways
	// valueNever is for boolean flags.
	valueNever
)

// FilterArgs keeps the allowedFlags of args with their values. A value is
// either joined with '=' (--config=conf.json) or the next argument when
// that one does not start with '-' (-c conf.json).
func FilterArgs(args []string, allowedFlags []string) []string {
	known := make(map[string]valueMode, len(allowedFlags))
	for _, f := range allowedFlags {
		known[f] = valueIfPlain
	}
	return filter(args, known)
}

// FilterFlagSet keeps the flags defined on fs, written as -name or --name.
// Boolean flags never consume the next argument; every other flag always
// does.
func FilterFlagSet(args []string, fs *flag.FlagSet) []string {
	known := map[string]valueMode{}
	fs.VisitAll(func(f *flag.Flag) {
		mode := valueAlways
		if b, ok := f.Value.(interface{ IsBoolFlag() bool }); ok && b.IsBoolFlag() {
			mode = valueNever
		}
		known["-"+f.Name] = mode
		known["--"+f.Name] = mode
	})
	return filter(args, known)
}

func filter(args []string, known map[string]valueMode) []string {
	filtered := make([]string, 0, len(args))

	for i := 0; i < len(args); i++ {
		arg := args[i]

		if name, _, ok := strings.Cut(arg, "="); ok && strings.HasPrefix(arg, "-") {
			if _, allowed := known[name]; allowed {
				filtered = append(filtered, arg)
			}
			continue
		}

		mode, allowed := known[arg]
		if !allowed {
			continue
		}
		filtered = append(filtered, arg)

		if i+1 == len(args) || mode == valueNever {
			continue
		}
		if mode == valueAlways || !strings.HasPrefix(args[i+1], "-") {
			filtered = append(filtered, args[i+1])
			i++
		}
	}

	return filtered
}

// JsonConfigFlags returns the path given with -c or -config, or "" when
// neither is present. Other arguments are ignored.
func JsonConfigFlags() string {
	var config string

	args := FilterArgs(os.Args[1:], []string{"-c", "-config", "--config"})

	fs := flag.NewFlagSet("json", flag.ContinueOnError)
	fs.StringVar(&config, "config", "", "Path to config file")
	fs.StringVar(&config, "c", "", "Path to config file (short)")
	_ = fs.Parse(args)

	return config
}

// SplitList turns a comma-separated flag value into its trimmed, non-empty
// elements.
func SplitList(v string) []string {
	out := []string{}
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
