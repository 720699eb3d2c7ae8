package command

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/jmcleod/whitetemp/internal/uuid"
)

type definition struct {
	usage string
	args  int
	run   func(s *Surface, args []string) (string, error)
}

var definitions = map[string]definition{
	"wtadd": {
		usage: "wtadd <player> <time>",
		args:  2,
		run:   func(s *Surface, a []string) (string, error) { return s.Grant(a[0], a[1]) },
	},
	"wtrem": {
		usage: "wtrem <player>",
		args:  1,
		run:   func(s *Surface, a []string) (string, error) { return s.Revoke(a[0]) },
	},
	"wtprlng": {
		usage: "wtprlng <player> <time>",
		args:  2,
		run:   func(s *Surface, a []string) (string, error) { return s.Prolong(a[0], a[1]) },
	},
	"wtcheck": {
		usage: "wtcheck <player>",
		args:  1,
		run:   func(s *Surface, a []string) (string, error) { return s.Check(a[0]) },
	},
	"wtlist": {
		usage: "wtlist",
		args:  0,
		run:   func(s *Surface, _ []string) (string, error) { return s.List() },
	},
}

// Names returns the command names Execute accepts, sorted.
func Names() []string {
	names := make([]string, 0, len(definitions))
	for name := range definitions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Usage returns the usage line for name, or "" if name is unknown.
func Usage(name string) string {
	return definitions[name].usage
}

// Execute parses and runs one command line on behalf of src. A leading "/"
// is ignored. The privilege check runs before arguments are validated.
func (s *Surface) Execute(src Source, line string) (string, error) {
	fields := strings.Fields(strings.TrimPrefix(strings.TrimSpace(line), "/"))
	if len(fields) == 0 {
		return "", fmt.Errorf("%w: empty command", ErrUnknownCommand)
	}
	name, args := fields[0], fields[1:]
	def, ok := definitions[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownCommand, name)
	}

	logger := s.logger.With(
		slog.String("event_id", uuid.New()),
		slog.String("source", src.Name()),
		slog.String("command", name))

	if !s.privilege(src) {
		logger.Warn("command refused", slog.Int("level", src.PermissionLevel()))
		return "", fmt.Errorf("%w: %s requires operator level %d or console", ErrPermissionDenied, name, OperatorLevel)
	}
	if len(args) != def.args {
		return "", fmt.Errorf("%w: %s", ErrUsage, def.usage)
	}

	reply, err := def.run(s, args)
	if err != nil {
		logger.Info("command failed", slog.Any("args", args), slog.String("error", err.Error()))
		return "", err
	}
	logger.Info("command executed", slog.Any("args", args))
	return reply, nil
}
