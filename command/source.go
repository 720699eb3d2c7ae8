package command

// OperatorLevel is the permission level at which a player may run
// whitelist commands.
const OperatorLevel = 2

// Source is whoever issued a command.
type Source interface {
	Name() string
	PermissionLevel() int
	// IsConsole reports a non-interactive origin: the server console, a
	// script, or the CLI.
	IsConsole() bool
}

// Privilege decides whether src may run whitelist commands.
type Privilege func(src Source) bool

// DefaultPrivilege admits operators and the console.
func DefaultPrivilege(src Source) bool {
	return src.IsConsole() || src.PermissionLevel() >= OperatorLevel
}

// Console is the server console or any other non-interactive origin.
type Console struct{}

func (Console) Name() string         { return "Server" }
func (Console) PermissionLevel() int { return 4 }
func (Console) IsConsole() bool      { return true }

// Player is an in-game or remote caller with a permission level.
type Player struct {
	Handle string
	Level  int
}

func (p Player) Name() string         { return p.Handle }
func (p Player) PermissionLevel() int { return p.Level }
func (p Player) IsConsole() bool      { return false }
