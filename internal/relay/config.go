package relay

import "time"

// Config carries the room tunables. The rate-limit windows are
// empirically chosen and deliberately configuration, not contract.
type Config struct {
	DropCooldown     time.Duration `env:"DROP_COOLDOWN" envDefault:"200ms"`
	CursorThrottle   time.Duration `env:"CURSOR_THROTTLE" envDefault:"100ms"`
	CountdownSeconds int           `env:"COUNTDOWN_SECONDS" envDefault:"5"`
	CountdownTick    time.Duration `env:"COUNTDOWN_TICK" envDefault:"1s"`
}

// DefaultConfig returns the production tunables.
func DefaultConfig() Config {
	return Config{
		DropCooldown:     200 * time.Millisecond,
		CursorThrottle:   100 * time.Millisecond,
		CountdownSeconds: 5,
		CountdownTick:    time.Second,
	}
}
