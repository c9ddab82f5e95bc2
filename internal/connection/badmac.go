package connection

import "time"

// BadMacWindow, BadMacThreshold, and BadMacCooldown are the circuit-breaker
// parameters of §4.4. Defaults match BAD_MAC_WINDOW_MS/BAD_MAC_THRESHOLD/
// BAD_MAC_COOLDOWN_MS; the container overrides them from config at startup.
var (
	BadMacWindow    = 60 * time.Second
	BadMacThreshold = 20
	BadMacCooldown  = 5 * time.Minute
)
