package otp

import "time"

// DefaultCooldown is the wait between two resend requests.
const DefaultCooldown = 60 * time.Second

// ResendTimer counts the resend cooldown down in whole seconds. It starts
// cooling; the count never goes below zero and Ready holds from zero on.
type ResendTimer struct {
	cooldown  int
	remaining int
}

func NewResendTimer(cooldown time.Duration) *ResendTimer {
	secs := int(cooldown / time.Second)
	if secs <= 0 {
		secs = int(DefaultCooldown / time.Second)
	}
	return &ResendTimer{cooldown: secs, remaining: secs}
}

// Tick advances the countdown by one second. It reports whether this tick
// made the timer ready.
func (t *ResendTimer) Tick() bool {
	if t.remaining == 0 {
		return false
	}
	t.remaining--
	return t.remaining == 0
}

func (t *ResendTimer) Remaining() int { return t.remaining }

func (t *ResendTimer) Ready() bool { return t.remaining == 0 }

// Reset starts a new cooldown.
func (t *ResendTimer) Reset() { t.remaining = t.cooldown }
