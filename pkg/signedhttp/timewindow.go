package signedhttp

import "time"

// Engine-level time policy defaults, in milliseconds.
const (
	DefaultMaxValidityMs int64 = 60_000
	DefaultSkewMs        int64 = 30_000
)

// TimePolicy bounds signed message validity. The zero value is unusable;
// use DefaultTimePolicy or fill every field.
type TimePolicy struct {
	// MaxValidityMs caps exp_ms - iat_ms.
	MaxValidityMs int64
	// SkewMs is the tolerated clock skew on both window edges.
	SkewMs int64
	// Now overrides the clock. Tests only; defaults to time.Now.
	Now func() time.Time
}

// DefaultTimePolicy returns the engine defaults.
func DefaultTimePolicy() TimePolicy {
	return TimePolicy{MaxValidityMs: DefaultMaxValidityMs, SkewMs: DefaultSkewMs}
}

func (p TimePolicy) nowMs() int64 {
	if p.Now != nil {
		return p.Now().UnixMilli()
	}
	return time.Now().UnixMilli()
}

// Validate enforces the three time-window inequalities:
// exp >= iat, exp - iat <= max_validity, iat - skew <= now <= exp + skew.
func (p TimePolicy) Validate(iatMs, expMs int64) error {
	if expMs < iatMs {
		return newErr(KindInvalidTimeWindow, "exp_ms %d precedes iat_ms %d", expMs, iatMs)
	}
	if expMs-iatMs > p.MaxValidityMs {
		return newErr(KindValidityTooLarge, "validity %dms exceeds the %dms cap", expMs-iatMs, p.MaxValidityMs)
	}

	now := p.nowMs()
	if now < iatMs-p.SkewMs {
		return newErr(KindNotYetValid, "now %d precedes iat_ms %d minus skew %d", now, iatMs, p.SkewMs)
	}
	if now > expMs+p.SkewMs {
		return newErr(KindExpired, "now %d exceeds exp_ms %d plus skew %d", now, expMs, p.SkewMs)
	}
	return nil
}
