package strategy

import (
	"errors"

	"futures-trader/internal/domain"
)

// Factory errors
var (
	ErrUnknownStrategy = errors.New("unknown strategy")
	ErrMissingConfig   = errors.New("future config required")
)

// FromConfig creates the variant for (kind, direction) bound to an instrument.
func FromConfig(kind domain.StrategyKind, dir domain.Direction, cfg *domain.FutureConfig) (Strategy, error) {
	if cfg == nil {
		return nil, ErrMissingConfig
	}
	if dir != domain.Long && dir != domain.Short {
		return nil, ErrUnknownStrategy
	}

	switch kind {
	case domain.StrategyMain:
		if dir == domain.Long {
			return NewMainLong(cfg), nil
		}
		return NewMainShort(cfg), nil
	case domain.StrategyBottom:
		if dir == domain.Long {
			return NewBottomLong(cfg), nil
		}
		return NewBottomShort(cfg), nil
	default:
		return nil, ErrUnknownStrategy
	}
}
