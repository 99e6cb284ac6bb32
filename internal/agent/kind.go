package agent

import (
	"errors"
	"fmt"
)

// ErrUnknownKind is returned for agent kinds outside the supported set.
var ErrUnknownKind = errors.New("unknown agent kind")

// Kind selects the decision logic an agent runs.
type Kind string

const (
	KindTradeBot Kind = "trade-bot"
)

// Kinds lists the supported agent kinds.
func Kinds() []Kind {
	return []Kind{KindTradeBot}
}

// ParseKind validates s as an agent kind.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds() {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}
