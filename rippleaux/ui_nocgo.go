//go:build tinygo || !cgo

package rippleaux

import (
	"errors"

	"github.com/soypat/ripple"
)

func ui(eff *ripple.Effect, cfg UIConfig) error {
	return errors.New("require cgo for UI rendering")
}
