// README: Common identifier and coordinate types shared across modules.
package types

import "github.com/google/uuid"

type ID string

func NewID() ID {
	return ID(uuid.NewString())
}

type Point struct {
	Lat float64
	Lng float64
}
