package domain

import (
	"strings"

	"github.com/google/uuid"
)

// IDLength - длина идентификаторов документов.
const IDLength = 16

// NewID генерирует случайный идентификатор документа.
func NewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:IDLength]
}
