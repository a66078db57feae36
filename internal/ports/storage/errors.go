package storage

import "errors"

// ErrNotFound lo devuelven los repositorios cuando la fila no existe.
// Cualquier otro error es de E/S y los servicios lo propagan tal cual.
var ErrNotFound = errors.New("record not found")
