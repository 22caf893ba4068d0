package utils

import "errors"

var ErrorRecordNotFound = errors.New("record not found")

// ErrInventoryLocked is returned when another process holds the inventory lock.
var ErrInventoryLocked = errors.New("inventory is locked by another operation")
