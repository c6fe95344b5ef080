package wallet

import "errors"

var (
	ErrNotFound        = errors.New("wallet: not found")
	ErrInvalidArgument = errors.New("wallet: invalid argument")
)
