package entities

import "errors"

var (
	// ErrMessageNotFound is returned by transports when the target message is gone
	ErrMessageNotFound = errors.New("message not found")

	// ErrForbidden is returned by transports when the bot lacks rights for an action
	ErrForbidden = errors.New("not enough rights")
)
