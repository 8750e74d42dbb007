package services

import "errors"

var (
	ErrMessageNotFound = errors.New("message not found")
	ErrNotAuthor       = errors.New("only the author may change this message")
)
