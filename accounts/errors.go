package accounts

import "errors"

var ErrUserNotFound = errors.New("user not found")

var ErrDuplicateUsername = errors.New("username already exists")

var ErrInvalidUsername = errors.New("invalid username")
