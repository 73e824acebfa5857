package sessions

import "errors"

var ErrSignedSessionIdIncorrectLength = errors.New("the signed session id is not made of an id and a signature")

var ErrInvalidSessionSignature = errors.New("the signed session id had an invalid signature")

var ErrSessionNotFound = errors.New("session not found")
