package config

import "errors"

var ErrInvalidEnvironment = errors.New("invalid environment configuration")
