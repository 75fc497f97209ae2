package services

import "errors"

var (
	ErrWrongFileAuthorization = errors.New("work order token is not valid for this file")
	ErrObjectNotFound         = errors.New("object not found")
	ErrEnvelopeNotFound       = errors.New("envelope not found")
	ErrDBInteraction          = errors.New("database interaction failed")
	ErrObjectStorage          = errors.New("object storage interaction failed")
	ErrExternalAPI            = errors.New("external API call failed")
	ErrEventPublish           = errors.New("event publication failed")
)
