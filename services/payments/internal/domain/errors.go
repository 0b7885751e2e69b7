package domain

import "errors"

var (
	ErrMeetingNotFound  = errors.New("meeting not found")
	ErrInvalidMetadata  = errors.New("invalid payment metadata")
	ErrInvalidDuration  = errors.New("appointment duration is not a finite positive number")
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrInvalidPayload   = errors.New("invalid webhook payload")
	ErrMissingAccount   = errors.New("transfer metadata has no connect account")
	ErrReviewNotPending = errors.New("meeting is not pending manual refund review")
)
