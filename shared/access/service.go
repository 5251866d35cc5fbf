// Package access decides which chat users may operate the clock.
package access

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// Service is a static allow-list. An empty list denies everyone.
type Service struct {
	allowed map[int64]struct{}
	logger  zerolog.Logger
}

func NewService(allowed []int64, logger zerolog.Logger) *Service {
	m := make(map[int64]struct{}, len(allowed))
	for _, id := range allowed {
		m[id] = struct{}{}
	}
	return &Service{
		allowed: m,
		logger:  logger.With().Str("component", "access").Logger(),
	}
}

// CanAccess reports whether userID is on the allow-list.
func (s *Service) CanAccess(userID int64) bool {
	_, ok := s.allowed[userID]
	return ok
}

// Middleware returns an AccessDeniedError for users off the list.
func (s *Service) Middleware(userID int64) error {
	if s.CanAccess(userID) {
		return nil
	}
	s.logger.Warn().Int64("user_id", userID).Msg("access denied")
	return &AccessDeniedError{Reason: fmt.Sprintf("User %d is not allowed to use this bot.", userID)}
}

// AccessDeniedError is returned when user access is denied.
type AccessDeniedError struct {
	Reason string
}

func (e *AccessDeniedError) Error() string {
	return e.Reason
}

// IsAccessDenied checks if error is access denied.
func IsAccessDenied(err error) bool {
	var denied *AccessDeniedError
	return errors.As(err, &denied)
}
