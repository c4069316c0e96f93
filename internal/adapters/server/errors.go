package server

import (
	"errors"
	"net/http"

	"github.com/kamal-hamza/autostart/internal/core/domain"
)

var errHistoryDisabled = errors.New("launch history is not available")

var errorStatusMap = map[error]int{
	domain.ErrNotAvailable:      http.StatusServiceUnavailable,
	domain.ErrAlreadyRunning:    http.StatusConflict,
	domain.ErrInstanceNotFound:  http.StatusNotFound,
	domain.ErrNotRunning:        http.StatusNotFound,
	domain.ErrTemplatesDirEmpty: http.StatusNotFound,
	errHistoryDisabled:          http.StatusServiceUnavailable,
}

func statusFromError(err error) int {
	for target, status := range errorStatusMap {
		if errors.Is(err, target) {
			return status
		}
	}
	return http.StatusInternalServerError
}
