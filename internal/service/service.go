package service

import (
	"github.com/cwaweather/backend/internal/domain"
)

// BatchRepository is re-exported from domain for convenience
type BatchRepository = domain.BatchRepository
