package repository

import (
	"errors"
	"fmt"

	hermeserrors "github.com/prodiguer/hermes/internal/errors"
)

var (
	ErrSimulationNotFound  = fmt.Errorf("simulation %w", hermeserrors.ErrNotFound)
	ErrSupervisionNotFound = fmt.Errorf("supervision %w", hermeserrors.ErrNotFound)
	ErrAllocationNotFound  = fmt.Errorf("conso allocation %w", hermeserrors.ErrNotFound)
	ErrInvalidInput        = errors.New("invalid input parameters")
)
