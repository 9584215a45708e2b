package ui

import (
	"context"

	"github.com/irrigo/irrigo/internal/deviceapi"
)

// ControllerAPI is the subset of the controller REST api the UI edits.
type ControllerAPI interface {
	GetConfig(ctx context.Context) (deviceapi.ControllerConfig, error)
	GetDefaultConfig(ctx context.Context) (deviceapi.ControllerConfig, error)
	SaveConfig(ctx context.Context, cfg deviceapi.ControllerConfig) error
	ResetToDefault(ctx context.Context) error
}
