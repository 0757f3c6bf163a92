package instance

import (
	"context"

	"github.com/bnema/dbsnap/internal/boundaries/out"
	"github.com/bnema/dbsnap/internal/logging"
)

// Controller starts and stops target instances, remembering whether they
// were running so the prior state can be restored.
type Controller struct {
	runtime out.ContainerRuntime
}

// NewController creates a lifecycle controller.
func NewController(runtime out.ContainerRuntime) *Controller {
	return &Controller{runtime: runtime}
}

// IsRunning reports the instance's current running state.
func (c *Controller) IsRunning(ctx context.Context, name string) (bool, error) {
	inst, err := c.runtime.InspectContainer(ctx, name)
	if err != nil {
		return false, err
	}
	return inst.Running, nil
}

// Stop requests a graceful stop and blocks until the runtime reports the
// instance stopped. Stopping a stopped instance is a no-op.
func (c *Controller) Stop(ctx context.Context, name string) error {
	_, err := c.Capture(ctx, name)
	return err
}

// Capture records whether the instance is running and stops it if so.
// The returned value is what RestoreIfWasRunning expects; it stays true
// when the stop itself fails, so the caller still attempts a restart.
func (c *Controller) Capture(ctx context.Context, name string) (bool, error) {
	ctx = logging.CtxWithFields(ctx, map[string]any{
		logging.FieldLayer:    "usecase",
		logging.FieldUseCase:  "instance",
		logging.FieldAction:   "Stop",
		logging.FieldInstance: name,
	})
	log := logging.FromCtx(ctx)

	running, err := c.IsRunning(ctx, name)
	if err != nil {
		return false, err
	}
	if !running {
		log.Debug().Msg("instance already stopped")
		return false, nil
	}

	if err := c.runtime.StopContainer(ctx, name); err != nil {
		return true, err
	}
	log.Info().Msg("instance stopped")
	return true, nil
}

// RestoreIfWasRunning starts the instance only when wasRunning is true.
func (c *Controller) RestoreIfWasRunning(ctx context.Context, name string, wasRunning bool) error {
	if !wasRunning {
		return nil
	}

	ctx = logging.CtxWithFields(ctx, map[string]any{
		logging.FieldLayer:    "usecase",
		logging.FieldUseCase:  "instance",
		logging.FieldAction:   "Restart",
		logging.FieldInstance: name,
	})
	log := logging.FromCtx(ctx)

	if err := c.runtime.StartContainer(ctx, name); err != nil {
		return err
	}
	log.Info().Msg("instance restarted")
	return nil
}
