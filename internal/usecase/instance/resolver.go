// Package instance implements the observation and start/stop control of
// target database instances.
package instance

import (
	"context"
	"fmt"

	"github.com/bnema/dbsnap/internal/boundaries/out"
	"github.com/bnema/dbsnap/internal/domain"
	"github.com/bnema/dbsnap/internal/logging"
)

// VolumeResolver finds the host path backing an instance's data directory.
type VolumeResolver struct {
	runtime  out.ContainerRuntime
	dataPath string
}

// NewVolumeResolver creates a resolver matching mounts at dataPath.
func NewVolumeResolver(runtime out.ContainerRuntime, dataPath string) *VolumeResolver {
	return &VolumeResolver{runtime: runtime, dataPath: dataPath}
}

// Resolve inspects the instance and returns its data volume. Mount metadata
// is available whether the instance is running or not.
func (r *VolumeResolver) Resolve(ctx context.Context, name string) (*domain.Instance, *domain.DataVolume, error) {
	ctx = logging.CtxWithFields(ctx, map[string]any{
		logging.FieldLayer:    "usecase",
		logging.FieldUseCase:  "instance",
		logging.FieldAction:   "ResolveVolume",
		logging.FieldInstance: name,
	})
	log := logging.FromCtx(ctx)

	inst, err := r.runtime.InspectContainer(ctx, name)
	if err != nil {
		return nil, nil, err
	}

	vol, err := VolumeOf(inst, r.dataPath)
	if err != nil {
		return inst, nil, err
	}

	log.Debug().Str("source", vol.Source).Str("destination", vol.Destination).Msg("data volume resolved")
	return inst, vol, nil
}

// VolumeOf picks the single mount of inst whose destination is dataPath.
func VolumeOf(inst *domain.Instance, dataPath string) (*domain.DataVolume, error) {
	mounts := inst.MountsAt(dataPath)
	switch len(mounts) {
	case 0:
		return nil, fmt.Errorf("%w: no mount at %s on %s", domain.ErrVolumeNotFound, dataPath, inst.Name)
	case 1:
		if mounts[0].Source == "" {
			return nil, fmt.Errorf("%w: mount at %s on %s has no source", domain.ErrVolumeNotFound, dataPath, inst.Name)
		}
		return &domain.DataVolume{
			Instance:    inst.Name,
			Source:      mounts[0].Source,
			Destination: dataPath,
		}, nil
	default:
		return nil, fmt.Errorf("%w: %d mounts at %s on %s", domain.ErrAmbiguousVolume, len(mounts), dataPath, inst.Name)
	}
}
