package broker

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	klog "github.com/Klingon-tech/orbital-wallet/internal/log"
)

// SurfaceEnv carries the surface id to a launched surface process.
const SurfaceEnv = "ORBITAL_SURFACE_ID"

// Launcher opens the privileged surface that collects decisions. closed
// must be called once when the surface goes away.
type Launcher interface {
	Open(ctx context.Context, surfaceID string, closed func()) error
}

// CommandLauncher runs an external program as the surface. The surface id
// is appended as the last argument and also set in SurfaceEnv. The surface
// is considered closed when the process exits.
type CommandLauncher struct {
	Command []string
}

// Open starts the surface process.
func (l *CommandLauncher) Open(_ context.Context, surfaceID string, closed func()) error {
	if len(l.Command) == 0 {
		return fmt.Errorf("no surface command configured")
	}
	// The surface outlives the request that opened it.
	args := append(append([]string{}, l.Command[1:]...), surfaceID)
	cmd := exec.Command(l.Command[0], args...)
	cmd.Env = append(os.Environ(), SurfaceEnv+"="+surfaceID)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start surface: %w", err)
	}
	klog.Broker.Debug().Str("surface", surfaceID).Int("pid", cmd.Process.Pid).Msg("Surface launched")

	go func() {
		err := cmd.Wait()
		klog.Broker.Debug().Err(err).Str("surface", surfaceID).Msg("Surface exited")
		closed()
	}()
	return nil
}

// ManualLauncher expects a surface that is already running, such as
// orbital-cli polling the surface endpoint. Closing is reported through
// the surface protocol.
type ManualLauncher struct{}

// Open only logs.
func (ManualLauncher) Open(_ context.Context, surfaceID string, _ func()) error {
	klog.Broker.Info().Str("surface", surfaceID).Msg("Request awaiting decision")
	return nil
}
