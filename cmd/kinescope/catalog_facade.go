package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"kinescope/internal/api"
	"kinescope/internal/catalog"
	"kinescope/internal/ipc"
)

// catalogAccess is the slice of catalog operations the recordings commands
// need, satisfied by both the daemon RPC client and a directly opened store.
type catalogAccess interface {
	List(ctx context.Context, origins []string) ([]ipc.Recording, error)
	Describe(ctx context.Context, id int64) (*ipc.Recording, error)
	Remove(ctx context.Context, id int64, deleteFiles bool) (bool, error)
	Stats(ctx context.Context) (map[string]int, error)
	Health(ctx context.Context) (catalog.HealthSummary, error)
}

// withCatalog runs fn against the daemon when its socket answers, otherwise
// against the catalog database opened in-process. The daemon path is
// preferred so removals go through its file cleanup and logging.
func (c *commandContext) withCatalog(fn func(catalogAccess) error) error {
	client, err := ipc.Dial(c.socketPath())
	if err == nil {
		defer client.Close()
		return fn(&catalogIPCAdapter{client: client})
	}

	cfg, cfgErr := c.ensureConfig()
	if cfgErr != nil {
		return cfgErr
	}
	store, openErr := catalog.Open(cfg)
	if openErr != nil {
		return fmt.Errorf("open catalog: %w", openErr)
	}
	defer store.Close()
	return fn(&catalogStoreAdapter{store: store, service: api.NewCatalogService(store)})
}

// --- IPC adapter ---

type catalogIPCAdapter struct {
	client *ipc.Client
}

func (a *catalogIPCAdapter) List(_ context.Context, origins []string) ([]ipc.Recording, error) {
	resp, err := a.client.RecordingList(ipc.RecordingListRequest{Origins: origins})
	if err != nil {
		return nil, err
	}
	return resp.Recordings, nil
}

func (a *catalogIPCAdapter) Describe(_ context.Context, id int64) (*ipc.Recording, error) {
	resp, err := a.client.RecordingDescribe(id)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "not found") {
			return nil, nil
		}
		return nil, err
	}
	return &resp.Recording, nil
}

func (a *catalogIPCAdapter) Remove(_ context.Context, id int64, deleteFiles bool) (bool, error) {
	resp, err := a.client.RecordingRemove(id, deleteFiles)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "not found") {
			return false, nil
		}
		return false, err
	}
	return resp.Removed, nil
}

func (a *catalogIPCAdapter) Stats(_ context.Context) (map[string]int, error) {
	resp, err := a.client.Status()
	if err != nil {
		return nil, err
	}
	return resp.CatalogStats, nil
}

func (a *catalogIPCAdapter) Health(_ context.Context) (catalog.HealthSummary, error) {
	resp, err := a.client.CatalogHealth()
	if err != nil {
		return catalog.HealthSummary{}, err
	}
	return catalog.HealthSummary{
		Total:                resp.Total,
		Recorded:             resp.Recorded,
		Recovered:            resp.Recovered,
		TotalSizeBytes:       resp.TotalSizeBytes,
		TotalDurationSeconds: resp.TotalDurationSeconds,
	}, nil
}

// --- Store adapter ---

type catalogStoreAdapter struct {
	store   *catalog.Store
	service *api.CatalogService
}

func (a *catalogStoreAdapter) List(ctx context.Context, origins []string) ([]ipc.Recording, error) {
	return a.service.List(ctx, parseOrigins(origins)...)
}

func (a *catalogStoreAdapter) Describe(ctx context.Context, id int64) (*ipc.Recording, error) {
	return a.service.Describe(ctx, id)
}

func (a *catalogStoreAdapter) Remove(ctx context.Context, id int64, deleteFiles bool) (bool, error) {
	entry, err := a.store.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	if entry == nil {
		return false, nil
	}
	removed, err := a.store.Remove(ctx, id)
	if err != nil || !removed {
		return false, err
	}
	if deleteFiles {
		for _, path := range []string{entry.FinalFile, entry.ThumbnailPath} {
			if strings.TrimSpace(path) == "" {
				continue
			}
			if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
				return true, fmt.Errorf("delete %s: %w", path, err)
			}
		}
	}
	return true, nil
}

func (a *catalogStoreAdapter) Stats(ctx context.Context) (map[string]int, error) {
	return a.service.Stats(ctx)
}

func (a *catalogStoreAdapter) Health(ctx context.Context) (catalog.HealthSummary, error) {
	return a.store.Health(ctx)
}

func parseOrigins(values []string) []catalog.Origin {
	origins := make([]catalog.Origin, 0, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		origins = append(origins, catalog.Origin(trimmed))
	}
	return origins
}
