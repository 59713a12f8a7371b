package manager

import (
	"sort"

	"segd/pkg/types"
)

// Status builds a detailed status response for /status.
func (m *Manager) Status() types.StatusResponse {
	now := m.clock.Now()
	cs := m.cache.Stats()

	m.mu.RLock()
	defer m.mu.RUnlock()
	resp := types.StatusResponse{
		State:          string(m.state),
		Device:         m.Device(),
		LoadsTotal:     m.loadsTotal,
		LastError:      m.err,
		UptimeSeconds:  int64(now.Sub(m.startTime).Seconds()),
		ServerTimeUnix: now.Unix(),
	}
	if m.closed {
		resp.State = string(StateDraining)
	}
	resp.Models = make([]types.ModelStatus, 0, len(m.instances))
	for _, inst := range m.instances {
		resp.Models = append(resp.Models, types.ModelStatus{
			ModelID:       inst.ID,
			Family:        string(inst.Family),
			State:         string(inst.State),
			LastUsed:      inst.LastUsed.Unix(),
			QueueLen:      len(inst.queueCh),
			Inflight:      len(inst.genCh),
			MaxQueueDepth: cap(inst.queueCh),
			Error:         inst.Err,
		})
	}
	sort.Slice(resp.Models, func(i, j int) bool { return resp.Models[i].ModelID < resp.Models[j].ModelID })

	resp.Cache = types.CacheStatus{
		Capacity: cs.Capacity,
		Len:      cs.Len,
		Hits:     cs.Hits,
		Misses:   cs.Misses,
		Entries:  make([]types.CacheEntryStatus, 0, len(cs.Entries)),
	}
	for _, e := range cs.Entries {
		resp.Cache.Entries = append(resp.Cache.Entries, types.CacheEntryStatus{
			ID:          e.ID,
			Key:         e.Key,
			Model:       e.Model,
			CreatedUnix: e.Created.Unix(),
		})
	}
	return resp
}
