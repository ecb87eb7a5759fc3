package memory

import (
	"time"

	"plant-assistant-be/internal/entity"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

// ProfileCache keeps recent profile snapshots so retrieval skips the database on hot sessions.
// The memory updater invalidates an entry whenever it writes the profile.
type ProfileCache struct {
	cache *cache.Cache
}

func NewProfileCache(ttl time.Duration) *ProfileCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &ProfileCache{
		cache: cache.New(ttl, 2*ttl),
	}
}

func (r *ProfileCache) Save(profile *entity.UserProfile) {
	if profile == nil {
		return
	}
	r.cache.Set(profile.UserId.String(), cloneProfile(profile), cache.DefaultExpiration)
}

func (r *ProfileCache) Get(userId uuid.UUID) (*entity.UserProfile, bool) {
	if x, found := r.cache.Get(userId.String()); found {
		return cloneProfile(x.(*entity.UserProfile)), true
	}
	return nil, false
}

func (r *ProfileCache) Delete(userId uuid.UUID) {
	r.cache.Delete(userId.String())
}

// Snapshots are handed to concurrent turns, so callers never share the cached maps and slices.
func cloneProfile(p *entity.UserProfile) *entity.UserProfile {
	c := *p
	c.OwnedPlants = append([]string(nil), p.OwnedPlants...)
	c.TreatmentHistory = append([]entity.TreatmentRecord(nil), p.TreatmentHistory...)
	c.TopicCounts = make(map[string]int, len(p.TopicCounts))
	for k, v := range p.TopicCounts {
		c.TopicCounts[k] = v
	}
	return &c
}
