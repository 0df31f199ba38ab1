package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

// MetaKey names an entry of the envelope's meta object.
type MetaKey string

const (
	MetaProcessingTimeMS MetaKey = "processing_time_ms"
	MetaCacheHit         MetaKey = "cache_hit"
	MetaScheduledTasks   MetaKey = "scheduled_tasks"
	MetaUnscheduledTasks MetaKey = "unscheduled_tasks"
	MetaWarnings         MetaKey = "warnings"
)

const responseMetaKey = "response_meta"

// PlanMeta summarises a generated timetable for the response meta.
type PlanMeta struct {
	TotalTasks     int
	ScheduledTasks int
	Warnings       int
}

// WithResponseMeta initialises response metadata storage and stamps the processing time.
func WithResponseMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Set(responseMetaKey, map[string]interface{}{})
		c.Next()
		meta := ensureMeta(c)
		if _, exists := meta[string(MetaProcessingTimeMS)]; !exists {
			meta[string(MetaProcessingTimeMS)] = time.Since(start).Milliseconds()
		}
	}
}

// SetMeta stores one meta entry for the current response.
func SetMeta(c *gin.Context, key MetaKey, value interface{}) {
	ensureMeta(c)[string(key)] = value
}

// SetCacheHit records whether the timetable came from the planner cache.
func SetCacheHit(c *gin.Context, hit bool) {
	SetMeta(c, MetaCacheHit, hit)
}

// SetPlanMeta records task and warning counts of a generated timetable.
func SetPlanMeta(c *gin.Context, plan PlanMeta) {
	unscheduled := plan.TotalTasks - plan.ScheduledTasks
	if unscheduled < 0 {
		unscheduled = 0
	}
	meta := ensureMeta(c)
	meta[string(MetaScheduledTasks)] = plan.ScheduledTasks
	meta[string(MetaUnscheduledTasks)] = unscheduled
	meta[string(MetaWarnings)] = plan.Warnings
}

// ExtractMeta returns the metadata map stored on the context.
func ExtractMeta(c *gin.Context) map[string]interface{} {
	if c == nil {
		return nil
	}
	if meta, exists := c.Get(responseMetaKey); exists {
		if typed, ok := meta.(map[string]interface{}); ok {
			return typed
		}
	}
	return nil
}

func ensureMeta(c *gin.Context) map[string]interface{} {
	if meta := ExtractMeta(c); meta != nil {
		return meta
	}
	meta := make(map[string]interface{})
	if c != nil {
		c.Set(responseMetaKey, meta)
	}
	return meta
}
