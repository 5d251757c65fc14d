package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
)

// TemplateName is the name of the index template covering prefix-* indices.
func TemplateName(prefix string) string {
	return prefix + "-template"
}

// Template returns the legacy index template body for the daily indices.
// The settings favour ingest throughput on a single node.
func Template(prefix string) map[string]any {
	return map[string]any{
		"index_patterns": []string{prefix + "-*"},
		"settings": map[string]any{
			"number_of_shards":                         1,
			"number_of_replicas":                       0,
			"refresh_interval":                         "30s",
			"translog.durability":                      "async",
			"translog.sync_interval":                   "30s",
			"translog.flush_threshold_size":            "1gb",
			"merge.scheduler.max_thread_count":         1,
			"routing.allocation.total_shards_per_node": 1,
			"unassigned.node_left.delayed_timeout":     "5m",
		},
		"mappings": map[string]any{
			"properties": map[string]any{
				"@timestamp":           map[string]any{"type": "date"},
				"level":                map[string]any{"type": "keyword"},
				"message":              map[string]any{"type": "text"},
				"service":              map[string]any{"type": "keyword"},
				"detection_id":         map[string]any{"type": "keyword"},
				"num_people":           map[string]any{"type": "integer"},
				"confidence_threshold": map[string]any{"type": "float"},
				"processing_time":      map[string]any{"type": "float"},
				"image_width":          map[string]any{"type": "integer"},
				"image_height":         map[string]any{"type": "integer"},
				"request_id":           map[string]any{"type": "keyword"},
			},
		},
	}
}

// ProvisionTemplate puts the template for prefix-* indices into store.
func ProvisionTemplate(ctx context.Context, store Store, prefix string) error {
	body, err := json.Marshal(Template(prefix))
	if err != nil {
		return fmt.Errorf("failed to encode index template: %w", err)
	}
	return store.PutTemplate(ctx, TemplateName(prefix), body)
}
