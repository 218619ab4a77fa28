package runstore

import "fmt"

// Redis key helpers. Pattern: esgpanel:{project}:{entity}

// RunKey returns the hash key for one run.
func RunKey(project, runID string) string {
	return fmt.Sprintf("esgpanel:%s:run:%s", project, runID)
}

// RunKeyPrefix returns the prefix shared by every run hash of a project.
func RunKeyPrefix(project string) string {
	return fmt.Sprintf("esgpanel:%s:run:", project)
}

// RunIndexKey returns the sorted set of run IDs scored by creation time.
func RunIndexKey(project string) string {
	return fmt.Sprintf("esgpanel:%s:runs", project)
}

// RunEventsChannel returns the Pub/Sub channel for new runs.
func RunEventsChannel(project string) string {
	return fmt.Sprintf("esgpanel:%s:run_events", project)
}
