package model

// Task queues served by the worker.
const (
	QueueTasks      = "conductor-tasks"
	QueueHeavy      = "conductor-heavy"
	QueueBackground = "conductor-background"
)

// WorkflowTask names a workflow execution to start. Services hand these to
// a Starter so they never depend on workflow code directly.
type WorkflowTask struct {
	WorkflowName string `json:"workflow_name"`
	WorkflowID   string `json:"workflow_id"`
	Queue        string `json:"queue"`
	Arg          any    `json:"arg"`
}

// TaskID is the workflow ID of one workflow run against one entity. Every
// starter uses it so a second start of the same work is rejected.
func TaskID(workflowName, entityID string) string {
	return workflowName + "-" + entityID
}
