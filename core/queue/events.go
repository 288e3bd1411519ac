package queue

// Event names published on the queue's event bus. Job-level events carry a
// Job snapshot as payload; queue:drained carries a Stats snapshot and
// queue:error carries the error message as a string.
const (
	EventJobAdded     = "job:added"
	EventJobStarted   = "job:started"
	EventJobProgress  = "job:progress"
	EventJobCompleted = "job:completed"
	EventJobFailed    = "job:failed"
	EventJobRetrying  = "job:retrying"
	EventJobCancelled = "job:cancelled"
	EventJobStalled   = "job:stalled"
	EventQueueDrained = "queue:drained"
	EventQueueError   = "queue:error"
)
