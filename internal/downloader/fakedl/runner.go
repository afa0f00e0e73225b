package fakedl

// TaskRunner is a deterministic FIFO of posted tasks. Tests pump it with Run
// to deliver downloader callbacks in submission order on the caller's
// goroutine. Tasks may post further tasks while running.
type TaskRunner struct {
	tasks []func()
}

func NewTaskRunner() *TaskRunner { return &TaskRunner{} }

// PostTask appends a task to the queue.
func (r *TaskRunner) PostTask(task func()) {
	r.tasks = append(r.tasks, task)
}

// Run executes tasks in FIFO order until the queue is empty.
func (r *TaskRunner) Run() {
	for len(r.tasks) > 0 {
		task := r.tasks[0]
		r.tasks = r.tasks[1:]
		task()
	}
}
