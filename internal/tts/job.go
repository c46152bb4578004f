package tts

import (
	"context"

	"github.com/book-expert/tara-service/internal/core"
)

// Job is a handle on a synthesis running in the background.
type Job struct {
	done     chan struct{}
	cancel   context.CancelFunc
	artifact *core.SpeechArtifact
	err      error
}

func newJob(cancel context.CancelFunc) *Job {
	return &Job{done: make(chan struct{}), cancel: cancel}
}

// finish records the result and releases waiters. It must be called exactly once.
func (j *Job) finish(artifact *core.SpeechArtifact, err error) {
	j.artifact = artifact
	j.err = err
	j.cancel()
	close(j.done)
}

// Done is closed once the job has a result.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Wait blocks until the job finishes.
func (j *Job) Wait() (*core.SpeechArtifact, error) {
	<-j.done

	return j.artifact, j.err
}

// Cancel stops the process. Wait still returns the resulting error.
func (j *Job) Cancel() {
	j.cancel()
}
