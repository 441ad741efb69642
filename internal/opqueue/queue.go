// Package opqueue implements the Operation Queue & Path Guard (spec
// §4.10): every concrete filesystem mutation is enqueued as a
// model.FileOperation and drained by a single background worker, the same
// "one goroutine owns the mutable resource, callers talk to it over a
// channel" shape as codeNERD's StdioTransport reader/writer loop
// (internal/mcp/transport_stdio.go).
package opqueue

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/refakt/refakt/internal/apierr"
	"github.com/refakt/refakt/internal/logging"
	"github.com/refakt/refakt/internal/model"
)

// Stats exposes the queue's running counters for diagnostics.
type Stats struct {
	Completed uint64
	Failed    uint64
}

type job struct {
	op     model.FileOperation
	result chan error
}

// Queue is a single-writer FIFO worker over model.FileOperation.
type Queue struct {
	ProjectRoot string

	jobs      chan job
	done      chan struct{}
	wg        sync.WaitGroup
	completed uint64
	failed    uint64
	log       *logging.Logger
}

// New starts a Queue's background worker rooted at projectRoot.
func New(projectRoot string) *Queue {
	q := &Queue{
		ProjectRoot: filepath.Clean(projectRoot),
		jobs:        make(chan job, 64),
		done:        make(chan struct{}),
		log:         logging.Get(logging.CategoryOpQueue),
	}
	q.wg.Add(1)
	go q.run()
	return q
}

// Close stops accepting new work and waits for the worker to drain.
func (q *Queue) Close() {
	close(q.done)
	q.wg.Wait()
}

// Stats returns a snapshot of the completed/failed counters.
func (q *Queue) Stats() Stats {
	return Stats{
		Completed: atomic.LoadUint64(&q.completed),
		Failed:    atomic.LoadUint64(&q.failed),
	}
}

// Enqueue submits op and blocks until the worker has processed it. Callers
// need not set ID or EnqueuedAt; Enqueue stamps both so every operation has
// a stable identity for logging and audit even when constructed inline.
func (q *Queue) Enqueue(op model.FileOperation) error {
	if op.ID == "" {
		op.ID = uuid.New().String()
	}
	op.EnqueuedAt = time.Now()
	j := job{op: op, result: make(chan error, 1)}
	select {
	case q.jobs <- j:
	case <-q.done:
		return apierr.New(apierr.CodeInternal, "operation queue is closed")
	}
	return <-j.result
}

func (q *Queue) run() {
	defer q.wg.Done()
	for {
		select {
		case j := <-q.jobs:
			err := q.process(j.op)
			if err != nil {
				atomic.AddUint64(&q.failed, 1)
			} else {
				atomic.AddUint64(&q.completed, 1)
			}
			j.result <- err
		case <-q.done:
			// Drain whatever is already queued before exiting.
			for {
				select {
				case j := <-q.jobs:
					j.result <- apierr.New(apierr.CodeInternal, "operation queue is closed")
				default:
					return
				}
			}
		}
	}
}

func (q *Queue) process(op model.FileOperation) error {
	if err := q.guardPath(op.FilePath); err != nil {
		return err
	}

	q.log.Debug("processing [%s] %s %s", op.ID, op.OperationType, op.FilePath)

	switch op.OperationType {
	case model.OpCreateDir:
		if err := os.MkdirAll(op.FilePath, 0o755); err != nil {
			return apierr.Wrap(apierr.CodeInternal, err, "create directory %s", op.FilePath)
		}
		return nil

	case model.OpCreateFile, model.OpWrite:
		content, _ := op.Params["content"].(string)
		if err := os.MkdirAll(filepath.Dir(op.FilePath), 0o755); err != nil {
			return apierr.Wrap(apierr.CodeInternal, err, "prepare directory for %s", op.FilePath)
		}
		if err := writeFileSynced(op.FilePath, content); err != nil {
			return apierr.Wrap(apierr.CodeInternal, err, "write %s", op.FilePath)
		}
		return nil

	case model.OpDelete:
		if err := os.Remove(op.FilePath); err != nil && !os.IsNotExist(err) {
			return apierr.Wrap(apierr.CodeInternal, err, "delete %s", op.FilePath)
		}
		return nil

	case model.OpRename:
		newPath, _ := op.Params["new_path"].(string)
		if newPath == "" {
			return apierr.New(apierr.CodeInvalidRequest, "rename operation missing new_path")
		}
		if err := q.guardPath(newPath); err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(newPath), 0o755); err != nil {
			return apierr.Wrap(apierr.CodeInternal, err, "prepare directory for rename target %s", newPath)
		}
		if err := os.Rename(op.FilePath, newPath); err != nil {
			return apierr.Wrap(apierr.CodeInternal, err, "rename %s -> %s", op.FilePath, newPath)
		}
		return nil

	default:
		return apierr.New(apierr.CodeInvalidRequest, "unknown operation type %q", op.OperationType)
	}
}

// writeFileSynced writes content atomically (temp file + rename) then
// fsyncs both the file and its containing directory, matching spec
// §4.10's "sync all before stats update" durability requirement.
func writeFileSynced(path, content string) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".opqueue-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}
	if d, err := os.Open(dir); err == nil {
		d.Sync()
		d.Close()
	}
	return nil
}

// guardPath canonicalizes target and asserts it falls within the project
// root, resolving the deepest existing ancestor when target itself does
// not yet exist (spec §4.10).
func (q *Queue) guardPath(target string) error {
	root, err := filepath.Abs(q.ProjectRoot)
	if err != nil {
		return apierr.Wrap(apierr.CodeInternal, err, "canonicalize project root")
	}
	root = filepath.Clean(root)

	canon, err := canonicalizeExistingOrAncestor(target)
	if err != nil {
		return apierr.Wrap(apierr.CodeInternal, err, "canonicalize target %s", target)
	}

	rel, err := filepath.Rel(root, canon)
	if err != nil || rel == ".." || (len(rel) >= 2 && rel[:2] == "..") {
		return apierr.New(apierr.CodePermissionDenied, "path %s escapes project root %s", target, root).
			WithContext("target", target).WithContext("root", root)
	}
	return nil
}

// canonicalizeExistingOrAncestor resolves symlinks on target if it
// exists; otherwise walks up to the deepest existing ancestor, resolves
// that, and re-appends the non-existing tail.
func canonicalizeExistingOrAncestor(target string) (string, error) {
	abs, err := filepath.Abs(target)
	if err != nil {
		return "", err
	}
	abs = filepath.Clean(abs)

	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}

	var tail []string
	cur := abs
	for {
		if resolved, err := filepath.EvalSymlinks(cur); err == nil {
			for i := len(tail) - 1; i >= 0; i-- {
				resolved = filepath.Join(resolved, tail[i])
			}
			return resolved, nil
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return "", fmt.Errorf("no existing ancestor for %s", target)
		}
		tail = append(tail, filepath.Base(cur))
		cur = parent
	}
}
