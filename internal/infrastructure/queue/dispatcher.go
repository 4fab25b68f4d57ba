package queue

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/documentai/docai/internal/api/metrics"
	"github.com/documentai/docai/internal/core/domain"
	"github.com/documentai/docai/internal/core/ports"
)

const defaultWorkers = 4

// Uploader processes a single document.
type Uploader interface {
	Upload(ctx context.Context, in ports.UploadInput, progress ports.ProgressFunc) (*domain.UploadResult, error)
}

// Outcome is the result of one document in a batch.
type Outcome struct {
	Name   string
	Result *domain.UploadResult
	Err    error
}

// ProgressFunc receives per-document progress from a batch.
type ProgressFunc func(name string, percent int)

type job struct {
	index int
	input ports.UploadInput
}

// Dispatcher uploads a batch of documents over a fixed set of workers.
type Dispatcher struct {
	workers  int
	uploader Uploader
	log      zerolog.Logger
}

// NewDispatcher creates a Dispatcher with numWorkers workers.
// If numWorkers <= 0, defaultWorkers is used.
func NewDispatcher(numWorkers int, uploader Uploader, log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	return &Dispatcher{workers: numWorkers, uploader: uploader, log: log}
}

// Run uploads every input and returns one Outcome per input, in input order.
// Inputs not yet started when ctx is cancelled fail with ctx.Err().
func (d *Dispatcher) Run(ctx context.Context, inputs []ports.UploadInput, progress ProgressFunc) []Outcome {
	out := make([]Outcome, len(inputs))
	if len(inputs) == 0 {
		return out
	}
	if progress == nil {
		progress = func(string, int) {}
	}

	jobs := make(chan job, len(inputs))
	for i, in := range inputs {
		jobs <- job{index: i, input: in}
	}
	close(jobs)
	metrics.UploadQueueDepth.Add(float64(len(inputs)))

	workers := min(d.workers, len(inputs))
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func(id int) {
			defer wg.Done()
			d.runWorker(ctx, id, jobs, out, progress)
		}(w)
	}
	wg.Wait()

	return out
}

func (d *Dispatcher) runWorker(ctx context.Context, id int, jobs <-chan job, out []Outcome, progress ProgressFunc) {
	for j := range jobs {
		metrics.UploadQueueDepth.Dec()
		name := j.input.Name
		if err := ctx.Err(); err != nil {
			out[j.index] = Outcome{Name: name, Err: err}
			continue
		}

		res, err := d.uploader.Upload(ctx, j.input, func(p int) { progress(name, p) })
		out[j.index] = Outcome{Name: name, Result: res, Err: err}
		if err != nil {
			d.log.Error().Err(err).
				Str("file", name).
				Int("worker_id", id).
				Msg("upload failed")
		}
	}
}
