// SPDX-License-Identifier: Apache-2.0
package vectorize

import (
	"sync"

	"github.com/petermattis/goid"
	deadlock "github.com/sasha-s/go-deadlock"
	"github.com/tliron/commonlog"
)

// PolicyInput is one query to the learned packing policy: the Frontier to
// evaluate plus the packs the caller is choosing between, so the backend
// can return per-pack priors alongside the leaf value estimate.
type PolicyInput struct {
	Frontier  *Frontier
	Candidate []*VectorPack
}

// PolicyOutput is the policy's answer: a value-head estimate of remaining
// cost, plus prior probabilities over the candidate packs supplied in the
// matching PolicyInput.
type PolicyOutput struct {
	Value      float64
	PackPriors map[*VectorPack]float64
}

// PolicyBackend evaluates a batch of PolicyInputs at once - the seam where
// an actual model (served in-process or over RPC) plugs in. The core never
// depends on a concrete backend; tests and the CLI's default configuration
// run with no backend at all, in which case NeuralPackingPolicy is simply
// never consulted.
type PolicyBackend interface {
	EvaluateBatch(inputs []PolicyInput) ([]PolicyOutput, error)
}

type pendingRequest struct {
	input  PolicyInput
	result chan PolicyOutput
}

// NeuralPackingPolicy batches concurrent evaluation requests from many
// search goroutines into fixed-size calls to a PolicyBackend, run across a
// fixed pool of worker goroutines (spec 4.11/5). predictAsync is the
// fire-and-forget half: it enqueues a request and returns a channel the
// caller can wait on later; predict is the synchronous convenience that
// waits immediately. Backpressure comes from the bounded jobs channel: once
// numThreads batches are already in flight, the next flush blocks the
// producer until a worker frees a slot.
type NeuralPackingPolicy struct {
	mu        deadlock.Mutex
	pending   []pendingRequest
	backend   PolicyBackend
	batchSize int
	logger    commonlog.Logger

	jobs      chan []pendingRequest
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewNeuralPackingPolicy builds a policy around backend, batching batchSize
// requests per call and running numThreads worker goroutines to evaluate
// them. backend may be nil, in which case the policy reports no estimate
// and callers fall back to the plain heuristic.
func NewNeuralPackingPolicy(backend PolicyBackend, batchSize, numThreads int, logger commonlog.Logger) *NeuralPackingPolicy {
	if batchSize < 1 {
		batchSize = 1
	}
	if numThreads < 1 {
		numThreads = 1
	}
	p := &NeuralPackingPolicy{
		backend:   backend,
		batchSize: batchSize,
		logger:    logger,
		jobs:      make(chan []pendingRequest, numThreads),
		done:      make(chan struct{}),
	}
	p.wg.Add(numThreads)
	for i := 0; i < numThreads; i++ {
		go p.worker()
	}
	return p
}

func (p *NeuralPackingPolicy) worker() {
	defer p.wg.Done()
	for {
		select {
		case <-p.done:
			return
		case batch, ok := <-p.jobs:
			if !ok {
				return
			}
			p.evaluate(batch)
		}
	}
}

// ValueEstimate queries the policy for frontier's remaining-cost estimate.
// ok is false when no backend is attached.
func (p *NeuralPackingPolicy) ValueEstimate(f *Frontier) (float64, bool) {
	if p.backend == nil {
		return 0, false
	}
	out := p.predict(PolicyInput{Frontier: f})
	return out.Value, true
}

// PackPriors queries the policy for prior weights over candidates, used by
// UCT's selection step to bias the W*prior term of ucb1 (spec 4.9/4.11). ok
// is false when no backend is attached.
func (p *NeuralPackingPolicy) PackPriors(f *Frontier, candidates []*VectorPack) (map[*VectorPack]float64, bool) {
	if p.backend == nil {
		return nil, false
	}
	out := p.predict(PolicyInput{Frontier: f, Candidate: candidates})
	return out.PackPriors, true
}

// predictAsync enqueues input and returns immediately without waiting for
// an answer; the returned channel receives exactly one PolicyOutput, either
// from a completed batch or a zero value if the policy is cancelled first.
func (p *NeuralPackingPolicy) predictAsync(input PolicyInput) <-chan PolicyOutput {
	req := pendingRequest{input: input, result: make(chan PolicyOutput, 1)}

	p.mu.Lock()
	p.pending = append(p.pending, req)
	if p.logger != nil {
		p.logger.Debugf("policy: goroutine %d queued request, %d pending", goid.Get(), len(p.pending))
	}
	var flush []pendingRequest
	if len(p.pending) >= p.batchSize {
		flush = p.pending
		p.pending = nil
	}
	p.mu.Unlock()

	if flush != nil {
		p.enqueue(flush)
	}

	return req.result
}

// predict blocks until input's batch is evaluated (or the policy is
// cancelled), and returns the result directly.
func (p *NeuralPackingPolicy) predict(input PolicyInput) PolicyOutput {
	result := p.predictAsync(input)
	select {
	case out := <-result:
		return out
	case <-p.done:
		return PolicyOutput{}
	}
}

// enqueue hands a filled batch to the worker pool, blocking (backpressure)
// if every worker already has a batch in flight, unless the policy is
// cancelled first - in which case the batch is answered with zero values
// directly instead of being silently dropped.
func (p *NeuralPackingPolicy) enqueue(batch []pendingRequest) {
	select {
	case p.jobs <- batch:
	case <-p.done:
		for _, r := range batch {
			r.result <- PolicyOutput{}
		}
	}
}

func (p *NeuralPackingPolicy) evaluate(batch []pendingRequest) {
	inputs := make([]PolicyInput, len(batch))
	for i, r := range batch {
		inputs[i] = r.input
	}

	outputs, err := p.backend.EvaluateBatch(inputs)
	if err != nil {
		if p.logger != nil {
			p.logger.Errorf("policy: batch of %d failed: %s", len(batch), err)
		}
		for _, r := range batch {
			r.result <- PolicyOutput{}
		}
		return
	}

	for i, r := range batch {
		if i < len(outputs) {
			r.result <- outputs[i]
		} else {
			r.result <- PolicyOutput{}
		}
	}
}

// Flush forces any partially-filled batch out immediately, used when a
// search completes with fewer than batchSize requests outstanding.
func (p *NeuralPackingPolicy) Flush() {
	p.mu.Lock()
	flush := p.pending
	p.pending = nil
	p.mu.Unlock()
	if flush != nil {
		p.enqueue(flush)
	}
}

// Cancel unblocks every waiter (predict/predictAsync callers and any
// producer blocked on a full jobs queue) and drains the pending and
// in-flight queues with zero-value answers, then joins the worker pool.
// Safe to call more than once.
func (p *NeuralPackingPolicy) Cancel() {
	p.closeOnce.Do(func() { close(p.done) })

	p.mu.Lock()
	pending := p.pending
	p.pending = nil
	p.mu.Unlock()
	for _, r := range pending {
		r.result <- PolicyOutput{}
	}

	for {
		select {
		case batch := <-p.jobs:
			for _, r := range batch {
				r.result <- PolicyOutput{}
			}
		default:
			p.wg.Wait()
			return
		}
	}
}
