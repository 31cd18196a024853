// SPDX-License-Identifier: Apache-2.0
package vectorize

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// countingBackend records the size of every batch it's asked to evaluate and
// answers with a distinct value per input so tests can tell which request
// got which answer.
type countingBackend struct {
	mu      sync.Mutex
	batches []int
}

func (b *countingBackend) EvaluateBatch(inputs []PolicyInput) ([]PolicyOutput, error) {
	b.mu.Lock()
	b.batches = append(b.batches, len(inputs))
	b.mu.Unlock()

	out := make([]PolicyOutput, len(inputs))
	for i := range inputs {
		out[i] = PolicyOutput{Value: float64(i + 1)}
	}
	return out, nil
}

func (b *countingBackend) batchSizes() []int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]int(nil), b.batches...)
}

func TestPredictFlushesOnceBatchSizeIsReached(t *testing.T) {
	backend := &countingBackend{}
	policy := NewNeuralPackingPolicy(backend, 3, 1, nil)
	defer policy.Cancel()

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			policy.predict(PolicyInput{})
		}()
	}
	wg.Wait()

	assert.Equal(t, []int{3}, backend.batchSizes())
}

func TestFlushForcesAPartialBatchOut(t *testing.T) {
	backend := &countingBackend{}
	policy := NewNeuralPackingPolicy(backend, 8, 1, nil)
	defer policy.Cancel()

	result := policy.predictAsync(PolicyInput{})
	policy.Flush()

	select {
	case <-result:
	case <-time.After(time.Second):
		t.Fatal("Flush must force a partially filled batch out immediately")
	}
	assert.Equal(t, []int{1}, backend.batchSizes())
}

func TestPredictAsyncIsFireAndForget(t *testing.T) {
	backend := &countingBackend{}
	policy := NewNeuralPackingPolicy(backend, 1, 1, nil)
	defer policy.Cancel()

	result := policy.predictAsync(PolicyInput{})
	select {
	case out := <-result:
		assert.Equal(t, 1.0, out.Value)
	case <-time.After(time.Second):
		t.Fatal("a batch-size-1 policy should flush predictAsync's request immediately")
	}
}

func TestValueEstimateReportsNoBackendAttached(t *testing.T) {
	policy := NewNeuralPackingPolicy(nil, 1, 1, nil)
	defer policy.Cancel()

	_, block := buildBlock(1)
	ctx := NewVectorPackContext(NewValueIndex(block), testCostModel{})
	f := NewFrontier(ctx)

	_, ok := policy.ValueEstimate(f)
	assert.False(t, ok)
}

func TestCancelUnblocksAPendingPredict(t *testing.T) {
	backend := &countingBackend{}
	policy := NewNeuralPackingPolicy(backend, 100, 2, nil)

	done := make(chan PolicyOutput, 1)
	go func() {
		done <- policy.predict(PolicyInput{})
	}()

	// Give the goroutine a chance to enqueue before cancelling, without a
	// batch ever reaching the configured size of 100.
	time.Sleep(10 * time.Millisecond)
	policy.Cancel()

	select {
	case out := <-done:
		assert.Equal(t, PolicyOutput{}, out, "a cancelled predict must resolve with the zero value")
	case <-time.After(time.Second):
		t.Fatal("Cancel must unblock every waiter")
	}
}

func TestCancelDrainsInFlightBatchesWithZeroValues(t *testing.T) {
	block := make(chan struct{})
	backend := blockingBackend{unblock: block}
	policy := NewNeuralPackingPolicy(backend, 1, 1, nil)

	result := policy.predictAsync(PolicyInput{})

	// The single worker is now stuck inside evaluate(); the second batch
	// piles up in the jobs queue behind it.
	second := policy.predictAsync(PolicyInput{})

	cancelDone := make(chan struct{})
	go func() {
		policy.Cancel()
		close(cancelDone)
	}()

	// Let Cancel observe and drain the queued (not yet started) second
	// batch before letting the stuck worker finish.
	time.Sleep(10 * time.Millisecond)
	close(block)

	select {
	case <-cancelDone:
	case <-time.After(time.Second):
		t.Fatal("Cancel must return once the stuck worker is unblocked")
	}

	for _, ch := range []<-chan PolicyOutput{result, second} {
		select {
		case out := <-ch:
			assert.Equal(t, PolicyOutput{}, out)
		case <-time.After(time.Second):
			t.Fatal("Cancel must drain every in-flight and queued batch")
		}
	}
}

// blockingBackend blocks EvaluateBatch until unblock is closed, letting a
// test force a worker to be mid-batch when Cancel is called.
type blockingBackend struct {
	unblock chan struct{}
}

func (b blockingBackend) EvaluateBatch(inputs []PolicyInput) ([]PolicyOutput, error) {
	<-b.unblock
	return nil, errors.New("blockingBackend never actually answers")
}

func TestCancelIsIdempotent(t *testing.T) {
	policy := NewNeuralPackingPolicy(nil, 1, 1, nil)
	assert.NotPanics(t, func() {
		policy.Cancel()
		policy.Cancel()
	})
}
