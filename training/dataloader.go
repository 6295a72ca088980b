package training

import (
	"fmt"
	"math/rand"
	"sync"

	"github.com/samrelins/seq2seq-go/tensor"
)

// Dataset interface defines methods that all datasets must implement
type Dataset interface {
	Len() int                                                           // Total number of samples
	Get(idx int) (data *tensor.Tensor, label *tensor.Tensor, err error) // Returns a single sample
}

// DataLoader provides batching and per-epoch shuffling over a Dataset
type DataLoader struct {
	dataset   Dataset
	batchSize int
	shuffle   bool
	rng       *rand.Rand
	indices   []int
	position  int
	mutex     sync.Mutex
}

// NewDataLoader creates a new DataLoader. The rng drives the epoch
// shuffles so training order is reproducible; a nil rng falls back to the
// package-level seeded source.
func NewDataLoader(dataset Dataset, batchSize int, shuffle bool, rng *rand.Rand) *DataLoader {
	if rng == nil {
		rng = globalRng
	}

	datasetLen := dataset.Len()
	indices := make([]int, datasetLen)
	for i := range indices {
		indices[i] = i
	}

	return &DataLoader{
		dataset:   dataset,
		batchSize: batchSize,
		shuffle:   shuffle,
		rng:       rng,
		indices:   indices,
		position:  0,
	}
}

// Batch represents a batch of data and labels
type Batch struct {
	Data   *tensor.Tensor
	Labels *tensor.Tensor
}

// Len returns the number of batches in an epoch
func (dl *DataLoader) Len() int {
	return (dl.dataset.Len() + dl.batchSize - 1) / dl.batchSize
}

// Reset resets the data loader for a new epoch, reshuffling if enabled
func (dl *DataLoader) Reset() {
	dl.mutex.Lock()
	defer dl.mutex.Unlock()

	dl.position = 0

	if dl.shuffle {
		dl.rng.Shuffle(len(dl.indices), func(i, j int) {
			dl.indices[i], dl.indices[j] = dl.indices[j], dl.indices[i]
		})
	}
}

// Next returns the next batch or nil if epoch is complete
func (dl *DataLoader) Next() (*Batch, error) {
	dl.mutex.Lock()
	defer dl.mutex.Unlock()

	if dl.position >= len(dl.indices) {
		return nil, nil // End of epoch
	}

	batchEnd := dl.position + dl.batchSize
	if batchEnd > len(dl.indices) {
		batchEnd = len(dl.indices)
	}

	actualBatchSize := batchEnd - dl.position
	batchIndices := dl.indices[dl.position:batchEnd]
	dl.position = batchEnd

	batch, err := dl.loadBatch(batchIndices, actualBatchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to load batch: %v", err)
	}

	return batch, nil
}

// HasNext returns true if there are more batches in the current epoch
func (dl *DataLoader) HasNext() bool {
	dl.mutex.Lock()
	defer dl.mutex.Unlock()
	return dl.position < len(dl.indices)
}

// loadBatch loads a batch of samples and combines them into batched tensors
func (dl *DataLoader) loadBatch(indices []int, batchSize int) (*Batch, error) {
	if len(indices) == 0 {
		return nil, fmt.Errorf("empty batch indices")
	}

	firstData, firstLabel, err := dl.dataset.Get(indices[0])
	if err != nil {
		return nil, fmt.Errorf("failed to load sample %d: %v", indices[0], err)
	}

	dataShape := append([]int{batchSize}, firstData.Shape...)
	labelShape := append([]int{batchSize}, firstLabel.Shape...)

	batchData, err := tensor.Zeros(dataShape, firstData.DType)
	if err != nil {
		return nil, fmt.Errorf("failed to create batch data tensor: %v", err)
	}

	batchLabels, err := tensor.Zeros(labelShape, firstLabel.DType)
	if err != nil {
		return nil, fmt.Errorf("failed to create batch labels tensor: %v", err)
	}

	for i, idx := range indices {
		data, label, err := dl.dataset.Get(idx)
		if err != nil {
			return nil, fmt.Errorf("failed to load sample %d: %v", idx, err)
		}

		if err := dl.copyInto(batchData, data, i); err != nil {
			return nil, fmt.Errorf("failed to copy data for sample %d: %v", i, err)
		}
		if err := dl.copyInto(batchLabels, label, i); err != nil {
			return nil, fmt.Errorf("failed to copy label for sample %d: %v", i, err)
		}
	}

	return &Batch{
		Data:   batchData,
		Labels: batchLabels,
	}, nil
}

// copyInto copies a sample tensor into a specific position in the batch tensor
func (dl *DataLoader) copyInto(batchTensor, sampleTensor *tensor.Tensor, batchIndex int) error {
	if batchTensor.DType != sampleTensor.DType {
		return fmt.Errorf("dtype mismatch: batch %s, sample %s", batchTensor.DType, sampleTensor.DType)
	}

	sampleSize := sampleTensor.NumElems
	offset := batchIndex * sampleSize

	switch batchTensor.DType {
	case tensor.Float32:
		batchData := batchTensor.Data.([]float32)
		sampleData := sampleTensor.Data.([]float32)

		if len(sampleData) != sampleSize {
			return fmt.Errorf("sample data size mismatch: expected %d, got %d", sampleSize, len(sampleData))
		}

		copy(batchData[offset:offset+sampleSize], sampleData)

	case tensor.Int32:
		batchData := batchTensor.Data.([]int32)
		sampleData := sampleTensor.Data.([]int32)

		if len(sampleData) != sampleSize {
			return fmt.Errorf("sample data size mismatch: expected %d, got %d", sampleSize, len(sampleData))
		}

		copy(batchData[offset:offset+sampleSize], sampleData)

	default:
		return fmt.Errorf("unsupported dtype for batch copying: %s", batchTensor.DType)
	}

	return nil
}

// Iterator returns a channel-based iterator for use in training loops.
// Any load error is reported through the returned error channel after the
// batch channel closes. A consumer that abandons the batch channel early
// must call stop so the producer goroutine can exit; calling stop after
// the channels close is a no-op.
func (dl *DataLoader) Iterator() (<-chan *Batch, <-chan error, func()) {
	batchChan := make(chan *Batch, 1)
	errChan := make(chan error, 1)
	done := make(chan struct{})

	var once sync.Once
	stop := func() {
		once.Do(func() { close(done) })
	}

	go func() {
		defer close(batchChan)
		defer close(errChan)

		dl.Reset()

		for dl.HasNext() {
			batch, err := dl.Next()
			if err != nil {
				errChan <- err
				return
			}
			if batch == nil {
				break
			}
			select {
			case batchChan <- batch:
			case <-done:
				return
			}
		}
	}()

	return batchChan, errChan, stop
}

// TranslationDataset pairs padded source id sequences with padded target
// id sequences. Both sides of sample i must already be encoded to their
// fixed lengths.
type TranslationDataset struct {
	sources [][]int32
	targets [][]int32
}

// NewTranslationDataset creates a dataset from parallel encoded sequences
func NewTranslationDataset(sources, targets [][]int32) (*TranslationDataset, error) {
	if len(sources) != len(targets) {
		return nil, fmt.Errorf("source count %d does not match target count %d", len(sources), len(targets))
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("dataset must contain at least one pair")
	}
	srcLen, tgtLen := len(sources[0]), len(targets[0])
	for i := range sources {
		if len(sources[i]) != srcLen {
			return nil, fmt.Errorf("source %d has length %d, expected %d", i, len(sources[i]), srcLen)
		}
		if len(targets[i]) != tgtLen {
			return nil, fmt.Errorf("target %d has length %d, expected %d", i, len(targets[i]), tgtLen)
		}
	}
	return &TranslationDataset{sources: sources, targets: targets}, nil
}

// Len returns the number of sentence pairs
func (td *TranslationDataset) Len() int {
	return len(td.sources)
}

// Get returns the source and target id sequences as Int32 tensors
func (td *TranslationDataset) Get(idx int) (*tensor.Tensor, *tensor.Tensor, error) {
	if idx < 0 || idx >= len(td.sources) {
		return nil, nil, fmt.Errorf("index %d out of range [0, %d)", idx, len(td.sources))
	}

	src := make([]int32, len(td.sources[idx]))
	copy(src, td.sources[idx])
	data, err := tensor.NewTensor([]int{len(src)}, tensor.Int32, src)
	if err != nil {
		return nil, nil, err
	}

	tgt := make([]int32, len(td.targets[idx]))
	copy(tgt, td.targets[idx])
	label, err := tensor.NewTensor([]int{len(tgt)}, tensor.Int32, tgt)
	if err != nil {
		return nil, nil, err
	}

	return data, label, nil
}
