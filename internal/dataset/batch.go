package dataset

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/born/tensor"

	"github.com/born-ml/caption/internal/glove"
)

// Sample is one supervised training example: predict Target given the image
// and the caption prefix.
type Sample struct {
	ImagePath string
	Prefix    []int32
	Target    int32
}

// Split partitions image indices into train/val/test subsets.
//
// The split is by image, so no image's captions leak across phases. Ordering
// is shuffled with the given seed; fractions are of Len() and the test split
// takes the remainder.
func (d *Dataset) Split(trainFrac, valFrac float64, seed int64) (train, val, test []int) {
	if trainFrac < 0 || valFrac < 0 || trainFrac+valFrac > 1 {
		panic(fmt.Sprintf("dataset.Split: invalid fractions train=%v val=%v", trainFrac, valFrac))
	}

	n := d.Len()
	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // deterministic split, not security
	rng.Shuffle(n, func(i, j int) {
		indices[i], indices[j] = indices[j], indices[i]
	})

	nTrain := int(float64(n) * trainFrac)
	nVal := int(float64(n) * valFrac)
	return indices[:nTrain], indices[nTrain : nTrain+nVal], indices[nTrain+nVal:]
}

// Expand turns the selected images into per-prefix training samples: for
// every caption token after the first, one sample predicting that token from
// the preceding prefix.
func Expand(d *Dataset, indices []int, vocab *glove.Vocabulary) []Sample {
	samples := make([]Sample, 0, len(indices)*CaptionsPerImage*8)
	for _, idx := range indices {
		path, captions := d.Item(idx)
		for _, caption := range captions {
			ids := vocab.Encode(caption)
			for t := 1; t < len(ids); t++ {
				samples = append(samples, Sample{
					ImagePath: path,
					Prefix:    ids[:t],
					Target:    ids[t],
				})
			}
		}
	}
	return samples
}

// Batch is one collated minibatch on a backend.
type Batch[B tensor.Backend] struct {
	Images  *tensor.Tensor[float32, B] // [size, 3, img, img]
	Seqs    *tensor.Tensor[int32, B]   // [max_len, size], pre-padded
	Targets *tensor.Tensor[int32, B]   // [size]
	Paths   []string                   // image path per example
	Size    int
}

// LoaderConfig configures batch assembly.
type LoaderConfig struct {
	BatchSize int
	MaxLen    int // padded sequence length (vocabulary MaxLen)
	ImageSize int // image side length (DefaultImageSize)
	Shuffle   bool
	Seed      int64
}

// Loader assembles batches from samples on demand, in the scanner idiom:
//
//	loader.Reset()
//	for loader.Scan() {
//	    batch := loader.Batch()
//	    ...
//	}
//	if err := loader.Err(); err != nil { ... }
//
// Images are decoded lazily per batch and memoized within it, since prefix
// expansion repeats the same image many times.
type Loader[B tensor.Backend] struct {
	samples []Sample
	cfg     LoaderConfig
	backend B
	rng     *rand.Rand

	pos     int
	current *Batch[B]
	err     error
}

// NewLoader creates a loader over samples.
func NewLoader[B tensor.Backend](samples []Sample, cfg LoaderConfig, backend B) *Loader[B] {
	if cfg.BatchSize <= 0 {
		panic(fmt.Sprintf("dataset.NewLoader: batch size must be positive, got %d", cfg.BatchSize))
	}
	if cfg.MaxLen <= 0 {
		panic(fmt.Sprintf("dataset.NewLoader: max len must be positive, got %d", cfg.MaxLen))
	}
	if cfg.ImageSize == 0 {
		cfg.ImageSize = DefaultImageSize
	}
	return &Loader[B]{
		samples: samples,
		cfg:     cfg,
		backend: backend,
		rng:     rand.New(rand.NewSource(cfg.Seed)), //nolint:gosec // shuffling, not security
	}
}

// Len returns the number of batches per pass (last partial batch included).
func (l *Loader[B]) Len() int {
	return (len(l.samples) + l.cfg.BatchSize - 1) / l.cfg.BatchSize
}

// Reset rewinds the loader and, when shuffling is enabled, reorders the
// samples for the next pass.
func (l *Loader[B]) Reset() {
	l.pos = 0
	l.current = nil
	l.err = nil
	if l.cfg.Shuffle {
		l.rng.Shuffle(len(l.samples), func(i, j int) {
			l.samples[i], l.samples[j] = l.samples[j], l.samples[i]
		})
	}
}

// Scan advances to the next batch. It returns false at the end of the pass
// or on error; check Err after the loop.
func (l *Loader[B]) Scan() bool {
	if l.err != nil || l.pos >= len(l.samples) {
		return false
	}

	end := l.pos + l.cfg.BatchSize
	if end > len(l.samples) {
		end = len(l.samples)
	}

	batch, err := l.collate(l.samples[l.pos:end])
	if err != nil {
		l.err = err
		return false
	}

	l.current = batch
	l.pos = end
	return true
}

// Batch returns the batch prepared by the last successful Scan.
func (l *Loader[B]) Batch() *Batch[B] {
	return l.current
}

// Err returns the first error encountered while scanning.
func (l *Loader[B]) Err() error {
	return l.err
}

// collate builds the image, sequence, and target tensors for one batch.
func (l *Loader[B]) collate(samples []Sample) (*Batch[B], error) {
	n := len(samples)
	size := l.cfg.ImageSize
	plane := 3 * size * size

	cache := newImageCache(size)
	imageData := make([]float32, n*plane)
	seqData := make([]int32, l.cfg.MaxLen*n)
	targetData := make([]int32, n)
	paths := make([]string, n)

	for j, s := range samples {
		pixels, err := cache.get(s.ImagePath)
		if err != nil {
			return nil, fmt.Errorf("failed to load batch image: %w", err)
		}
		copy(imageData[j*plane:(j+1)*plane], pixels)

		if len(s.Prefix) > l.cfg.MaxLen {
			return nil, fmt.Errorf("prefix length %d exceeds max len %d", len(s.Prefix), l.cfg.MaxLen)
		}
		offset := l.cfg.MaxLen - len(s.Prefix) // pre-padding
		for k, id := range s.Prefix {
			seqData[(offset+k)*n+j] = id
		}

		targetData[j] = s.Target
		paths[j] = s.ImagePath
	}

	images, err := tensor.FromSlice[float32](imageData, ImageShape(n, size), l.backend)
	if err != nil {
		return nil, fmt.Errorf("failed to create image tensor: %w", err)
	}
	seqs, err := tensor.FromSlice[int32](seqData, tensor.Shape{l.cfg.MaxLen, n}, l.backend)
	if err != nil {
		return nil, fmt.Errorf("failed to create sequence tensor: %w", err)
	}
	targets, err := tensor.FromSlice[int32](targetData, tensor.Shape{n}, l.backend)
	if err != nil {
		return nil, fmt.Errorf("failed to create target tensor: %w", err)
	}

	return &Batch[B]{
		Images:  images,
		Seqs:    seqs,
		Targets: targets,
		Paths:   paths,
		Size:    n,
	}, nil
}
