// Package dataset loads Flickr-style image/caption pairs for caption model
// training.
//
// A caption table is a two-column CSV (image filename, caption text) with a
// header row and exactly five consecutive caption rows per image. The loader
// preprocesses every caption once (see Preprocess) and exposes the data
// grouped by image: index i yields one image path and its five captions.
package dataset

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// spec describes one supported dataset layout under the data directory.
type spec struct {
	dir          string // subdirectory under dataDir
	captionsFile string // caption table filename
	imagesDir    string // image directory name
	url          string // upstream download location
}

var specs = map[string]spec{
	"flickr8k": {
		dir:          "flickr8k",
		captionsFile: "captions.txt",
		imagesDir:    "Images",
		url:          "https://www.kaggle.com/datasets/adityajn105/flickr8k",
	},
	"flickr30k": {
		dir:          "flickr30k",
		captionsFile: "captions.txt",
		imagesDir:    "Images",
		url:          "https://www.kaggle.com/datasets/adityajn105/flickr30k",
	},
}

// Names returns the registered dataset names, sorted.
func Names() []string {
	names := make([]string, 0, len(specs))
	for name := range specs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dataset holds a loaded caption table with preprocessed captions.
//
// Rows keep their file order: rows [5i, 5i+5) belong to image i.
type Dataset struct {
	name     string
	dir      string
	images   []string // image filename per row
	captions []string // preprocessed caption per row
	spec     spec
}

// Open loads a registered dataset from dataDir.
//
// Returns an error naming the valid datasets when name is unknown, and a
// wrapped I/O or format error when the caption table cannot be read.
func Open(name, dataDir string) (*Dataset, error) {
	sp, ok := specs[name]
	if !ok {
		return nil, fmt.Errorf("unknown dataset %q, expected one of %v", name, Names())
	}

	dir := filepath.Join(dataDir, sp.dir)
	path := filepath.Join(dir, sp.captionsFile)
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open caption table: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read caption table: %w", err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("caption table %s is empty or missing header", path)
	}

	// Skip header row
	records = records[1:]

	ds := &Dataset{
		name:     name,
		dir:      dir,
		images:   make([]string, 0, len(records)),
		captions: make([]string, 0, len(records)),
		spec:     sp,
	}
	for i, record := range records {
		if len(record) != 2 {
			return nil, fmt.Errorf("invalid record length at row %d: got %d columns, want 2", i+2, len(record))
		}
		ds.images = append(ds.images, record[0])
		ds.captions = append(ds.captions, Preprocess(record[1]))
	}

	return ds, nil
}

// Name returns the registered dataset name.
func (d *Dataset) Name() string {
	return d.name
}

// Dir returns the dataset's directory, where derived artifacts also live.
func (d *Dataset) Dir() string {
	return d.dir
}

// Len returns the number of images: floor(rows / 5). Trailing rows that do
// not complete a group of five are not addressable.
func (d *Dataset) Len() int {
	return len(d.captions) / CaptionsPerImage
}

// Rows returns the total number of caption rows.
func (d *Dataset) Rows() int {
	return len(d.captions)
}

// Item returns the image path and the five preprocessed captions for image
// index i.
//
// Panics if i is out of range [0, Len()).
func (d *Dataset) Item(i int) (imagePath string, captions []string) {
	if i < 0 || i >= d.Len() {
		panic(fmt.Sprintf("dataset.Item: index %d out of range [0, %d)", i, d.Len()))
	}

	row := i * CaptionsPerImage
	captions = make([]string, CaptionsPerImage)
	copy(captions, d.captions[row:row+CaptionsPerImage])

	imagePath = filepath.Join(d.dir, d.spec.imagesDir, d.images[row])
	return imagePath, captions
}

// Captions returns all preprocessed caption rows in file order. The returned
// slice is shared; callers must not modify it.
func (d *Dataset) Captions() []string {
	return d.captions
}
