package persist

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/stupiduntilnot/dataingest/internal/dataset"
)

const (
	RawSubdir = "raw"
	TrainFile = "train.csv"
	TestFile  = "test.csv"
)

// File describes one written CSV file.
type File struct {
	Name   string
	Path   string
	Rows   int
	Bytes  int64
	SHA256 string
}

// Result describes the files written by Save.
type Result struct {
	Dir   string
	Train File
	Test  File
}

type Persister struct {
	logger *zap.Logger
}

func New(logger *zap.Logger) *Persister {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Persister{logger: logger}
}

// Save writes train and test as <baseDir>/raw/train.csv and
// <baseDir>/raw/test.csv, creating the directory and any missing parents.
// Files already written are left in place when a later write fails.
func (p *Persister) Save(train, test *dataset.Dataset, baseDir string) (Result, error) {
	res, err := p.save(train, test, baseDir)
	if err != nil {
		p.logger.Error("Unexpected error occurred while saving the data", zap.String("dir", baseDir), zap.Error(err))
		return Result{}, err
	}
	p.logger.Debug("Train and test data saved",
		zap.String("dir", res.Dir),
		zap.Int("train_rows", res.Train.Rows),
		zap.Int("test_rows", res.Test.Rows),
	)
	return res, nil
}

func (p *Persister) save(train, test *dataset.Dataset, baseDir string) (Result, error) {
	if train == nil || test == nil {
		return Result{}, fmt.Errorf("train and test datasets are required")
	}
	dir := filepath.Join(baseDir, RawSubdir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Result{}, fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}

	trainFile, err := writeCSV(filepath.Join(dir, TrainFile), train)
	if err != nil {
		return Result{}, err
	}
	testFile, err := writeCSV(filepath.Join(dir, TestFile), test)
	if err != nil {
		return Result{}, err
	}
	return Result{Dir: dir, Train: trainFile, Test: testFile}, nil
}

func writeCSV(path string, ds *dataset.Dataset) (File, error) {
	f, err := os.Create(path)
	if err != nil {
		return File{}, fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	hash := sha256.New()
	counter := &countingWriter{}
	bw := bufio.NewWriter(f)
	if err := ds.WriteCSV(io.MultiWriter(bw, hash, counter)); err != nil {
		return File{}, fmt.Errorf("write %s: %w", path, err)
	}
	if err := bw.Flush(); err != nil {
		return File{}, fmt.Errorf("flush %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return File{}, fmt.Errorf("close %s: %w", path, err)
	}
	return File{
		Name:   filepath.Base(path),
		Path:   path,
		Rows:   ds.Len(),
		Bytes:  counter.n,
		SHA256: hex.EncodeToString(hash.Sum(nil)),
	}, nil
}

type countingWriter struct {
	n int64
}

func (w *countingWriter) Write(p []byte) (int, error) {
	w.n += int64(len(p))
	return len(p), nil
}
