package commitlog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Sink is the interface for commit log storage backends.
type Sink interface {
	// Write stores a batch of records. A batch is written whole or the
	// error says it was not.
	Write(ctx context.Context, records []Record) error
}

// WriterSink appends JSON lines to an io.Writer.
type WriterSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterSink creates a WriterSink.
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

// Write encodes the batch in one write, so a failed batch leaves no
// partial lines behind.
func (s *WriterSink) Write(_ context.Context, records []Record) error {
	var buf bytes.Buffer
	if err := Encode(&buf, records); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.w.Write(buf.Bytes())
	return err
}

// Tee returns a Sink that writes every batch to each of sinks in order.
// A batch that fails on one sink may already be stored by the others.
func Tee(sinks ...Sink) Sink {
	return tee(sinks)
}

type tee []Sink

func (t tee) Write(ctx context.Context, records []Record) error {
	var errs []error
	for _, s := range t {
		if err := s.Write(ctx, records); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// FileSink appends JSON lines to a file, creating it and its directory on
// first write.
type FileSink struct {
	path string
}

// NewFileSink creates a FileSink.
func NewFileSink(path string) *FileSink {
	return &FileSink{path: path}
}

// Path returns the file path.
func (s *FileSink) Path() string { return s.path }

func (s *FileSink) Write(ctx context.Context, records []Record) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	if err := NewWriterSink(f).Write(ctx, records); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadFile decodes a file written by FileSink.
func ReadFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f)
}

// PutObjectAPI is the part of *s3.Client that S3Sink uses.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Sink stores each batch as one JSON lines object.
//
// Example usage:
//
//	client := s3.New(s3.Options{Region: "us-east-1", Credentials: creds})
//	sink := commitlog.NewS3Sink(client, "my-bucket", "commits/")
//	err := log.Flush(ctx, sink)
type S3Sink struct {
	client PutObjectAPI
	bucket string
	prefix string
	now    func() time.Time
}

// NewS3Sink creates a new S3 sink.
//
// Parameters:
//   - client: S3 client from aws-sdk-go-v2
//   - bucket: S3 bucket name
//   - prefix: Key prefix for batches (e.g., "commits/")
func NewS3Sink(client PutObjectAPI, bucket, prefix string) *S3Sink {
	return &S3Sink{
		client: client,
		bucket: bucket,
		prefix: prefix,
		now:    time.Now,
	}
}

// Key returns the object key for a batch. Keys sort by time, then by the
// first sequence number.
func (s *S3Sink) Key(records []Record) string {
	return fmt.Sprintf("%s%s-%08d.jsonl", s.prefix, s.now().UTC().Format("20060102T150405Z"), records[0].Seq)
}

func (s *S3Sink) Write(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	var buf bytes.Buffer
	if err := Encode(&buf, records); err != nil {
		return err
	}
	key := s.Key(records)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("application/x-ndjson"),
		Metadata: map[string]string{
			"first-seq": fmt.Sprint(records[0].Seq),
			"last-seq":  fmt.Sprint(records[len(records)-1].Seq),
		},
	})
	if err != nil {
		return fmt.Errorf("commitlog: s3 put %s: %w", key, err)
	}
	return nil
}
