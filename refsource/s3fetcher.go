package refsource

import (
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/pkg/errors"
)

// S3Downloader is the subset of s3manager.Downloader used by S3Fetcher, kept
// narrow so tests can supply a fake.
type S3Downloader interface {
	Download(w io.WriterAt, input *s3.GetObjectInput) (int64, error)
}

// S3Fetcher retrieves whole FASTA (and .fai index) objects from S3 so they
// can be handed to encoding/fasta.New, for deployments that keep the
// reference genome in a bucket rather than on local disk.
type S3Fetcher struct {
	Bucket     string
	Downloader S3Downloader
}

// NewS3Fetcher builds an S3Fetcher against bucket using the default AWS
// session and region resolution.
func NewS3Fetcher(bucket string) (S3Fetcher, error) {
	sess, err := session.NewSession()
	if err != nil {
		return S3Fetcher{}, errors.Wrap(err, "refsource.NewS3Fetcher: creating AWS session")
	}
	return S3Fetcher{Bucket: bucket, Downloader: s3manager.NewDownloader(sess)}, nil
}

// FetchObject downloads key from the fetcher's bucket into w, returning the
// number of bytes written.
func (f S3Fetcher) FetchObject(w io.WriterAt, key string) (int64, error) {
	n, err := f.Downloader.Download(w, &s3.GetObjectInput{
		Bucket: aws.String(f.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return 0, errors.Wrapf(err, "refsource.S3Fetcher.FetchObject: s3://%s/%s", f.Bucket, key)
	}
	return n, nil
}

// String implements fmt.Stringer for logging.
func (f S3Fetcher) String() string {
	return fmt.Sprintf("s3://%s", f.Bucket)
}
