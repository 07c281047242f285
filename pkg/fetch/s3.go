package fetch

import (
	"context"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/lab47/provision/pkg/event"
	"github.com/pkg/errors"
)

type S3API interface {
	GetObjectWithContext(ctx aws.Context, input *s3.GetObjectInput, opts ...request.Option) (*s3.GetObjectOutput, error)
}

func NewS3() (S3API, error) {
	awscfg := aws.NewConfig()
	if ep := os.Getenv("AWS_ENDPOINT_S3"); ep != "" {
		awscfg.Endpoint = &ep
		awscfg.S3ForcePathStyle = aws.Bool(true)
	}

	sess, err := session.NewSession(awscfg)
	if err != nil {
		return nil, err
	}

	return s3.New(sess), nil
}

func parseS3(source string) (bucket, key string, err error) {
	u, err := url.Parse(source)
	if err != nil {
		return "", "", err
	}

	bucket = u.Host
	key = strings.TrimPrefix(u.Path, "/")

	if bucket == "" || key == "" {
		return "", "", errors.Errorf("s3 source needs a bucket and key: %s", source)
	}

	return bucket, key, nil
}

func (f *Fetcher) fetchS3(ctx context.Context, source, scratch string) (*Result, error) {
	bucket, key, err := parseS3(source)
	if err != nil {
		return nil, err
	}

	if f.S3 == nil {
		f.S3, err = NewS3()
		if err != nil {
			return nil, errors.Wrap(err, "creating s3 session")
		}
	}

	dst := filepath.Join(scratch, ArchiveName(source))

	f.logger().Info("downloading archive", "bucket", bucket, "key", key, "path", dst)
	event.Fire(ctx, &event.DownloadEvent{URL: source, Path: dst})

	out, err := f.S3.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, err
	}

	defer out.Body.Close()

	w, err := os.Create(dst)
	if err != nil {
		return nil, err
	}

	defer w.Close()

	n, err := io.Copy(w, out.Body)
	if err != nil {
		return nil, err
	}

	if n == 0 {
		return nil, ErrEmptyDownload
	}

	return &Result{Path: dst}, nil
}
