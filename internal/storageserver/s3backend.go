package storageserver

import (
	"bytes"
	"io/ioutil"
	"net/http"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/nicolagi/dfs/internal/dfserr"
	"github.com/nicolagi/dfs/internal/dpath"
	"github.com/pkg/errors"
)

// S3Backend is an alternative Backend storing every file as one S3 object
// keyed by its path string.
//
// S3 has no partial-write API, so WriteAt fetches the whole object,
// patches it in memory, and writes it back; this is adequate for the
// occasional write a storage server sees between replication copies, not
// for high-frequency small writes.
type S3Backend struct {
	client *s3.S3
	bucket string
}

// NewS3Backend builds a Backend storing objects in bucket, in region,
// authenticating with the named shared-credentials profile (empty string
// for the default profile).
func NewS3Backend(region, bucket, profile string) (*S3Backend, error) {
	sess, err := session.NewSession(&aws.Config{
		Region:      aws.String(region),
		Credentials: credentials.NewSharedCredentials("", profile),
		MaxRetries:  aws.Int(16),
	})
	if err != nil {
		return nil, errors.Wrap(dfserr.ErrTransport, err.Error())
	}
	return &S3Backend{client: s3.New(sess), bucket: bucket}, nil
}

func (b *S3Backend) key(p dpath.Path) string {
	return p.String()
}

func isNotFound(err error) bool {
	if rfErr, ok := err.(awserr.RequestFailure); ok {
		return rfErr.StatusCode() == http.StatusNotFound
	}
	return false
}

func (b *S3Backend) get(p dpath.Path) ([]byte, error) {
	out, err := b.client.GetObject(&s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key(p)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, errors.Wrapf(dfserr.ErrNotFound, "%s", p)
		}
		return nil, errors.Wrap(dfserr.ErrTransport, err.Error())
	}
	defer func() { _ = out.Body.Close() }()
	data, err := ioutil.ReadAll(out.Body)
	if err != nil {
		return nil, errors.Wrap(dfserr.ErrTransport, err.Error())
	}
	return data, nil
}

func (b *S3Backend) put(p dpath.Path, data []byte) error {
	_, err := b.client.PutObject(&s3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key(p)),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return errors.Wrap(dfserr.ErrTransport, err.Error())
	}
	return nil
}

// Size returns the length of the object at p.
func (b *S3Backend) Size(p dpath.Path) (int64, error) {
	out, err := b.client.HeadObject(&s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key(p)),
	})
	if err != nil {
		if isNotFound(err) {
			return 0, errors.Wrapf(dfserr.ErrNotFound, "%s", p)
		}
		return 0, errors.Wrap(dfserr.ErrTransport, err.Error())
	}
	if out.ContentLength == nil {
		return 0, nil
	}
	return *out.ContentLength, nil
}

// ReadAt fetches the whole object and slices out [offset, offset+length).
func (b *S3Backend) ReadAt(p dpath.Path, offset, length int64) ([]byte, error) {
	if offset < 0 || length < 0 {
		return nil, errors.Wrap(dfserr.ErrIllegalArgument, "negative offset or length")
	}
	data, err := b.get(p)
	if err != nil {
		return nil, err
	}
	if offset > int64(len(data)) {
		return nil, errors.Wrapf(dfserr.ErrIllegalArgument, "offset %d beyond size %d", offset, len(data))
	}
	end := offset + length
	if end > int64(len(data)) {
		end = int64(len(data))
	}
	return data[offset:end], nil
}

// WriteAt fetches the current object (treating a missing one as empty),
// patches bytes [offset, offset+len(data)) and writes the result back.
func (b *S3Backend) WriteAt(p dpath.Path, offset int64, data []byte) error {
	if offset < 0 {
		return errors.Wrap(dfserr.ErrIllegalArgument, "negative offset")
	}
	existing, err := b.get(p)
	if err != nil && !errors.Is(err, dfserr.ErrNotFound) {
		return err
	}
	need := offset + int64(len(data))
	if need > int64(len(existing)) {
		grown := make([]byte, need)
		copy(grown, existing)
		existing = grown
	}
	copy(existing[offset:], data)
	return b.put(p, existing)
}

// Create writes an empty object at p, failing with dfserr.ErrExist if one
// is already there.
func (b *S3Backend) Create(p dpath.Path) error {
	if b.Exists(p) {
		return errors.Wrapf(dfserr.ErrExist, "%s", p)
	}
	return b.put(p, nil)
}

// Delete removes the object at p.
func (b *S3Backend) Delete(p dpath.Path) error {
	if !b.Exists(p) {
		return errors.Wrapf(dfserr.ErrNotFound, "%s", p)
	}
	_, err := b.client.DeleteObject(&s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key(p)),
	})
	if err != nil {
		return errors.Wrap(dfserr.ErrTransport, err.Error())
	}
	return nil
}

// Exists reports whether p names an object in the bucket.
func (b *S3Backend) Exists(p dpath.Path) bool {
	_, err := b.client.HeadObject(&s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key(p)),
	})
	return err == nil
}

// Replace overwrites the object at p with contents in full. S3 objects
// have no partial-write API, so a whole-object PutObject is already the
// atomic replace WriteAt has to simulate with a read-modify-write.
func (b *S3Backend) Replace(p dpath.Path, contents []byte) error {
	return b.put(p, contents)
}
