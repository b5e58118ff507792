package tabletenv

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/colstore/tablet/errs"
)

// s3Env is an Environment backed by an S3 (or S3-compatible) bucket,
// grounded on the blob-store shape used elsewhere in the pack for
// object storage: HeadObject for existence/size, ranged GetObject for
// ReaderAt, and an Uploader for whole-object writes. S3 has no real
// directories or atomic rename; MkdirAll is a no-op and Rename is a
// copy-then-delete (not atomic — acceptable here because only Tablet's
// single writer ever renames a given path, per spec.md §5).
type s3Env struct {
	client *s3.Client
	bucket string
	prefix string
}

// S3 returns an Environment rooted at bucket/prefix.
func S3(client *s3.Client, bucket, prefix string) Environment {
	return &s3Env{client: client, bucket: bucket, prefix: prefix}
}

func (e *s3Env) key(p string) string { return path.Join(e.prefix, p) }

type s3ReadFile struct {
	ctx    context.Context
	client *s3.Client
	bucket string
	key    string
	size   int64
}

func (f *s3ReadFile) Size() (int64, error) { return f.size, nil }
func (f *s3ReadFile) Write([]byte) (int, error) {
	return 0, errs.NotSupportedf("tabletenv: s3 file opened for reading is not writable")
}
func (f *s3ReadFile) Close() error { return nil }

func (f *s3ReadFile) ReadAt(p []byte, off int64) (int, error) {
	if off >= f.size {
		return 0, io.EOF
	}
	end := off + int64(len(p)) - 1
	if end >= f.size {
		end = f.size - 1
	}
	resp, err := f.client.GetObject(f.ctx, &s3.GetObjectInput{
		Bucket: aws.String(f.bucket),
		Key:    aws.String(f.key),
		Range:  aws.String(rangeHeader(off, end)),
	})
	if err != nil {
		return 0, errs.IOErrorf("tabletenv: s3 GetObject %q: %v", f.key, err)
	}
	defer resp.Body.Close()
	n, err := io.ReadFull(resp.Body, p)
	if errors.Is(err, io.ErrUnexpectedEOF) && off+int64(n) == f.size {
		return n, nil
	}
	if err == io.EOF {
		return n, nil
	}
	if err != nil {
		return n, errs.IOErrorf("tabletenv: s3 read body %q: %v", f.key, err)
	}
	return n, nil
}

func rangeHeader(off, end int64) string {
	var b strings.Builder
	b.WriteString("bytes=")
	writeInt(&b, off)
	b.WriteByte('-')
	writeInt(&b, end)
	return b.String()
}

func writeInt(b *strings.Builder, v int64) {
	if v == 0 {
		b.WriteByte('0')
		return
	}
	var tmp [20]byte
	i := len(tmp)
	for v > 0 {
		i--
		tmp[i] = byte('0' + v%10)
		v /= 10
	}
	b.Write(tmp[i:])
}

// s3WriteFile buffers the whole object in memory and uploads it on
// Close; column files are written once, start to finish, so this keeps
// the writer side simple without a streaming pipe.
type s3WriteFile struct {
	ctx    context.Context
	client *s3.Client
	bucket string
	key    string
	buf    bytes.Buffer
}

func (f *s3WriteFile) Write(p []byte) (int, error)      { return f.buf.Write(p) }
func (f *s3WriteFile) ReadAt([]byte, int64) (int, error) {
	return 0, errs.NotSupportedf("tabletenv: s3 file opened for writing is not readable")
}
func (f *s3WriteFile) Size() (int64, error) { return int64(f.buf.Len()), nil }

func (f *s3WriteFile) Close() error {
	up := manager.NewUploader(f.client)
	_, err := up.Upload(f.ctx, &s3.PutObjectInput{
		Bucket: aws.String(f.bucket),
		Key:    aws.String(f.key),
		Body:   bytes.NewReader(f.buf.Bytes()),
	})
	if err != nil {
		return errs.IOErrorf("tabletenv: s3 upload %q: %v", f.key, err)
	}
	return nil
}

func (e *s3Env) Create(p string) (File, error) {
	return &s3WriteFile{ctx: context.Background(), client: e.client, bucket: e.bucket, key: e.key(p)}, nil
}

func (e *s3Env) Open(p string) (File, error) {
	ctx := context.Background()
	key := e.key(p)
	head, err := e.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(e.bucket), Key: aws.String(key)})
	if err != nil {
		var nf *types.NotFound
		var nsk *types.NoSuchKey
		if errors.As(err, &nf) || errors.As(err, &nsk) {
			return nil, errs.ErrNotFound
		}
		return nil, errs.IOErrorf("tabletenv: s3 HeadObject %q: %v", key, err)
	}
	return &s3ReadFile{ctx: ctx, client: e.client, bucket: e.bucket, key: key, size: aws.ToInt64(head.ContentLength)}, nil
}

func (e *s3Env) Exists(p string) (bool, error) {
	_, err := e.Open(p)
	if errors.Is(err, errs.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (e *s3Env) List(dir string) ([]string, error) {
	ctx := context.Background()
	prefix := e.key(dir)
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	var names []string
	pg := s3.NewListObjectsV2Paginator(e.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(e.bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	})
	for pg.HasMorePages() {
		page, err := pg.NextPage(ctx)
		if err != nil {
			return nil, errs.IOErrorf("tabletenv: s3 ListObjectsV2 %q: %v", prefix, err)
		}
		for _, cp := range page.CommonPrefixes {
			rel := strings.TrimSuffix(strings.TrimPrefix(aws.ToString(cp.Prefix), prefix), "/")
			if rel != "" {
				names = append(names, rel)
			}
		}
		for _, obj := range page.Contents {
			rel := strings.TrimPrefix(aws.ToString(obj.Key), prefix)
			if rel != "" {
				names = append(names, rel)
			}
		}
	}
	return names, nil
}

// MkdirAll is a no-op: S3 has no directory objects.
func (e *s3Env) MkdirAll(string) error { return nil }

func (e *s3Env) Remove(p string) error {
	ctx := context.Background()
	_, err := e.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(e.bucket), Key: aws.String(e.key(p))})
	if err != nil {
		return errs.IOErrorf("tabletenv: s3 DeleteObject %q: %v", p, err)
	}
	return nil
}

func (e *s3Env) RemoveAll(dir string) error {
	names, err := e.listAllRecursive(dir)
	if err != nil {
		return err
	}
	for _, n := range names {
		if err := e.Remove(path.Join(dir, n)); err != nil {
			return err
		}
	}
	return nil
}

func (e *s3Env) listAllRecursive(dir string) ([]string, error) {
	ctx := context.Background()
	prefix := e.key(dir)
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	var names []string
	pg := s3.NewListObjectsV2Paginator(e.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(e.bucket),
		Prefix: aws.String(prefix),
	})
	for pg.HasMorePages() {
		page, err := pg.NextPage(ctx)
		if err != nil {
			return nil, errs.IOErrorf("tabletenv: s3 ListObjectsV2 %q: %v", prefix, err)
		}
		for _, obj := range page.Contents {
			names = append(names, strings.TrimPrefix(aws.ToString(obj.Key), prefix))
		}
	}
	return names, nil
}

// Rename copies every object under oldPath to newPath and deletes the
// originals. Not atomic; see the type doc comment.
func (e *s3Env) Rename(oldPath, newPath string) error {
	ctx := context.Background()
	names, err := e.listAllRecursive(oldPath)
	if err != nil {
		return err
	}
	for _, n := range names {
		srcKey := e.key(path.Join(oldPath, n))
		dstKey := e.key(path.Join(newPath, n))
		_, err := e.client.CopyObject(ctx, &s3.CopyObjectInput{
			Bucket:     aws.String(e.bucket),
			Key:        aws.String(dstKey),
			CopySource: aws.String(path.Join(e.bucket, srcKey)),
		})
		if err != nil {
			return errs.IOErrorf("tabletenv: s3 CopyObject %q -> %q: %v", srcKey, dstKey, err)
		}
	}
	return e.RemoveAll(oldPath)
}
