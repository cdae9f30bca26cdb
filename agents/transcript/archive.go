/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package transcript

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"cloud.google.com/go/storage"
	"github.com/chainguard-dev/clog"
)

// Uploader opens writers for named objects. Closing the writer commits the
// object.
type Uploader interface {
	NewWriter(ctx context.Context, name string) io.WriteCloser
}

type bucketUploader struct {
	bucket *storage.BucketHandle
}

// BucketUploader returns an Uploader writing to a GCS bucket.
func BucketUploader(bucket *storage.BucketHandle) Uploader {
	return bucketUploader{bucket: bucket}
}

func (u bucketUploader) NewWriter(ctx context.Context, name string) io.WriteCloser {
	w := u.bucket.Object(name).NewWriter(ctx)
	w.ContentType = "text/plain; charset=utf-8"
	return w
}

// Archive uploads both transcript files of the session in dir as
// <prefix>/<file>.
func Archive(ctx context.Context, up Uploader, prefix, dir string) error {
	for _, name := range []string{FullFile, AssistantFile} {
		object := path.Join(prefix, name)
		if err := upload(ctx, up, object, filepath.Join(dir, name)); err != nil {
			return fmt.Errorf("archiving %s: %w", object, err)
		}
		clog.FromContext(ctx).With("object", object).Info("Archived transcript")
	}
	return nil
}

func upload(ctx context.Context, up Uploader, object, src string) error {
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()

	w := up.NewWriter(ctx, object)
	if _, err := io.Copy(w, f); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}
