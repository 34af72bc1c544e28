package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/sirupsen/logrus"
)

// MinioArchive mirrors voice clips to object storage after they are durably
// written. Archiving is strictly best-effort: failures are logged and the
// record in the database stays authoritative.
type MinioArchive struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

func (m *MinioArchive) client() (*minio.Client, error) {
	return minio.New(m.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(m.AccessKey, m.SecretKey, ""),
		Secure: m.UseSSL,
	})
}

func (m *MinioArchive) ensureBucket(ctx context.Context, cli *minio.Client) error {
	exists, err := cli.BucketExists(ctx, m.Bucket)
	if err != nil {
		return err
	}
	if !exists {
		return cli.MakeBucket(ctx, m.Bucket, minio.MakeBucketOptions{})
	}
	return nil
}

// Archive uploads one clip keyed by its record ID.
func (m *MinioArchive) Archive(ctx context.Context, recordID uint, clip []byte) {
	cli, err := m.client()
	if err != nil {
		logrus.Warnf("audio archive client init failed: %v", err)
		return
	}
	if err := m.ensureBucket(ctx, cli); err != nil {
		logrus.Warnf("audio archive bucket check failed: %v", err)
		return
	}

	key := fmt.Sprintf("voice/%d.wav", recordID)
	_, err = cli.PutObject(ctx, m.Bucket, key, bytes.NewReader(clip), int64(len(clip)),
		minio.PutObjectOptions{ContentType: "audio/wav"})
	if err != nil {
		logrus.Warnf("audio archive upload failed for record %d: %v", recordID, err)
		return
	}
	logrus.Infof("voice clip archived: %s", key)
}

// Read fetches an archived clip, mainly for operational tooling.
func (m *MinioArchive) Read(ctx context.Context, recordID uint) (io.ReadCloser, int64, error) {
	cli, err := m.client()
	if err != nil {
		return nil, 0, err
	}
	key := fmt.Sprintf("voice/%d.wav", recordID)
	obj, err := cli.GetObject(ctx, m.Bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, 0, err
	}
	st, err := obj.Stat()
	if err != nil {
		return nil, 0, err
	}
	return obj, st.Size, nil
}
